// Package language normalizes language codes flowing between job submissions,
// the transcription backends, and summary prompts. Whisper works with ISO
// 639-1 codes; user input and video metadata arrive in every other shape.
package language
