// Package transcriber implements the transcription stage. It prefers the
// remote GPU runner when one is configured and healthy, polling it until the
// transcript is ready or the ceiling expires, and falls back to local
// WhisperX otherwise.
package transcriber
