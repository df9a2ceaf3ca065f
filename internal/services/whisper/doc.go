// Package whisper runs WhisperX transcription locally through uvx. It is the
// fallback path when no remote transcription runner is configured.
package whisper
