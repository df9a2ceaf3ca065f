// Package runner is the HTTP client for the remote transcription runner: a
// GPU host that accepts a WAV upload, transcribes asynchronously, and serves
// job state through a small polling API.
package runner
