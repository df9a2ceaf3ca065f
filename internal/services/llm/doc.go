// Package llm talks to an OpenRouter-compatible chat completion API for
// summarization, transcript formatting, and keyword extraction. It owns the
// retry policy for rate limits and transient upstream failures, plus token
// counting used to keep transcripts inside the model's context window.
package llm
