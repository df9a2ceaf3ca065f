// Package ytdlp wraps the yt-dlp binary for probing and downloading videos.
// Failures are classified into retryable, blocked, and permanently
// unavailable buckets so the fetch stage can park dead content instead of
// retrying it forever.
package ytdlp
