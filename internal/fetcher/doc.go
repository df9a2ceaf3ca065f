// Package fetcher implements the download stage: it pulls the source video
// with yt-dlp, stores it under the media directory, and records title and
// channel metadata on the job.
package fetcher
