// Package ffmpeg wraps ffmpeg and ffprobe for the transcode stage: extracting
// mono PCM audio from downloaded media and probing container duration.
package ffmpeg
