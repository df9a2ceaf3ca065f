// Package transcoder implements the audio extraction stage: ffmpeg strips the
// video stream and resamples audio into the mono PCM shape the transcription
// models expect.
package transcoder
