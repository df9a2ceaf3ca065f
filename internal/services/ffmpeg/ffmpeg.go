package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"recap/internal/config"
)

// CommandRunner executes a media binary and returns its stdout. Tests
// substitute this to avoid shelling out.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client shells out to ffmpeg and ffprobe for audio extraction and probing.
type Client struct {
	ffmpegBinary  string
	ffprobeBinary string
	sampleRate    int
	channels      int
	timeout       time.Duration
	runner        CommandRunner
}

// NewClient builds an ffmpeg client from the transcode configuration.
func NewClient(cfg config.Transcode) *Client {
	return &Client{
		ffmpegBinary:  cfg.FFmpegBinary,
		ffprobeBinary: cfg.FFprobeBinary,
		sampleRate:    cfg.SampleRate,
		channels:      cfg.Channels,
		timeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner CommandRunner) {
	c.runner = runner
}

// Binary returns the ffmpeg binary name for health checks.
func (c *Client) Binary() string {
	return c.ffmpegBinary
}

// ExtractAudio strips the video stream and writes a PCM WAV file shaped for
// the transcription models (16 kHz mono by default). The destination is
// <audioDir>/<media stem>.wav.
func (c *Client) ExtractAudio(ctx context.Context, mediaPath, audioDir string) (string, error) {
	if mediaPath == "" {
		return "", fmt.Errorf("ffmpeg: media path required")
	}
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return "", fmt.Errorf("ffmpeg: ensure audio dir: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	audioPath := filepath.Join(audioDir, stem+".wav")

	args := []string{
		"-i", mediaPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(c.sampleRate),
		"-ac", strconv.Itoa(c.channels),
		"-y",
		audioPath,
	}
	if _, err := c.run(ctx, c.ffmpegBinary, args); err != nil {
		return "", err
	}

	if c.runner == nil {
		if _, err := os.Stat(audioPath); err != nil {
			return "", fmt.Errorf("ffmpeg: output file not created: %w", err)
		}
	}
	return audioPath, nil
}

// Duration probes the container duration in seconds via ffprobe.
func (c *Client) Duration(ctx context.Context, mediaPath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	}
	out, err := c.run(ctx, c.ffprobeBinary, args)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimSpace(string(out))
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: parse duration %q: %w", raw, err)
	}
	return seconds, nil
}

func (c *Client) run(ctx context.Context, name string, args []string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.runner != nil {
		return c.runner(ctx, name, args...)
	}

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
