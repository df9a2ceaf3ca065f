package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"recap/internal/config"
)

const (
	fallbackFormat = "bestvideo+bestaudio/best"
	refererHeader  = "https://www.youtube.com/"
)

// Info is the subset of yt-dlp's JSON output the pipeline records.
type Info struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Ext         string  `json:"ext"`
	Duration    float64 `json:"duration"`
	Thumbnail   string  `json:"thumbnail"`
	Description string  `json:"description"`
	UploadDate  string  `json:"upload_date"`
	ReleaseDate string  `json:"release_date"`
	Channel     string  `json:"channel"`
	ChannelID   string  `json:"channel_id"`
	Uploader    string  `json:"uploader"`
	UploaderID  string  `json:"uploader_id"`
	ViewCount   int64   `json:"view_count"`
	LikeCount   int64   `json:"like_count"`
	Language    string  `json:"language"`
	LiveStatus  string  `json:"live_status"`
}

// Result describes a completed download.
type Result struct {
	Info     Info
	FilePath string
}

// CommandRunner executes the yt-dlp binary and returns its stdout. Tests
// substitute this to avoid shelling out.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client shells out to yt-dlp for probing and downloading videos.
type Client struct {
	binary    string
	format    string
	userAgent string
	timeout   time.Duration
	runner    CommandRunner
}

// NewClient builds a yt-dlp client from the fetch configuration.
func NewClient(cfg config.Fetch) *Client {
	return &Client{
		binary:    cfg.Binary,
		format:    cfg.Format,
		userAgent: cfg.UserAgent,
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner CommandRunner) {
	c.runner = runner
}

// Binary returns the configured binary name for health checks.
func (c *Client) Binary() string {
	return c.binary
}

// Probe fetches video metadata without downloading. Live streams are rejected
// here before any bytes move; an in-progress stream would download forever.
func (c *Client) Probe(ctx context.Context, url string) (Info, error) {
	args := []string{"--dump-json", "--no-warnings", "--skip-download"}
	args = c.appendCommonArgs(args)
	args = append(args, url)

	out, err := c.run(ctx, args)
	if err != nil {
		return Info{}, err
	}
	info, err := parseInfo(out)
	if err != nil {
		return Info{}, err
	}
	if info.LiveStatus == "is_live" {
		return Info{}, &DownloadError{
			Message: "live stream detected; add the video after the stream has ended",
			Kind:    KindUnavailable,
		}
	}
	return info, nil
}

// Download fetches the video into outputDir named <id>.<ext>. When the
// preferred format selector is too strict it retries once with the fallback
// selector merged into mkv.
func (c *Client) Download(ctx context.Context, url, outputDir string) (Result, error) {
	res, err := c.downloadWithFormat(ctx, url, outputDir, c.format, "")
	if err == nil {
		return res, nil
	}
	var dlErr *DownloadError
	if errors.As(err, &dlErr) && dlErr.Kind == KindFormatUnavailable {
		return c.downloadWithFormat(ctx, url, outputDir, fallbackFormat, "mkv")
	}
	return Result{}, err
}

func (c *Client) downloadWithFormat(ctx context.Context, url, outputDir, format, mergeFormat string) (Result, error) {
	args := []string{
		"--print-json",
		"--no-warnings",
		"--no-playlist",
		"--output", filepath.Join(outputDir, "%(id)s.%(ext)s"),
	}
	if format != "" {
		args = append(args, "--format", format)
	}
	if mergeFormat != "" {
		args = append(args, "--merge-output-format", mergeFormat)
	}
	args = c.appendCommonArgs(args)
	args = append(args, url)

	out, err := c.run(ctx, args)
	if err != nil {
		return Result{}, err
	}
	info, err := parseInfo(out)
	if err != nil {
		return Result{}, err
	}

	ext := info.Ext
	if mergeFormat != "" {
		ext = mergeFormat
	}
	if ext == "" {
		ext = "mp4"
	}
	return Result{
		Info:     info,
		FilePath: filepath.Join(outputDir, info.ID+"."+ext),
	}, nil
}

func (c *Client) appendCommonArgs(args []string) []string {
	if c.userAgent != "" {
		args = append(args, "--user-agent", c.userAgent)
	}
	args = append(args,
		"--referer", refererHeader,
		"--retries", "0",
		"--fragment-retries", "0",
	)
	return args
}

func (c *Client) run(ctx context.Context, args []string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.runner != nil {
		out, err := c.runner(ctx, c.binary, args...)
		if err != nil {
			return nil, classifyRunError(err, string(out))
		}
		return out, nil
	}

	cmd := exec.CommandContext(ctx, c.binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, classifyRunError(err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// DownloadError carries the classified failure kind alongside the tool output.
type DownloadError struct {
	Message string
	Kind    Kind
	Cause   error
}

func (e *DownloadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("yt-dlp: %s: %v", e.Message, e.Cause)
	}
	return "yt-dlp: " + e.Message
}

func (e *DownloadError) Unwrap() error { return e.Cause }

func classifyRunError(err error, output string) error {
	message := strings.TrimSpace(output)
	if message == "" {
		message = err.Error()
	}
	return &DownloadError{
		Message: message,
		Kind:    Classify(message),
		Cause:   err,
	}
}

// parseInfo decodes the last JSON object in yt-dlp output. --print-json can
// emit progress noise on earlier lines.
func parseInfo(out []byte) (Info, error) {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var info Info
		if err := json.Unmarshal(line, &info); err != nil {
			return Info{}, fmt.Errorf("yt-dlp: parse metadata json: %w", err)
		}
		if info.UploadDate == "" && info.ReleaseDate != "" {
			info.UploadDate = info.ReleaseDate
		}
		if info.Channel == "" {
			info.Channel = info.Uploader
		}
		return info, nil
	}
	return Info{}, fmt.Errorf("yt-dlp: no metadata json in output")
}
