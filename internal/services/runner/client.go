package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"recap/internal/services/whisper"
)

// Job statuses reported by the remote runner.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	submitTimeout = 10 * time.Minute
	pollTimeout   = 30 * time.Second
	healthTimeout = 10 * time.Second
)

// PollResult is one poll response from the remote runner. Progress is the
// runner's own 0..1 estimate while the job is pending or processing.
type PollResult struct {
	Status   string            `json:"status"`
	Progress float64           `json:"progress"`
	Text     string            `json:"text"`
	Language string            `json:"language"`
	Segments []whisper.Segment `json:"segments"`
	Error    string            `json:"error"`
}

// Done reports whether the remote job reached a terminal state.
func (r PollResult) Done() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Client talks to a remote transcription runner over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a runner client for the given base URL. The URL should
// carry no trailing slash; config normalization guarantees that.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// BaseURL returns the configured runner endpoint for logging.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit uploads a WAV file and returns the remote job identifier. The
// runner answers 202 immediately; transcription happens asynchronously.
func (c *Client) Submit(ctx context.Context, audioPath, language string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("runner: open audio file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("runner: build upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("runner: read audio file: %w", err)
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return "", fmt.Errorf("runner: build upload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("runner: build upload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", &body)
	if err != nil {
		return "", fmt.Errorf("runner: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("runner: submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("runner: submit: unexpected status %d: %s", resp.StatusCode, readBodySnippet(resp.Body))
	}

	var payload struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("runner: decode submit response: %w", err)
	}
	if payload.JobID == "" {
		return "", fmt.Errorf("runner: submit response missing job_id")
	}
	return payload.JobID, nil
}

// Poll fetches the current state of a remote job. Both 202 (in progress) and
// 200 (terminal) responses decode into a PollResult; a failed job surfaces
// through the result's Error field, not a Go error.
func (c *Client) Poll(ctx context.Context, jobID string) (PollResult, error) {
	var result PollResult

	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcribe/"+jobID, nil)
	if err != nil {
		return result, fmt.Errorf("runner: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("runner: poll: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
	case http.StatusNotFound:
		return result, fmt.Errorf("runner: job %s not found", jobID)
	default:
		return result, fmt.Errorf("runner: poll: unexpected status %d: %s", resp.StatusCode, readBodySnippet(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("runner: decode poll response: %w", err)
	}
	return result, nil
}

// Health probes the runner's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("runner: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("runner: health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("runner: health: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func readBodySnippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(data))
}
