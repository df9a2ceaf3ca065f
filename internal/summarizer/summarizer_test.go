package summarizer_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/queue"
	"recap/internal/services"
	"recap/internal/services/llm"
	"recap/internal/summarizer"
)

func setup(t *testing.T) (*config.Config, *queue.Store, *queue.Job) {
	t.Helper()
	cfg := config.Default()
	cfg.LLM.APIKey = "test-key"

	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	job, err := store.NewJob(context.Background(), "https://example.com/watch?v=abc123", "")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.Title = "A Talk"
	job.Transcript = "speaker one talks about go concurrency patterns for an hour"
	job.DetectedLanguage = "en"
	job.Status = queue.StatusSummarizing
	job.ProgressPercent = queue.ProgressTranscribed
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("update job: %v", err)
	}
	return cfg, store, job
}

// llmStub answers formatting, summary, and keyword requests in order based
// on the system prompt content.
func llmStub(t *testing.T, failSummary bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		system := req.Messages[0].Content
		var content string
		switch {
		case strings.Contains(system, "punctuation"):
			content = "Speaker one talks about Go concurrency patterns.\n\nFor an hour."
		case strings.Contains(system, "summarizes video transcripts"):
			if failSummary {
				http.Error(w, "upstream broken", http.StatusBadRequest)
				return
			}
			content = "A talk about Go concurrency patterns."
		case strings.Contains(system, "keywords"):
			content = `{"keywords":["go","concurrency","patterns"]}`
		default:
			t.Fatalf("unexpected system prompt: %s", system)
		}
		payload := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}, "finish_reason": "stop"}},
		}
		json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newHandler(cfg *config.Config, store *queue.Store, url string) *summarizer.Summarizer {
	client := llm.NewClient(cfg.LLM,
		llm.WithBaseURL(url),
		llm.WithSleeper(func(time.Duration) {}),
		llm.WithRetryMaxAttempts(1),
	)
	return summarizer.NewSummarizerWithClient(cfg, store, logging.NewNop(), client)
}

func TestExecuteGeneratesSummaryAndKeywords(t *testing.T) {
	cfg, store, job := setup(t)
	srv := llmStub(t, false)
	handler := newHandler(cfg, store, srv.URL)

	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if job.Summary != "A talk about Go concurrency patterns." {
		t.Fatalf("unexpected summary: %q", job.Summary)
	}
	if !strings.Contains(job.Transcript, "Speaker one talks about Go") {
		t.Fatalf("expected formatted transcript, got %q", job.Transcript)
	}
	keywords := job.Keywords()
	if len(keywords) != 3 || keywords[0] != "go" {
		t.Fatalf("unexpected keywords: %v", keywords)
	}
	if job.ProgressPercent != queue.ProgressCompleted {
		t.Fatalf("unexpected progress: %v", job.ProgressPercent)
	}
}

func TestExecuteFallsBackToFrequencyKeywords(t *testing.T) {
	cfg, store, job := setup(t)
	job.Transcript = "etcd etcd raft raft quorum"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		content := "Etcd and Raft."
		if strings.Contains(req.Messages[0].Content, "keywords") {
			content = "not-json"
		}
		payload := map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}, "finish_reason": "stop"}},
		}
		json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)
	handler := newHandler(cfg, store, srv.URL)

	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	keywords := job.Keywords()
	if len(keywords) != 2 || keywords[0] != "etcd" || keywords[1] != "raft" {
		t.Fatalf("unexpected fallback keywords: %v", keywords)
	}
}

func TestExecuteFailsWithoutTranscript(t *testing.T) {
	cfg, store, job := setup(t)
	job.Transcript = "  "
	handler := newHandler(cfg, store, "http://127.0.0.1:0")

	if err := handler.Execute(context.Background(), job); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecuteSummaryFailureFailsStage(t *testing.T) {
	cfg, store, job := setup(t)
	srv := llmStub(t, true)
	handler := newHandler(cfg, store, srv.URL)

	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if job.Summary != "" {
		t.Fatalf("summary should not be set on failure, got %q", job.Summary)
	}
}

func TestHealthCheckRequiresAPIKey(t *testing.T) {
	cfg, store, _ := setup(t)
	cfg.LLM.APIKey = ""
	handler := newHandler(cfg, store, "http://127.0.0.1:0")
	if health := handler.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy without api key")
	}
}
