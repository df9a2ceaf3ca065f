package transcriber_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/queue"
	"recap/internal/services"
	"recap/internal/services/runner"
	"recap/internal/services/whisper"
	"recap/internal/transcriber"
)

func setup(t *testing.T) (*config.Config, *queue.Store, *queue.Job) {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.AudioDir = filepath.Join(base, "audio")
	cfg.Paths.TranscriptDir = filepath.Join(base, "transcripts")
	cfg.Transcribe.RemotePollInterval = 1
	cfg.Transcribe.RemoteTimeoutSeconds = 60

	store, err := queue.OpenPath(filepath.Join(base, "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	job, err := store.NewJob(context.Background(), "https://example.com/watch?v=abc123", "en")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := os.MkdirAll(cfg.Paths.AudioDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	job.AudioFile = filepath.Join(cfg.Paths.AudioDir, "abc123.wav")
	if err := os.WriteFile(job.AudioFile, []byte("RIFF....WAVE"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	job.Status = queue.StatusTranscribing
	job.ProgressPercent = queue.ProgressTranscoded
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("update job: %v", err)
	}
	return cfg, store, job
}

type remoteState struct {
	polls    atomic.Int32
	complete bool
	failed   bool
}

func remoteServer(t *testing.T, state *remoteState) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/health":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/transcribe" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"job_id": "remote-1"})
		case strings.HasPrefix(r.URL.Path, "/transcribe/"):
			state.polls.Add(1)
			switch {
			case state.failed:
				json.NewEncoder(w).Encode(map[string]any{"status": "failed", "error": "CUDA out of memory"})
			case state.complete:
				json.NewEncoder(w).Encode(map[string]any{
					"status":   "completed",
					"text":     "remote transcript text",
					"language": "en",
					"segments": []map[string]any{{"text": "remote transcript text", "start": 0, "end": 2}},
				})
			default:
				w.WriteHeader(http.StatusAccepted)
				json.NewEncoder(w).Encode(map[string]any{"status": "processing", "progress": 0.5})
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExecuteRemoteCompletes(t *testing.T) {
	cfg, store, job := setup(t)
	state := &remoteState{complete: true}
	srv := remoteServer(t, state)

	handler := transcriber.NewTranscriberWithClients(cfg, store, logging.NewNop(),
		runner.NewClient(srv.URL), whisper.NewService(cfg.Transcribe))
	handler.WithIntervals(5*time.Millisecond, time.Second)

	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if job.Transcript != "remote transcript text" {
		t.Fatalf("unexpected transcript: %q", job.Transcript)
	}
	if job.DetectedLanguage != "en" {
		t.Fatalf("unexpected language: %q", job.DetectedLanguage)
	}
	if job.ProgressPercent != queue.ProgressTranscribed {
		t.Fatalf("unexpected progress: %v", job.ProgressPercent)
	}
	if job.RemoteJobID != "remote-1" {
		t.Fatalf("expected remote job id to persist, got %q", job.RemoteJobID)
	}
	if job.TranscriptFile == "" {
		t.Fatal("expected transcript artifact path")
	}
	data, err := os.ReadFile(job.TranscriptFile)
	if err != nil {
		t.Fatalf("read transcript artifact: %v", err)
	}
	if !strings.Contains(string(data), "remote transcript text") {
		t.Fatalf("artifact missing transcript: %s", data)
	}
	txtPath := strings.TrimSuffix(job.TranscriptFile, ".json") + ".txt"
	if _, err := os.Stat(txtPath); err != nil {
		t.Fatalf("expected plain text artifact: %v", err)
	}
}

func TestExecuteRemoteCeilingExpires(t *testing.T) {
	cfg, store, job := setup(t)
	state := &remoteState{}
	srv := remoteServer(t, state)

	handler := transcriber.NewTranscriberWithClients(cfg, store, logging.NewNop(),
		runner.NewClient(srv.URL), whisper.NewService(cfg.Transcribe))
	handler.WithIntervals(5*time.Millisecond, 40*time.Millisecond)

	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if !strings.Contains(err.Error(), "remote transcription timed out") {
		t.Fatalf("expected ceiling message, got %v", err)
	}

	// Fire and forget: once the ceiling expires nothing polls the runner again.
	settled := state.polls.Load()
	time.Sleep(50 * time.Millisecond)
	if state.polls.Load() != settled {
		t.Fatalf("polling continued after expiry: %d -> %d", settled, state.polls.Load())
	}
}

func TestExecuteRemoteFailureIsRetryable(t *testing.T) {
	cfg, store, job := setup(t)
	state := &remoteState{failed: true}
	srv := remoteServer(t, state)

	handler := transcriber.NewTranscriberWithClients(cfg, store, logging.NewNop(),
		runner.NewClient(srv.URL), whisper.NewService(cfg.Transcribe))
	handler.WithIntervals(5*time.Millisecond, time.Second)

	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	err := handler.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if status := services.FailureStatus(err); status != queue.StatusFailed {
		t.Fatalf("expected failed status, got %s", status)
	}
	if !strings.Contains(err.Error(), "CUDA out of memory") {
		t.Fatalf("expected runner error message, got %v", err)
	}
}

func TestPrepareFallsBackWhenRemoteUnhealthy(t *testing.T) {
	cfg, store, job := setup(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	srv.Close()

	local := whisper.NewService(cfg.Transcribe)
	local.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		payload := `{"language":"en","segments":[{"text":"local transcript","start":0,"end":1}]}`
		return os.WriteFile(filepath.Join(cfg.Paths.TranscriptDir, "abc123.json"), []byte(payload), 0o644)
	})

	handler := transcriber.NewTranscriberWithClients(cfg, store, logging.NewNop(),
		runner.NewClient(srv.URL), local)

	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.Transcript != "local transcript" {
		t.Fatalf("expected local fallback transcript, got %q", job.Transcript)
	}
}

func TestExecuteReusesExistingTranscript(t *testing.T) {
	cfg, store, job := setup(t)
	job.Transcript = "already transcribed"

	handler := transcriber.NewTranscriberWithClients(cfg, store, logging.NewNop(),
		nil, whisper.NewService(cfg.Transcribe))
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.ProgressPercent != queue.ProgressTranscribed {
		t.Fatalf("unexpected progress: %v", job.ProgressPercent)
	}
}

func TestExecuteResumesExistingRemoteJob(t *testing.T) {
	cfg, store, job := setup(t)
	state := &remoteState{complete: true}
	srv := remoteServer(t, state)
	job.RemoteJobID = "remote-1"

	handler := transcriber.NewTranscriberWithClients(cfg, store, logging.NewNop(),
		runner.NewClient(srv.URL), whisper.NewService(cfg.Transcribe))
	handler.WithIntervals(5*time.Millisecond, time.Second)

	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.Transcript == "" {
		t.Fatal("expected transcript from resumed remote job")
	}
}
