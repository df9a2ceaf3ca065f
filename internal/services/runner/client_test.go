package runner_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"recap/internal/services/runner"
)

func writeAudioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVE"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestSubmitUploadsMultipart(t *testing.T) {
	var gotLanguage string
	var gotFilename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transcribe" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotLanguage = r.FormValue("language")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		file.Close()
		gotFilename = header.Filename
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"job_id": "remote-1"})
	}))
	defer srv.Close()

	client := runner.NewClient(srv.URL)
	jobID, err := client.Submit(context.Background(), writeAudioFixture(t), "en")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if jobID != "remote-1" {
		t.Fatalf("unexpected job id: %s", jobID)
	}
	if gotLanguage != "en" {
		t.Fatalf("unexpected language field: %q", gotLanguage)
	}
	if gotFilename != "job.wav" {
		t.Fatalf("unexpected filename: %q", gotFilename)
	}
}

func TestSubmitRejectsNonAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Expected a WAV file", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := runner.NewClient(srv.URL)
	if _, err := client.Submit(context.Background(), writeAudioFixture(t), ""); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestPollInProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe/remote-1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{"status": "processing", "progress": 0.4})
	}))
	defer srv.Close()

	client := runner.NewClient(srv.URL)
	result, err := client.Poll(context.Background(), "remote-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if result.Done() {
		t.Fatalf("processing job should not be done: %+v", result)
	}
	if result.Progress != 0.4 {
		t.Fatalf("unexpected progress: %v", result.Progress)
	}
}

func TestPollCompleted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "completed",
			"text":     "hello world",
			"language": "en",
			"segments": []map[string]any{{"text": "hello world", "start": 0, "end": 1.2}},
		})
	}))
	defer srv.Close()

	client := runner.NewClient(srv.URL)
	result, err := client.Poll(context.Background(), "remote-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !result.Done() || result.Status != runner.StatusCompleted {
		t.Fatalf("expected completed result, got %+v", result)
	}
	if result.Text != "hello world" || len(result.Segments) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPollFailedCarriesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "failed", "error": "CUDA out of memory"})
	}))
	defer srv.Close()

	client := runner.NewClient(srv.URL)
	result, err := client.Poll(context.Background(), "remote-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if result.Status != runner.StatusFailed || result.Error != "CUDA out of memory" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPollUnknownJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Job not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := runner.NewClient(srv.URL)
	if _, err := client.Poll(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	client := runner.NewClient(srv.URL)
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}

	srv.Close()
	if err := client.Health(context.Background()); err == nil {
		t.Fatal("expected error when runner is down")
	}
}
