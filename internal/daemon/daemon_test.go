package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"recap/internal/api"
	"recap/internal/config"
	"recap/internal/daemon"
	"recap/internal/logging"
	"recap/internal/queue"
	"recap/internal/stage"
	"recap/internal/workflow"
)

// blockedStage never executes; daemon tests drive the queue over HTTP and do
// not want jobs advancing underneath them.
type blockedStage struct{ name string }

func (s blockedStage) Prepare(ctx context.Context, job *queue.Job) error { return nil }
func (s blockedStage) Execute(ctx context.Context, job *queue.Job) error {
	<-ctx.Done()
	return ctx.Err()
}
func (s blockedStage) HealthCheck(ctx context.Context) stage.Health { return stage.Healthy(s.name) }

func testDaemon(t *testing.T, token string) (*daemon.Daemon, *queue.Store) {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.MediaDir = filepath.Join(base, "media")
	cfg.Paths.AudioDir = filepath.Join(base, "audio")
	cfg.Paths.TranscriptDir = filepath.Join(base, "transcripts")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.API.Bind = "127.0.0.1:0"
	cfg.API.Token = token
	cfg.Workflow.QueuePollInterval = 1

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	manager := workflow.NewManagerWithStages(cfg, store, logging.NewNop(), workflow.StageSet{
		Fetcher:     blockedStage{name: "fetch"},
		Transcoder:  blockedStage{name: "transcode"},
		Transcriber: blockedStage{name: "transcribe"},
		Summarizer:  blockedStage{name: "summarize"},
	})
	d, err := daemon.New(cfg, store, logging.NewNop(), manager)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d, store
}

func doRequest(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func TestDaemonServesJobLifecycle(t *testing.T) {
	d, _ := testDaemon(t, "")
	base := "http://" + d.APIAddr()

	resp, data := doRequest(t, http.MethodPost, base+"/api/jobs", "",
		api.AddJobRequest{URL: "https://example.com/watch?v=abc123", Language: "en"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add job: %d %s", resp.StatusCode, data)
	}
	var created api.JobResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Job.Status != "pending" || created.Job.LanguageHint != "en" {
		t.Fatalf("unexpected job: %+v", created.Job)
	}

	resp, data = doRequest(t, http.MethodPost, base+"/api/jobs", "",
		api.AddJobRequest{URL: "https://example.com/watch?v=abc123"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate add: %d %s", resp.StatusCode, data)
	}

	resp, data = doRequest(t, http.MethodGet, base+"/api/jobs?status=pending", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", resp.StatusCode, data)
	}
	var list api.JobListResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Jobs) != 1 {
		t.Fatalf("expected 1 pending job, got %d", len(list.Jobs))
	}

	jobURL := fmt.Sprintf("%s/api/jobs/%d", base, created.Job.ID)
	resp, data = doRequest(t, http.MethodGet, jobURL, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get job: %d %s", resp.StatusCode, data)
	}

	resp, _ = doRequest(t, http.MethodGet, base+"/api/jobs/9999", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing job: %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, http.MethodDelete, jobURL, "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete job: %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodDelete, jobURL, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("delete twice: %d", resp.StatusCode)
	}
}

func TestDaemonRetryAndStatus(t *testing.T) {
	d, store := testDaemon(t, "")
	base := "http://" + d.APIAddr()

	job, err := store.NewJob(context.Background(), "https://example.com/watch?v=broken", "")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.SetFailed("download failed")
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("update: %v", err)
	}

	resp, data := doRequest(t, http.MethodPost, fmt.Sprintf("%s/api/jobs/%d/retry", base, job.ID), "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("retry: %d %s", resp.StatusCode, data)
	}
	refreshed, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if refreshed.Status != queue.StatusPending {
		t.Fatalf("expected pending after retry, got %s", refreshed.Status)
	}

	resp, data = doRequest(t, http.MethodGet, base+"/api/status", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d %s", resp.StatusCode, data)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("expected running daemon, got %+v", status)
	}
	if len(status.Workflow.StageHealth) != 4 {
		t.Fatalf("expected 4 stage health entries: %+v", status.Workflow.StageHealth)
	}

	resp, _ = doRequest(t, http.MethodGet, base+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}

	resp, data = doRequest(t, http.MethodGet, base+"/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
	if !bytes.Contains(data, []byte("recap_queue_depth")) {
		t.Fatal("expected recap metrics in exposition")
	}
}

func TestDaemonRequiresBearerToken(t *testing.T) {
	d, _ := testDaemon(t, "secret")
	base := "http://" + d.APIAddr()

	resp, _ := doRequest(t, http.MethodGet, base+"/api/status", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodGet, base+"/api/status", "wrong", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodGet, base+"/api/status", "secret", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}

	// Health and metrics stay open for probes.
	resp, _ = doRequest(t, http.MethodGet, base+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz should not require auth, got %d", resp.StatusCode)
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	d, store := testDaemon(t, "")

	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Dir(d.Status(context.Background()).LockFilePath)
	cfg.API.Bind = ""

	manager := workflow.NewManagerWithStages(cfg, store, logging.NewNop(), workflow.StageSet{
		Fetcher:     blockedStage{name: "fetch"},
		Transcoder:  blockedStage{name: "transcode"},
		Transcriber: blockedStage{name: "transcribe"},
		Summarizer:  blockedStage{name: "summarize"},
	})
	second, err := daemon.New(cfg, store, logging.NewNop(), manager)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to fail lock acquisition")
	}
}
