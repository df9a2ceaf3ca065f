package workflow_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/queue"
	"recap/internal/services"
	"recap/internal/stage"
	"recap/internal/workflow"
)

// recorder captures stage invocations across all stubs in arrival order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(stageName string, jobID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf("%s:%d", stageName, jobID))
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type stubStage struct {
	name     string
	rec      *recorder
	progress float64
	execute  func(job *queue.Job) error
}

func (s *stubStage) Prepare(ctx context.Context, job *queue.Job) error { return nil }

func (s *stubStage) Execute(ctx context.Context, job *queue.Job) error {
	if s.rec != nil {
		s.rec.add(s.name, job.ID)
	}
	if s.execute != nil {
		if err := s.execute(job); err != nil {
			return err
		}
	}
	if s.progress > 0 {
		job.SetProgress(s.progress, s.name+" done")
	}
	return nil
}

func (s *stubStage) HealthCheck(ctx context.Context) stage.Health { return stage.Healthy(s.name) }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	return cfg
}

func openStore(t *testing.T) *queue.Store {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func stubSet(rec *recorder) workflow.StageSet {
	return workflow.StageSet{
		Fetcher:     &stubStage{name: "fetch", rec: rec, progress: queue.ProgressFetched},
		Transcoder:  &stubStage{name: "transcode", rec: rec, progress: queue.ProgressTranscoded},
		Transcriber: &stubStage{name: "transcribe", rec: rec, progress: queue.ProgressTranscribed},
		Summarizer:  &stubStage{name: "summarize", rec: rec, progress: queue.ProgressCompleted},
	}
}

func startManager(t *testing.T, cfg *config.Config, store *queue.Store, stages workflow.StageSet) *workflow.Manager {
	t.Helper()
	manager := workflow.NewManagerWithStages(cfg, store, logging.NewNop(), stages)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	t.Cleanup(manager.Stop)
	return manager
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.GetByID(context.Background(), id)
	t.Fatalf("job %d never reached %s (currently %s)", id, want, job.Status)
	return nil
}

func TestManagerRunsJobThroughAllStages(t *testing.T) {
	cfg := testConfig(t)
	store := openStore(t)
	rec := &recorder{}

	job, err := store.NewJob(context.Background(), "https://example.com/watch?v=abc123", "")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	startManager(t, cfg, store, stubSet(rec))
	done := waitForStatus(t, store, job.ID, queue.StatusCompleted)

	if done.ProgressPercent != queue.ProgressCompleted {
		t.Fatalf("unexpected progress: %v", done.ProgressPercent)
	}
	if done.CompletedAt == nil {
		t.Fatal("expected completed timestamp")
	}
	if done.LastHeartbeat != nil {
		t.Fatal("heartbeat should be cleared on completion")
	}

	events := done.StageEvents()
	if len(events) != 4 {
		t.Fatalf("expected 4 stage events, got %d", len(events))
	}
	order := []string{"fetch", "transcode", "transcribe", "summarize"}
	for i, event := range events {
		if event.Stage != order[i] {
			t.Fatalf("event %d: expected %s, got %s", i, order[i], event.Stage)
		}
		if event.FinishedAt == nil {
			t.Fatalf("event %s missing finish timestamp", event.Stage)
		}
	}

	want := []string{
		fmt.Sprintf("fetch:%d", job.ID),
		fmt.Sprintf("transcode:%d", job.ID),
		fmt.Sprintf("transcribe:%d", job.ID),
		fmt.Sprintf("summarize:%d", job.ID),
	}
	got := rec.snapshot()
	if len(got) != len(want) {
		t.Fatalf("unexpected calls: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestManagerParksUnavailableContent(t *testing.T) {
	cfg := testConfig(t)
	store := openStore(t)

	stages := stubSet(nil)
	stages.Fetcher = &stubStage{name: "fetch", execute: func(job *queue.Job) error {
		return services.Wrap(services.ErrUnavailable, "fetch", "download",
			"Video is private", nil)
	}}

	job, err := store.NewJob(context.Background(), "https://example.com/watch?v=gone", "")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	startManager(t, cfg, store, stages)
	done := waitForStatus(t, store, job.ID, queue.StatusUnavailable)

	if done.ErrorMessage == "" {
		t.Fatal("expected error message")
	}
}

func TestManagerRetriesTransientFailure(t *testing.T) {
	cfg := testConfig(t)
	store := openStore(t)

	var attempts int32
	var mu sync.Mutex
	stages := stubSet(nil)
	stages.Fetcher = &stubStage{name: "fetch", progress: queue.ProgressFetched,
		execute: func(job *queue.Job) error {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts == 1 {
				return services.Wrap(services.ErrTransient, "fetch", "download",
					"Network hiccup", nil)
			}
			return nil
		}}

	job, err := store.NewJob(context.Background(), "https://example.com/watch?v=flaky", "")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	startManager(t, cfg, store, stages)
	failed := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if failed.ErrorMessage == "" {
		t.Fatal("expected failure message")
	}

	if _, err := store.RetryFailed(context.Background(), job.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	waitForStatus(t, store, job.ID, queue.StatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Fatalf("expected 2 fetch attempts, got %d", attempts)
	}
}

func TestManagerResumesInFlightJobFirst(t *testing.T) {
	cfg := testConfig(t)
	store := openStore(t)
	rec := &recorder{}

	interrupted, err := store.NewJob(context.Background(), "https://example.com/watch?v=resume", "")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	interrupted.Status = queue.StatusTranscribing
	interrupted.ProgressPercent = queue.ProgressTranscoded
	if err := store.Update(context.Background(), interrupted); err != nil {
		t.Fatalf("update: %v", err)
	}

	fresh, err := store.NewJob(context.Background(), "https://example.com/watch?v=fresh", "")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	startManager(t, cfg, store, stubSet(rec))
	waitForStatus(t, store, interrupted.ID, queue.StatusCompleted)
	waitForStatus(t, store, fresh.ID, queue.StatusCompleted)

	calls := rec.snapshot()
	if len(calls) == 0 {
		t.Fatal("no stage calls recorded")
	}
	if calls[0] != fmt.Sprintf("transcribe:%d", interrupted.ID) {
		t.Fatalf("expected interrupted job to run first, got %v", calls)
	}
}

func TestManagerStatusReportsStageHealth(t *testing.T) {
	cfg := testConfig(t)
	store := openStore(t)

	manager := workflow.NewManagerWithStages(cfg, store, logging.NewNop(), stubSet(nil))
	summary := manager.Status(context.Background())

	if summary.Running {
		t.Fatal("manager should not report running before Start")
	}
	if len(summary.StageHealth) != 4 {
		t.Fatalf("expected 4 stage health entries, got %d", len(summary.StageHealth))
	}
	for name, health := range summary.StageHealth {
		if !health.Ready {
			t.Fatalf("stage %s unexpectedly unhealthy: %s", name, health.Detail)
		}
	}
	if !manager.Healthy(context.Background()) {
		t.Fatal("expected healthy manager")
	}
}

func TestManagerStartIsExclusive(t *testing.T) {
	cfg := testConfig(t)
	store := openStore(t)

	manager := startManager(t, cfg, store, stubSet(nil))
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}
