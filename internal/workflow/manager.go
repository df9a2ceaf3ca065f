package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"recap/internal/config"
	"recap/internal/fetcher"
	"recap/internal/logging"
	"recap/internal/queue"
	"recap/internal/stage"
	"recap/internal/summarizer"
	"recap/internal/transcoder"
	"recap/internal/transcriber"
)

// StageSet bundles the concrete handlers the manager orchestrates.
type StageSet struct {
	Fetcher     stage.Handler
	Transcoder  stage.Handler
	Transcriber stage.Handler
	Summarizer  stage.Handler
}

// pipelineStage binds a handler to the queue statuses it owns. claimStatus is
// what the job looks like when the worker picks it up, processingStatus is
// written while the handler runs, and doneStatus is where success leaves it.
type pipelineStage struct {
	name             string
	handler          stage.Handler
	claimStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
	progressBaseline float64
}

// Manager runs the single pipeline worker over the queue.
type Manager struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger

	stages        []pipelineStage
	stageByStatus map[queue.Status]pipelineStage

	pollInterval       time.Duration
	errorRetryInterval time.Duration
	heartbeatInterval  time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
}

// NewManager builds a manager with the default stage handlers.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithStages(cfg, store, logger, StageSet{
		Fetcher:     fetcher.NewFetcher(cfg, store, logger),
		Transcoder:  transcoder.NewTranscoder(cfg, store, logger),
		Transcriber: transcriber.NewTranscriber(cfg, store, logger),
		Summarizer:  summarizer.NewSummarizer(cfg, store, logger),
	})
}

// NewManagerWithStages allows injecting stage handlers (used in tests).
func NewManagerWithStages(cfg *config.Config, store *queue.Store, logger *slog.Logger, stages StageSet) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:                cfg,
		store:              store,
		logger:             logging.NewComponentLogger(logger, "workflow-manager"),
		pollInterval:       time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		heartbeatInterval:  time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second,
	}

	m.stages = []pipelineStage{
		{
			name:             "fetch",
			handler:          stages.Fetcher,
			claimStatus:      queue.StatusPending,
			processingStatus: queue.StatusDownloading,
			doneStatus:       queue.StatusConverting,
			progressBaseline: 0,
		},
		{
			name:             "transcode",
			handler:          stages.Transcoder,
			claimStatus:      queue.StatusConverting,
			processingStatus: queue.StatusConverting,
			doneStatus:       queue.StatusTranscribing,
			progressBaseline: queue.ProgressFetched,
		},
		{
			name:             "transcribe",
			handler:          stages.Transcriber,
			claimStatus:      queue.StatusTranscribing,
			processingStatus: queue.StatusTranscribing,
			doneStatus:       queue.StatusSummarizing,
			progressBaseline: queue.ProgressTranscoded,
		},
		{
			name:             "summarize",
			handler:          stages.Summarizer,
			claimStatus:      queue.StatusSummarizing,
			processingStatus: queue.StatusSummarizing,
			doneStatus:       queue.StatusCompleted,
			progressBaseline: queue.ProgressTranscribed,
		},
	}

	m.stageByStatus = make(map[queue.Status]pipelineStage, len(m.stages)+1)
	for _, stg := range m.stages {
		m.stageByStatus[stg.claimStatus] = stg
	}
	// A job reclaimed mid-download restarts the fetch stage.
	m.stageByStatus[queue.StatusDownloading] = m.stages[0]

	return m
}

// stageForStatus resolves the stage that owns a job in the given status.
func (m *Manager) stageForStatus(status queue.Status) (pipelineStage, bool) {
	stg, ok := m.stageByStatus[status]
	return stg, ok
}
