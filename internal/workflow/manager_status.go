package workflow

import (
	"context"

	"recap/internal/logging"
	"recap/internal/queue"
	"recap/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastJob     *queue.Job
	QueueStats  map[queue.Status]int
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(m.stages))
	for _, stg := range m.stages {
		if stg.handler == nil {
			continue
		}
		health[stg.name] = stg.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, QueueStats: stats, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copied := *lastJob
		summary.LastJob = &copied
	}
	return summary
}

// Healthy reports whether every stage handler is ready to run.
func (m *Manager) Healthy(ctx context.Context) bool {
	for _, stg := range m.stages {
		if stg.handler == nil {
			continue
		}
		if !stg.handler.HealthCheck(ctx).Ready {
			return false
		}
	}
	return true
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copied := *job
		m.lastJob = &copied
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
