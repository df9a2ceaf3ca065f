package workflow

import (
	"context"
	"errors"
	"time"

	"recap/internal/logging"
	"recap/internal/metrics"
	"recap/internal/queue"
)

// Start launches the worker goroutine. Heartbeats left over from a previous
// process are cleared first so interrupted jobs resume instead of being
// reclaimed as stale.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow manager already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	if err := m.store.ClearHeartbeats(runCtx); err != nil {
		m.logger.Warn("failed to clear stale heartbeats at startup", logging.Error(err))
	}

	go m.run(runCtx)
	m.logger.Info("workflow manager started",
		logging.Duration("poll_interval", m.pollInterval))
	return nil
}

// Stop cancels the worker and waits for the in-flight stage to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.logger.Info("workflow manager stopped")
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		m.reclaimStale(ctx)
		m.publishQueueDepth(ctx)

		job, err := m.store.NextEligible(ctx)
		if err != nil {
			m.handleNextJobError(ctx, err)
			continue
		}
		if job == nil {
			if !m.waitForJobOrShutdown(ctx) {
				return
			}
			continue
		}

		m.setLastError(nil)
		m.processJob(ctx, job)
	}
}

// reclaimStale fails in-flight jobs whose heartbeats expired. Transcription
// gets a longer cutoff since legitimate runs can take hours.
func (m *Manager) reclaimStale(ctx context.Context) {
	timeout := time.Duration(m.cfg.Workflow.HeartbeatTimeout) * time.Second
	transcribeTimeout := time.Duration(m.cfg.Workflow.TranscribeHeartbeatTimeout) * time.Second
	if timeout <= 0 {
		return
	}
	now := time.Now()
	reclaimed, err := m.store.ReclaimStale(ctx, now.Add(-timeout), now.Add(-transcribeTimeout))
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.Warn("failed to reclaim stale jobs", logging.Error(err))
		}
		return
	}
	if reclaimed > 0 {
		m.logger.Info("reclaimed stale jobs", logging.Int64("count", reclaimed))
	}
}

func (m *Manager) publishQueueDepth(ctx context.Context) {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		return
	}
	for _, status := range queue.AllStatuses() {
		metrics.SetQueueDepth(string(status), stats[status])
	}
}

// waitForJobOrShutdown sleeps one poll interval. Returns false on shutdown.
func (m *Manager) waitForJobOrShutdown(ctx context.Context) bool {
	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (m *Manager) handleNextJobError(ctx context.Context, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.setLastError(err)
	m.logger.Error("failed to fetch next job", logging.Error(err))

	timer := time.NewTimer(m.errorRetryInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
