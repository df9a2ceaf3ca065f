package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"recap/internal/logging"
	"recap/internal/metrics"
	"recap/internal/queue"
	"recap/internal/services"
)

// processJob runs one stage of one job. Advancing a job leaves it in the next
// stage's claim status; the run loop picks it up again on the next iteration.
func (m *Manager) processJob(ctx context.Context, job *queue.Job) {
	stg, ok := m.stageForStatus(job.Status)
	if !ok {
		m.logger.Warn("no stage registered for status",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldStatus, string(job.Status)))
		return
	}

	stageCtx := services.WithJobID(ctx, job.ID)
	stageCtx = services.WithStage(stageCtx, stg.name)
	stageCtx = services.WithRequestID(stageCtx, uuid.NewString())
	logger := logging.WithContext(stageCtx, m.logger)

	if err := m.transitionToProcessing(stageCtx, stg, job); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("failed to claim job", logging.Error(err))
			m.setLastError(err)
		}
		return
	}

	m.executeStage(stageCtx, stg, job)
	m.setLastJob(job)
}

// transitionToProcessing claims the job for a stage: processing status, the
// stage's progress baseline, a fresh heartbeat, and a stage timing event.
func (m *Manager) transitionToProcessing(ctx context.Context, stg pipelineStage, job *queue.Job) error {
	now := time.Now().UTC()
	job.Status = stg.processingStatus
	job.ErrorMessage = ""
	job.ResetProgress(stg.progressBaseline, fmt.Sprintf("Starting %s", stg.name))
	job.LastHeartbeat = &now
	job.MarkStageStarted(stg.name, now)
	return m.store.Update(ctx, job)
}

func (m *Manager) executeStage(ctx context.Context, stg pipelineStage, job *queue.Job) {
	logger := logging.WithContext(ctx, m.logger)
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String(logging.FieldURL, job.URL))
	start := time.Now()

	if err := stg.handler.Prepare(ctx, job); err != nil {
		m.handleStageFailure(ctx, stg, job, err)
		metrics.ObserveStage(stg.name, time.Since(start), false)
		return
	}
	if err := m.store.Update(ctx, job); err != nil {
		m.handleStageFailure(ctx, stg, job, err)
		metrics.ObserveStage(stg.name, time.Since(start), false)
		return
	}

	err := m.executeWithHeartbeat(ctx, stg, job)
	if err != nil {
		m.handleStageFailure(ctx, stg, job, err)
		metrics.ObserveStage(stg.name, time.Since(start), false)
		return
	}

	now := time.Now().UTC()
	job.Status = stg.doneStatus
	job.MarkStageFinished(stg.name, now)
	job.LastHeartbeat = nil
	if stg.doneStatus == queue.StatusCompleted {
		job.CompletedAt = &now
		job.SetProgress(queue.ProgressCompleted, "Completed")
		metrics.JobFinished(string(queue.StatusCompleted))
	}
	if err := m.store.Update(ctx, job); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("failed to persist stage result", logging.Error(err))
			m.setLastError(err)
		}
		return
	}

	metrics.ObserveStage(stg.name, time.Since(start), true)
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(stg.doneStatus)),
		logging.Duration("stage_duration", time.Since(start)))
}

// executeWithHeartbeat runs the stage handler while a background goroutine
// refreshes the job's heartbeat so the reclaimer leaves it alone.
func (m *Manager) executeWithHeartbeat(ctx context.Context, stg pipelineStage, job *queue.Job) error {
	hbCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go m.heartbeatLoop(hbCtx, &wg, job.ID)

	err := stg.handler.Execute(ctx, job)
	cancel()
	wg.Wait()
	return err
}

func (m *Manager) heartbeatLoop(ctx context.Context, wg *sync.WaitGroup, jobID int64) {
	defer wg.Done()
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.store.UpdateHeartbeat(ctx, jobID); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Warn("heartbeat update failed",
					logging.Int64(logging.FieldJobID, jobID),
					logging.Error(err))
			}
		}
	}
}
