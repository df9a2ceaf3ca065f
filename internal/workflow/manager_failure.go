package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recap/internal/logging"
	"recap/internal/metrics"
	"recap/internal/queue"
	"recap/internal/services"
)

// handleStageFailure classifies a stage error, persists the resulting status,
// and records the failure. Content errors park the job as unavailable;
// everything else becomes a retryable failure.
func (m *Manager) handleStageFailure(ctx context.Context, stg pipelineStage, job *queue.Job, stageErr error) {
	logger := logging.WithContext(ctx, m.logger)

	details := services.Details(stageErr)
	message := m.failureMessage(stg.name, stageErr, details)
	status := services.FailureStatus(stageErr)

	if status == queue.StatusUnavailable {
		job.SetUnavailable(message)
	} else {
		job.SetFailed(message)
	}
	job.MarkStageFinished(stg.name, time.Now().UTC())

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("resolved_status", string(status)),
		logging.String("error_kind", string(details.Kind)),
		logging.String("error_message", strings.TrimSpace(message)),
	}
	if details.Operation != "" {
		attrs = append(attrs, logging.String("operation", details.Operation))
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(stageErr))
	}
	logger.Error("stage failed", logging.Args(attrs...)...)

	metrics.StageFailed(stg.name, string(details.Kind))
	metrics.JobFinished(string(status))

	if err := m.store.Update(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastError(stageErr)
}

func (m *Manager) failureMessage(stageName string, stageErr error, details services.ErrorDetails) string {
	if message := strings.TrimSpace(details.Message); message != "" {
		return message
	}
	if stageErr != nil {
		if message := strings.TrimSpace(stageErr.Error()); message != "" {
			return message
		}
	}
	return fmt.Sprintf("%s failed without error detail", stageName)
}
