package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ClearHeartbeats removes heartbeat markers from all in-flight jobs. Called at
// worker startup so interrupted jobs are resumed instead of being reclaimed as
// stale work from a previous process.
func (s *Store) ClearHeartbeats(ctx context.Context) error {
	placeholders := makePlaceholders(len(resumeOrder))
	args := make([]any, len(resumeOrder))
	for i, status := range resumeOrder {
		args[i] = status
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET last_heartbeat = NULL WHERE status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("clear heartbeats: %w", err)
	}
	return nil
}

// ReclaimStale fails in-flight jobs whose heartbeats expired. Transcription
// gets its own, longer cutoff since legitimate runs can take hours.
func (s *Store) ReclaimStale(ctx context.Context, cutoff, transcribeCutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	reclaim := func(cut time.Time, statuses ...Status) (int64, error) {
		const message = "stage heartbeat expired; reclaimed as stale"
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, 0, len(statuses)+4)
		args = append(args, StatusFailed, message, message, now)
		for _, status := range statuses {
			args = append(args, status)
		}
		args = append(args, cut.UTC().Format(time.RFC3339Nano))
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs
             SET status = ?, error_message = ?, progress_message = ?,
                 last_heartbeat = NULL, updated_at = ?
             WHERE status IN (`+placeholders+`) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
			args...,
		)
		if err != nil {
			return 0, fmt.Errorf("reclaim stale jobs: %w", err)
		}
		return res.RowsAffected()
	}

	total, err := reclaim(cutoff, StatusDownloading, StatusConverting, StatusSummarizing)
	if err != nil {
		return 0, err
	}
	transcribing, err := reclaim(transcribeCutoff, StatusTranscribing)
	if err != nil {
		return total, err
	}
	return total + transcribing, nil
}

// ResetStuckProcessing resets in-flight jobs back to pending. Operator command
// for jobs wedged mid-stage; artifacts on disk are kept and reused.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	placeholders := makePlaceholders(len(resumeOrder))
	args := make([]any, 0, len(resumeOrder)+2)
	args = append(args, StatusPending, time.Now().UTC().Format(time.RFC3339Nano))
	for _, status := range resumeOrder {
		args = append(args, status)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, progress_percent = 0, progress_message = NULL,
             error_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to pending for a fresh attempt. Artifacts
// are kept so completed stages are skipped on the retry.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs
            SET status = ?, progress_percent = 0, progress_message = NULL,
                error_message = NULL, remote_job_id = NULL, updated_at = ?
            WHERE status = ?`,
			StatusPending,
			timestamp,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusPending, timestamp)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE jobs
        SET status = ?, progress_percent = 0, progress_message = NULL,
            error_message = NULL, remote_job_id = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResumeJob rewinds a failed job to the earliest stage whose artifact is
// missing, so completed work is not redone. Unavailable jobs cannot resume.
func (s *Store) ResumeJob(ctx context.Context, id int64) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %d not found", id)
	}
	if job.Status != StatusFailed {
		return nil, fmt.Errorf("job %d is %s; only failed jobs can be resumed", id, job.Status)
	}

	status, baseline := resumePoint(job)
	job.Status = status
	job.ErrorMessage = ""
	job.RemoteJobID = ""
	job.LastHeartbeat = nil
	job.ResetProgress(baseline, "")
	if err := s.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func resumePoint(job *Job) (Status, float64) {
	if job.MediaFile == "" || !fileExists(job.MediaFile) {
		return StatusPending, 0
	}
	if job.AudioFile == "" || !fileExists(job.AudioFile) {
		return StatusConverting, ProgressFetched
	}
	if strings.TrimSpace(job.Transcript) == "" {
		return StatusTranscribing, ProgressTranscoded
	}
	return StatusSummarizing, ProgressTranscribed
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusFailed:
			health.Failed += count
		case StatusUnavailable:
			health.Unavailable += count
		case StatusCompleted:
			health.Completed += count
		default:
			if _, ok := processingStatuses[status]; ok {
				health.Processing += count
			}
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		DBPath:        s.path,
		SchemaVersion: fmt.Sprintf("%d", schemaVersion),
	}

	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat queue database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'jobs'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			health.TableExists = false
		} else {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		colsRows, err := s.db.QueryContext(connCtx, "PRAGMA table_info(jobs)")
		if err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("table info: %w", err)
		}
		defer colsRows.Close()

		var columns []string
		for colsRows.Next() {
			var (
				cid     int
				name    string
				typeStr string
				notNull int
				dflt    any
				pk      int
			)
			if err := colsRows.Scan(&cid, &name, &typeStr, &notNull, &dflt, &pk); err != nil {
				health.Error = err.Error()
				return health, fmt.Errorf("scan table info: %w", err)
			}
			columns = append(columns, name)
		}
		if err := colsRows.Err(); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("iterate table info: %w", err)
		}
		health.ColumnsPresent = append(health.ColumnsPresent, columns...)

		expected := strings.Split(jobColumns, ", ")
		missingMap := make(map[string]struct{}, len(expected))
		for _, col := range expected {
			missingMap[col] = struct{}{}
		}
		for _, col := range columns {
			delete(missingMap, col)
		}
		for col := range missingMap {
			health.MissingColumns = append(health.MissingColumns, col)
		}

		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM jobs")
		if err := row.Scan(&health.TotalJobs); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count jobs: %w", err)
		}
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all jobs from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes only completed jobs from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed jobs from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}
