package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	neturl "net/url"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"recap/internal/config"
)

// ErrDuplicateURL indicates the URL already has an active job in the queue.
var ErrDuplicateURL = errors.New("url already queued")

// ErrInvalidURL indicates the URL cannot be fetched (bad scheme or host).
var ErrInvalidURL = errors.New("invalid url")

// Store manages queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "queue.db"))
}

// OpenPath connects to the queue database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the queue database location.
func (s *Store) Path() string {
	return s.path
}

// NewJob enqueues a video URL for processing. A URL with an active job
// (anything not completed, failed, or unavailable) is rejected.
func (s *Store) NewJob(ctx context.Context, url, languageHint string) (*Job, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	parsed, err := neturl.Parse(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}

	existing, err := s.FindActiveByURL(ctx, url)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: job %d is %s", ErrDuplicateURL, existing.ID, existing.Status)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            url, status, language_hint, created_at, updated_at,
            progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		url,
		StatusPending,
		nullableString(strings.TrimSpace(languageHint)),
		timestamp,
		timestamp,
		0.0,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindActiveByURL returns the first non-terminal job for a URL, if any.
func (s *Store) FindActiveByURL(ctx context.Context, url string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE url = ? AND status NOT IN (?, ?, ?)
         ORDER BY id LIMIT 1`,
		url,
		StatusCompleted,
		StatusFailed,
		StatusUnavailable,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by url: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET url = ?, title = ?, status = ?, language_hint = ?, detected_language = ?,
             media_file = ?, audio_file = ?, transcript_file = ?, transcript = ?,
             summary = ?, keywords_json = ?, metadata_json = ?, error_message = ?,
             progress_percent = ?, progress_message = ?, remote_job_id = ?,
             stage_timestamps_json = ?, updated_at = ?, completed_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		job.URL,
		nullableString(job.Title),
		job.Status,
		nullableString(job.LanguageHint),
		nullableString(job.DetectedLanguage),
		nullableString(job.MediaFile),
		nullableString(job.AudioFile),
		nullableString(job.TranscriptFile),
		nullableString(job.Transcript),
		nullableString(job.Summary),
		nullableString(job.KeywordsJSON),
		nullableString(job.MetadataJSON),
		nullableString(job.ErrorMessage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.RemoteJobID),
		nullableString(job.StageTimestampsJSON),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.CompletedAt),
		nullableTime(job.LastHeartbeat),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// JobsByStatus returns jobs matching a status ordered by creation time.
func (s *Store) JobsByStatus(ctx context.Context, status Status) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// NextEligible returns the job the worker should claim next. Jobs interrupted
// mid-stage take priority (oldest update first) so work in flight is finished
// before new downloads begin; otherwise the oldest pending job is returned.
func (s *Store) NextEligible(ctx context.Context) (*Job, error) {
	placeholders := makePlaceholders(len(resumeOrder))
	args := make([]any, len(resumeOrder))
	for i, status := range resumeOrder {
		args[i] = status
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN (` + placeholders + `) ORDER BY updated_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("next resumable job: %w", err)
	}
	if job != nil {
		return job, nil
	}

	row = s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at LIMIT 1`, StatusPending)
	job, err = scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending job: %w", err)
	}
	return job, nil
}

const jobColumns = "id, url, title, status, language_hint, detected_language, media_file, audio_file, transcript_file, transcript, summary, keywords_json, metadata_json, error_message, progress_percent, progress_message, remote_job_id, stage_timestamps_json, created_at, updated_at, completed_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		url             string
		title           sql.NullString
		statusStr       string
		languageHint    sql.NullString
		detectedLang    sql.NullString
		mediaFile       sql.NullString
		audioFile       sql.NullString
		transcriptFile  sql.NullString
		transcript      sql.NullString
		summary         sql.NullString
		keywordsJSON    sql.NullString
		metadataJSON    sql.NullString
		errorMessage    sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		remoteJobID     sql.NullString
		stageStamps     sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		completedRaw    sql.NullString
		heartbeatRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&url,
		&title,
		&statusStr,
		&languageHint,
		&detectedLang,
		&mediaFile,
		&audioFile,
		&transcriptFile,
		&transcript,
		&summary,
		&keywordsJSON,
		&metadataJSON,
		&errorMessage,
		&progressPercent,
		&progressMessage,
		&remoteJobID,
		&stageStamps,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                  id,
		URL:                 url,
		Title:               title.String,
		Status:              Status(statusStr),
		LanguageHint:        languageHint.String,
		DetectedLanguage:    detectedLang.String,
		MediaFile:           mediaFile.String,
		AudioFile:           audioFile.String,
		TranscriptFile:      transcriptFile.String,
		Transcript:          transcript.String,
		Summary:             summary.String,
		KeywordsJSON:        keywordsJSON.String,
		MetadataJSON:        metadataJSON.String,
		ErrorMessage:        errorMessage.String,
		ProgressPercent:     progressPercent.Float64,
		ProgressMessage:     progressMessage.String,
		RemoteJobID:         remoteJobID.String,
		StageTimestampsJSON: stageStamps.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
