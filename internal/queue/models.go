package queue

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a queued job.
type Status string

const (
	StatusPending      Status = "pending"
	StatusDownloading  Status = "downloading"
	StatusConverting   Status = "converting"
	StatusTranscribing Status = "transcribing"
	StatusSummarizing  Status = "summarizing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusUnavailable  Status = "unavailable"
)

var allStatuses = []Status{
	StatusPending,
	StatusDownloading,
	StatusConverting,
	StatusTranscribing,
	StatusSummarizing,
	StatusCompleted,
	StatusFailed,
	StatusUnavailable,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// processingStatuses mark jobs claimed by the worker. A job found in one of
// these at claim time is resumed from that stage rather than restarted.
var processingStatuses = map[Status]struct{}{
	StatusDownloading:  {},
	StatusConverting:   {},
	StatusTranscribing: {},
	StatusSummarizing:  {},
}

// resumeOrder lists processing statuses in pipeline order for resume scans.
var resumeOrder = []Status{
	StatusDownloading,
	StatusConverting,
	StatusTranscribing,
	StatusSummarizing,
}

// Progress checkpoints persisted when a stage completes.
const (
	ProgressFetched     = 25.0
	ProgressTranscoded  = 50.0
	ProgressTranscribed = 90.0
	ProgressCompleted   = 100.0
)

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total       int
	Pending     int
	Processing  int
	Failed      int
	Unavailable int
	Completed   int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// StageEvent records one attempt of one stage. Events are append-only so a
// retried job keeps the timing history of earlier attempts.
type StageEvent struct {
	Stage      string     `json:"stage"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Job represents a queued video persisted in SQLite.
type Job struct {
	ID                  int64
	URL                 string
	Title               string
	Status              Status
	LanguageHint        string
	DetectedLanguage    string
	MediaFile           string
	AudioFile           string
	TranscriptFile      string
	Transcript          string
	Summary             string
	KeywordsJSON        string
	MetadataJSON        string
	ErrorMessage        string
	ProgressPercent     float64
	ProgressMessage     string
	RemoteJobID         string
	StageTimestampsJSON string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CompletedAt         *time.Time
	LastHeartbeat       *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (j Job) IsProcessing() bool {
	_, ok := processingStatuses[j.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends the pipeline for a job.
func IsTerminal(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusUnavailable:
		return true
	default:
		return false
	}
}

// SetProgress updates the progress fields. Percent never moves backwards
// within an attempt; retry and resume reset it explicitly.
func (j *Job) SetProgress(percent float64, message string) {
	if percent > 100 {
		percent = 100
	}
	if percent >= j.ProgressPercent {
		j.ProgressPercent = percent
	}
	if message != "" {
		j.ProgressMessage = message
	}
}

// ResetProgress rewinds progress to the given baseline, bypassing the
// monotonic guard. Used when a job is retried or resumed.
func (j *Job) ResetProgress(percent float64, message string) {
	j.ProgressPercent = percent
	j.ProgressMessage = message
}

// SetFailed marks the job as failed with the given error message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressMessage = message
	j.LastHeartbeat = nil
}

// SetUnavailable marks the job's content as permanently inaccessible.
func (j *Job) SetUnavailable(message string) {
	j.Status = StatusUnavailable
	j.ErrorMessage = message
	j.ProgressMessage = message
	j.LastHeartbeat = nil
}

// StageEvents decodes the recorded stage timing history.
func (j *Job) StageEvents() []StageEvent {
	if strings.TrimSpace(j.StageTimestampsJSON) == "" {
		return nil
	}
	var events []StageEvent
	if err := json.Unmarshal([]byte(j.StageTimestampsJSON), &events); err != nil {
		return nil
	}
	return events
}

// MarkStageStarted appends a stage timing event for a new attempt.
func (j *Job) MarkStageStarted(stage string, now time.Time) {
	events := j.StageEvents()
	events = append(events, StageEvent{Stage: stage, StartedAt: now.UTC()})
	j.storeStageEvents(events)
}

// MarkStageFinished closes the most recent open event for the stage.
func (j *Job) MarkStageFinished(stage string, now time.Time) {
	events := j.StageEvents()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Stage == stage && events[i].FinishedAt == nil {
			finished := now.UTC()
			events[i].FinishedAt = &finished
			break
		}
	}
	j.storeStageEvents(events)
}

func (j *Job) storeStageEvents(events []StageEvent) {
	if len(events) == 0 {
		j.StageTimestampsJSON = ""
		return
	}
	data, err := json.Marshal(events)
	if err != nil {
		return
	}
	j.StageTimestampsJSON = string(data)
}

// Keywords decodes the keyword list generated by the summarize stage.
func (j *Job) Keywords() []string {
	if strings.TrimSpace(j.KeywordsJSON) == "" {
		return nil
	}
	var keywords []string
	if err := json.Unmarshal([]byte(j.KeywordsJSON), &keywords); err != nil {
		return nil
	}
	return keywords
}

// SetKeywords encodes and stores the keyword list.
func (j *Job) SetKeywords(keywords []string) {
	if len(keywords) == 0 {
		j.KeywordsJSON = ""
		return
	}
	data, err := json.Marshal(keywords)
	if err != nil {
		return
	}
	j.KeywordsJSON = string(data)
}
