package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a queue entry in a transport-friendly format.
type Job struct {
	ID               int64           `json:"id"`
	URL              string          `json:"url"`
	Title            string          `json:"title,omitempty"`
	Status           string          `json:"status"`
	Progress         JobProgress     `json:"progress"`
	LanguageHint     string          `json:"languageHint,omitempty"`
	DetectedLanguage string          `json:"detectedLanguage,omitempty"`
	MediaFile        string          `json:"mediaFile,omitempty"`
	AudioFile        string          `json:"audioFile,omitempty"`
	TranscriptFile   string          `json:"transcriptFile,omitempty"`
	Summary          string          `json:"summary,omitempty"`
	Keywords         []string        `json:"keywords,omitempty"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	RemoteJobID      string          `json:"remoteJobId,omitempty"`
	CreatedAt        string          `json:"createdAt,omitempty"`
	UpdatedAt        string          `json:"updatedAt,omitempty"`
	CompletedAt      string          `json:"completedAt,omitempty"`
	StageEvents      []StageEvent    `json:"stageEvents,omitempty"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
}

// JobProgress captures pipeline progress for a queue entry.
type JobProgress struct {
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// StageEvent mirrors one recorded stage attempt.
type StageEvent struct {
	Stage      string `json:"stage"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *Job           `json:"lastJob,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	QueueDBPath  string         `json:"queueDbPath"`
	LockFilePath string         `json:"lockFilePath"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// AddJobRequest is the payload for enqueueing a video URL.
type AddJobRequest struct {
	URL      string `json:"url"`
	Language string `json:"language,omitempty"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// CountResponse reports how many jobs a bulk operation touched.
type CountResponse struct {
	Affected int64 `json:"affected"`
}

// ErrorResponse carries an API error message.
type ErrorResponse struct {
	Error string `json:"error"`
}
