package api

import (
	"encoding/json"
	"slices"
	"time"

	"recap/internal/queue"
	"recap/internal/stage"
	"recap/internal/workflow"
)

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}

	dto := Job{
		ID:     job.ID,
		URL:    job.URL,
		Title:  job.Title,
		Status: string(job.Status),
		Progress: JobProgress{
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		LanguageHint:     job.LanguageHint,
		DetectedLanguage: job.DetectedLanguage,
		MediaFile:        job.MediaFile,
		AudioFile:        job.AudioFile,
		TranscriptFile:   job.TranscriptFile,
		Summary:          job.Summary,
		Keywords:         job.Keywords(),
		ErrorMessage:     job.ErrorMessage,
		RemoteJobID:      job.RemoteJobID,
		CreatedAt:        FormatTime(job.CreatedAt),
		UpdatedAt:        FormatTime(job.UpdatedAt),
	}
	if job.CompletedAt != nil {
		dto.CompletedAt = FormatTime(*job.CompletedAt)
	}
	for _, event := range job.StageEvents() {
		converted := StageEvent{
			Stage:     event.Stage,
			StartedAt: FormatTime(event.StartedAt),
		}
		if event.FinishedAt != nil {
			converted.FinishedAt = FormatTime(*event.FinishedAt)
		}
		dto.StageEvents = append(dto.StageEvents, converted)
	}
	if raw := job.MetadataJSON; raw != "" {
		dto.Metadata = json.RawMessage(raw)
	}
	return dto
}

// FromJobs converts a slice of queue records into API DTOs.
func FromJobs(jobs []*queue.Job) []Job {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to its API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if summary.LastError != "" {
		wf.LastError = summary.LastError
	}
	if summary.LastJob != nil {
		last := FromJob(summary.LastJob)
		wf.LastJob = &last
	}
	return wf
}

// MergeQueueStats produces a string-keyed representation of queue stats.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice converts a stage health map into a deterministic slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
