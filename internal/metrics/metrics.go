// Package metrics exposes the daemon's Prometheus collectors. The HTTP API
// serves them on /metrics via the default registry.
package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	jobsEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recap_jobs_enqueued_total",
			Help: "Jobs accepted into the queue.",
		},
	)

	jobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recap_jobs_processed_total",
			Help: "Jobs that reached a terminal status, labeled completed/failed/unavailable.",
		},
		[]string{"status"},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recap_stage_duration_seconds",
			Help:    "Wall-clock duration of each pipeline stage attempt.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		},
		[]string{"stage", "success"},
	)

	stageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recap_stage_failures_total",
			Help: "Stage failures by stage and error kind.",
		},
		[]string{"stage", "kind"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recap_queue_depth",
			Help: "Number of jobs in the queue per status.",
		},
		[]string{"status"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			jobsEnqueuedTotal,
			jobsProcessedTotal,
			stageDurationSeconds,
			stageFailuresTotal,
			queueDepth,
		)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// JobEnqueued counts a job accepted into the queue.
func JobEnqueued() {
	jobsEnqueuedTotal.Inc()
}

// JobFinished counts a job reaching a terminal status.
func JobFinished(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

// ObserveStage records one stage attempt's duration and outcome.
func ObserveStage(stage string, elapsed time.Duration, success bool) {
	label := "true"
	if !success {
		label = "false"
	}
	stageDurationSeconds.WithLabelValues(norm(stage), label).Observe(elapsed.Seconds())
}

// StageFailed counts a stage failure by error kind.
func StageFailed(stage, kind string) {
	stageFailuresTotal.WithLabelValues(norm(stage), norm(kind)).Inc()
}

// SetQueueDepth publishes the current job count for a status.
func SetQueueDepth(status string, count int) {
	queueDepth.WithLabelValues(norm(status)).Set(float64(count))
}
