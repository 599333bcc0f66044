// Package telemetry exposes prometheus metrics for the job pipeline.
// Metrics register on the default registry at import time and are
// served by whatever scrape endpoint the embedding process runs.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsStarted counts pipeline runs by configured model.
	JobsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "impactengine",
			Name:      "jobs_started_total",
			Help:      "Jobs started, by model type",
		},
		[]string{"model"},
	)

	// JobsCompleted counts terminal job states.
	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "impactengine",
			Name:      "jobs_completed_total",
			Help:      "Jobs reaching a terminal state, by status",
		},
		[]string{"model", "status"},
	)

	// StageFailures counts which pipeline stage a failed job died in.
	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "impactengine",
			Name:      "stage_failures_total",
			Help:      "Job failures, by pipeline stage",
		},
		[]string{"stage"},
	)

	// RowsRetrieved tracks metrics volume per source adapter.
	RowsRetrieved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "impactengine",
			Name:      "rows_retrieved_total",
			Help:      "Business metric rows retrieved, by source",
		},
		[]string{"source"},
	)

	// FitDuration observes model fit latency.
	FitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "impactengine",
			Name:      "fit_duration_seconds",
			Help:      "Model fit duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"model"},
	)
)

// ObserveFit records a completed fit.
func ObserveFit(model string, d time.Duration) {
	FitDuration.WithLabelValues(model).Observe(d.Seconds())
}
