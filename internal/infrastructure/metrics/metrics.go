package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mesh-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "mesh_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "mesh_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"method", "endpoint"},
	)

	// Pipeline stage duration
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "mesh_api",
			Name:      "stage_duration_seconds",
			Help:      "Generation pipeline stage duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage", "status"},
	)

	// Job lifecycle transitions
	JobTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "mesh_api",
			Name:      "job_transitions_total",
			Help:      "Job status transitions by target status",
		},
		[]string{"status"},
	)

	// Degraded paths taken instead of failing
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "mesh_api",
			Name:      "fallbacks_total",
			Help:      "One-shot fallback paths taken by the pipeline",
		},
		[]string{"kind"},
	)

	// Jobs currently executing
	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jan",
			Subsystem: "mesh_api",
			Name:      "jobs_in_flight",
			Help:      "Background jobs currently executing",
		},
	)
)

// Fallback kinds
const (
	FallbackMultiViewFirst    = "multiview_first"
	FallbackUnwrapParametrize = "unwrap_parametrize"
	FallbackSmoothingFailed   = "smoothing_failed"
	FallbackBakeFailed        = "bake_failed"
	FallbackBakeSkipped       = "bake_skipped"
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordStage records a pipeline stage execution
func RecordStage(stage string, err error, durationSec float64) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StageDuration.WithLabelValues(stage, status).Observe(durationSec)
}

// RecordJobTransition records a job entering status
func RecordJobTransition(status string) {
	JobTransitionsTotal.WithLabelValues(status).Inc()
}

// RecordFallback records a degraded path
func RecordFallback(kind string) {
	FallbacksTotal.WithLabelValues(kind).Inc()
}
