package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "jan-server/mesh-api"

// GetMeter returns the meter for the mesh-api service. It is a no-op until
// Setup installs an OTLP meter provider.
func GetMeter() metric.Meter {
	return otel.Meter(meterName)
}

// JobInstrumenter exports background job metrics over OTLP.
type JobInstrumenter struct {
	jobsActive  metric.Int64UpDownCounter
	jobDuration metric.Float64Histogram
	jobsTotal   metric.Int64Counter
}

// NewJobInstrumenter creates the job instruments on meter.
func NewJobInstrumenter(meter metric.Meter) (*JobInstrumenter, error) {
	jobsActive, err := meter.Int64UpDownCounter(
		"jan_mesh_api_jobs_active",
		metric.WithDescription("Number of generation jobs executing"),
	)
	if err != nil {
		return nil, err
	}

	jobDuration, err := meter.Float64Histogram(
		"jan_mesh_api_job_duration_seconds",
		metric.WithDescription("Generation job duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	jobsTotal, err := meter.Int64Counter(
		"jan_mesh_api_jobs_total",
		metric.WithDescription("Total generation jobs finished"),
	)
	if err != nil {
		return nil, err
	}

	return &JobInstrumenter{
		jobsActive:  jobsActive,
		jobDuration: jobDuration,
		jobsTotal:   jobsTotal,
	}, nil
}

// Start marks a job as executing and returns the function that records its
// terminal status. A nil instrumenter records nothing.
func (j *JobInstrumenter) Start(ctx context.Context) func(status string) {
	if j == nil {
		return func(string) {}
	}
	j.jobsActive.Add(ctx, 1)
	start := time.Now()

	return func(status string) {
		j.jobsActive.Add(ctx, -1)
		attrs := metric.WithAttributes(attribute.String("status", status))
		j.jobDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		j.jobsTotal.Add(ctx, 1, attrs)
	}
}
