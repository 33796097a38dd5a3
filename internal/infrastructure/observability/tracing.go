package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "jan-server/mesh-api"
)

// GetTracer returns the tracer for the mesh-api service.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartStageSpan starts a span for one generation pipeline stage.
func StartStageSpan(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "pipeline."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartJobSpan starts a span covering one background job run.
func StartJobSpan(ctx context.Context, jobID string, images int) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "job.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.Int("job.images", images),
		),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error, severity string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("error.severity", severity))
}

// AddFallbackEvent marks a one-shot alternate path taken inside a stage.
func AddFallbackEvent(span trace.Span, kind, reason string) {
	span.AddEvent("fallback",
		trace.WithAttributes(
			attribute.String("fallback.kind", kind),
			attribute.String("fallback.reason", reason),
		),
	)
}

// AddStatusTransition adds a status transition event to a span.
func AddStatusTransition(span trace.Span, fromStatus, toStatus string) {
	span.AddEvent("status.transition",
		trace.WithAttributes(
			attribute.String("status.from", fromStatus),
			attribute.String("status.to", toStatus),
		),
	)
}
