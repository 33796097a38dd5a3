package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/domain/generation"
	"jan-server/services/mesh-api/internal/domain/job"
	"jan-server/services/mesh-api/internal/infrastructure/metrics"
	"jan-server/services/mesh-api/internal/infrastructure/observability"
)

// DefaultMirrorTimeout bounds one artifact upload when no timeout is configured.
const DefaultMirrorTimeout = 2 * time.Minute

// InputCleaner removes staged input files.
type InputCleaner interface {
	Cleanup(paths []string)
}

// ArtifactMirror copies a finished model somewhere downloadable.
type ArtifactMirror interface {
	Enabled() bool
	Mirror(ctx context.Context, jobID, localPath string) (string, error)
}

// Runner executes one job: running, then complete or error. Staged inputs
// are always removed, whatever the outcome.
type Runner struct {
	pipeline generation.PipelineRunner
	store    job.Store
	cleaner  InputCleaner
	mirror   ArtifactMirror
	timeout  time.Duration
	otel     *observability.JobInstrumenter
	log      zerolog.Logger
}

// NewRunner creates a Runner. mirror may be nil. A non-positive
// mirrorTimeout selects DefaultMirrorTimeout.
func NewRunner(pipeline generation.PipelineRunner, store job.Store, cleaner InputCleaner, mirror ArtifactMirror, mirrorTimeout time.Duration, log zerolog.Logger) *Runner {
	if mirrorTimeout <= 0 {
		mirrorTimeout = DefaultMirrorTimeout
	}
	logger := log.With().Str("component", "job-runner").Logger()
	instrumenter, err := observability.NewJobInstrumenter(observability.GetMeter())
	if err != nil {
		logger.Warn().Err(err).Msg("job instruments unavailable")
	}
	return &Runner{
		pipeline: pipeline,
		store:    store,
		cleaner:  cleaner,
		mirror:   mirror,
		timeout:  mirrorTimeout,
		otel:     instrumenter,
		log:      logger,
	}
}

// Run drives the job to a terminal state.
func (r *Runner) Run(ctx context.Context, task generation.Task) {
	defer r.cleaner.Cleanup(task.Inputs)

	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	outcome := "skipped"
	finish := r.otel.Start(ctx)
	defer func() { finish(outcome) }()

	ctx, span := observability.StartJobSpan(ctx, task.JobID, len(task.Inputs))
	defer span.End()
	log := r.log.With().Str("job_id", task.JobID).Logger()

	if !r.transition(task.JobID, job.StatusRunning, job.WithMessage(job.MessageRunning)) {
		return
	}
	observability.AddStatusTransition(span, string(job.StatusQueued), string(job.StatusRunning))
	log.Info().Int("images", len(task.Inputs)).Msg("job started")

	path, err := r.execute(ctx, task)
	if err != nil {
		observability.RecordError(span, err, "error")
		observability.AddStatusTransition(span, string(job.StatusRunning), string(job.StatusError))
		log.Error().Err(err).Msg("job failed")
		outcome = string(job.StatusError)
		r.transition(task.JobID, job.StatusError, job.WithMessage(err.Error()))
		return
	}
	if path == "" || !exists(path) {
		observability.AddStatusTransition(span, string(job.StatusRunning), string(job.StatusError))
		log.Error().Str("path", path).Msg("job produced no output")
		outcome = string(job.StatusError)
		r.transition(task.JobID, job.StatusError, job.WithMessage(job.MessageNoOutput))
		return
	}

	fields := []job.Field{job.WithMessage(job.MessageComplete), job.WithOutputPath(path)}
	if url := r.mirrorArtifact(ctx, task.JobID, path, log); url != "" {
		fields = append(fields, job.WithArtifactURL(url))
	}
	observability.AddStatusTransition(span, string(job.StatusRunning), string(job.StatusComplete))
	outcome = string(job.StatusComplete)
	r.transition(task.JobID, job.StatusComplete, fields...)
	log.Info().Str("path", path).Msg("job complete")
}

func (r *Runner) execute(ctx context.Context, task generation.Task) (path string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pipeline panic: %v", rec)
		}
	}()
	return r.pipeline.Run(ctx, generation.SourcesFromPaths(task.Inputs), task.OutputDir, task.Params)
}

// transition moves the job to target if its current status allows it.
func (r *Runner) transition(id string, target job.Status, fields ...job.Field) bool {
	if current, ok := r.store.Get(id); ok && !current.Status.CanTransitionTo(target) {
		r.log.Warn().
			Str("job_id", id).
			Str("from", string(current.Status)).
			Str("to", string(target)).
			Msg("ignoring invalid job transition")
		return false
	}
	r.store.Set(id, append([]job.Field{job.WithStatus(target)}, fields...)...)
	metrics.RecordJobTransition(string(target))
	return true
}

func (r *Runner) mirrorArtifact(ctx context.Context, jobID, path string, log zerolog.Logger) string {
	if r.mirror == nil || !r.mirror.Enabled() {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	url, err := r.mirror.Mirror(ctx, jobID, path)
	if err != nil {
		log.Warn().Err(err).Msg("failed to mirror model, serving from local disk only")
		return ""
	}
	return url
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
