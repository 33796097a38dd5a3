// Package generation orchestrates image-to-mesh generation, both inline and
// as background jobs.
package generation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/domain/job"
	"jan-server/services/mesh-api/internal/domain/preprocess"
	"jan-server/services/mesh-api/internal/infrastructure/metrics"
	"jan-server/services/mesh-api/internal/utils/jobid"
)

var (
	// ErrNoImages is returned when a request carries no images.
	ErrNoImages = errors.New("no images provided")
	// ErrTooManyImages is returned when a request exceeds the image limit.
	ErrTooManyImages = errors.New("too many images")
	// ErrImageTooLarge is returned when one image exceeds the size limit.
	ErrImageTooLarge = errors.New("image too large")
	// ErrNoOutput is returned when a synchronous run produced no model file.
	ErrNoOutput = errors.New("generation failed to produce output")
)

// IsInputError reports whether err rejects the request before any work starts.
func IsInputError(err error) bool {
	return errors.Is(err, ErrNoImages) ||
		errors.Is(err, ErrTooManyImages) ||
		errors.Is(err, ErrImageTooLarge) ||
		errors.Is(err, preprocess.ErrDecode) ||
		errors.Is(err, preprocess.ErrUnsupportedImage)
}

// Task is one background job handed to the Scheduler.
type Task struct {
	JobID     string
	Inputs    []string
	OutputDir string
	Params    Params
}

// Scheduler starts a background run for a task without waiting for it.
type Scheduler interface {
	Schedule(task Task)
}

// Workspace stages uploaded inputs on disk and lays out output directories.
type Workspace interface {
	Stage(data []byte, ext string) (string, error)
	Cleanup(paths []string)
	OutputDir(id string) string
}

// Limits bounds what a single request may carry.
type Limits struct {
	MaxImages     int
	MaxImageBytes int64
}

// Service is the boundary the transport layer calls into.
type Service struct {
	pipeline  PipelineRunner
	store     job.Store
	scheduler Scheduler
	workspace Workspace
	limits    Limits
	log       zerolog.Logger
}

// NewService creates a Service.
func NewService(pipeline PipelineRunner, store job.Store, scheduler Scheduler, workspace Workspace, limits Limits, log zerolog.Logger) *Service {
	return &Service{
		pipeline:  pipeline,
		store:     store,
		scheduler: scheduler,
		workspace: workspace,
		limits:    limits,
		log:       log.With().Str("component", "generation_service").Logger(),
	}
}

type validatedImage struct {
	data []byte
	ext  string
}

func (s *Service) validate(req Request) ([]validatedImage, error) {
	if len(req.Images) == 0 {
		return nil, ErrNoImages
	}
	if s.limits.MaxImages > 0 && len(req.Images) > s.limits.MaxImages {
		return nil, fmt.Errorf("%w: %d supplied, at most %d allowed", ErrTooManyImages, len(req.Images), s.limits.MaxImages)
	}

	out := make([]validatedImage, len(req.Images))
	for i, src := range req.Images {
		data, err := src.Bytes()
		if err != nil {
			return nil, err
		}
		if s.limits.MaxImageBytes > 0 && int64(len(data)) > s.limits.MaxImageBytes {
			return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrImageTooLarge, label(src, i), len(data), s.limits.MaxImageBytes)
		}
		ext, err := preprocess.Validate(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", label(src, i), err)
		}
		out[i] = validatedImage{data: data, ext: ext}
	}
	return out, nil
}

func (s *Service) stage(images []validatedImage) ([]string, error) {
	paths := make([]string, 0, len(images))
	for _, img := range images {
		path, err := s.workspace.Stage(img.data, img.ext)
		if err != nil {
			s.workspace.Cleanup(paths)
			return nil, fmt.Errorf("stage input: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Generate runs the pipeline inline and returns the exported model path.
// Staged inputs are always removed.
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	images, err := s.validate(req)
	if err != nil {
		return "", err
	}
	paths, err := s.stage(images)
	if err != nil {
		return "", err
	}
	defer s.workspace.Cleanup(paths)

	id := jobid.New()
	path, err := s.pipeline.Run(ctx, SourcesFromPaths(paths), s.workspace.OutputDir(id), req.Params())
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", ErrNoOutput
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoOutput, err)
	}
	s.log.Info().Str("request_id", id).Str("path", path).Msg("synchronous generation complete")
	return path, nil
}

// Submit validates and stages the request, records a queued job and
// schedules it. Input errors never create a job.
func (s *Service) Submit(ctx context.Context, req Request) (*job.Job, error) {
	images, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	paths, err := s.stage(images)
	if err != nil {
		return nil, err
	}

	id := jobid.New()
	created := s.store.Set(id,
		job.WithStatus(job.StatusQueued),
		job.WithMessage(job.MessageQueued),
		job.WithCreatedAt(time.Now().UTC()),
	)
	metrics.RecordJobTransition(string(job.StatusQueued))

	s.scheduler.Schedule(Task{
		JobID:     id,
		Inputs:    paths,
		OutputDir: s.workspace.OutputDir(id),
		Params:    req.Params(),
	})
	s.log.Info().Str("job_id", id).Int("images", len(paths)).Msg("job queued")
	return &created, nil
}

// Status returns the current job record.
func (s *Service) Status(id string) (*job.Job, error) {
	j, ok := s.store.Get(id)
	if !ok {
		return nil, job.ErrNotFound
	}
	return j, nil
}

// Result returns the output path of a complete job.
func (s *Service) Result(id string) (string, error) {
	j, ok := s.store.Get(id)
	if !ok {
		return "", job.ErrNotFound
	}
	if j.Status != job.StatusComplete {
		return "", job.ErrNotReady
	}
	if j.OutputPath == "" {
		return "", job.ErrResultMissing
	}
	if _, err := os.Stat(j.OutputPath); err != nil {
		return "", fmt.Errorf("%w: %s", job.ErrResultMissing, j.OutputPath)
	}
	return j.OutputPath, nil
}

// List returns the most recent jobs, newest first.
func (s *Service) List(limit int) []job.Job {
	return s.store.List(limit)
}

// SourcesFromPaths turns staged input paths back into pipeline sources.
func SourcesFromPaths(paths []string) []ImageSource {
	out := make([]ImageSource, len(paths))
	for i, p := range paths {
		out[i] = ImageSource{Path: p}
	}
	return out
}

func label(src ImageSource, index int) string {
	if src.Name != "" {
		return src.Name
	}
	if src.Path != "" {
		return src.Path
	}
	return fmt.Sprintf("image %d", index)
}
