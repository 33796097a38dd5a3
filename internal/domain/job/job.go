package job

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no job has the given id.
	ErrNotFound = errors.New("job not found")
	// ErrNotReady is returned when a result is requested before the job completed.
	ErrNotReady = errors.New("job not complete")
	// ErrResultMissing is returned when a complete job's output file is gone from disk.
	ErrResultMissing = errors.New("job output missing")
)

// Message texts recorded on job transitions.
const (
	MessageQueued   = "Job queued"
	MessageRunning  = "Generating mesh"
	MessageComplete = "Generation complete"
	MessageNoOutput = "Generation failed to produce output"
)

// Job is one asynchronous generation request. OutputPath is only set on complete.
type Job struct {
	ID          string    `json:"id" yaml:"id"`
	Status      Status    `json:"status" yaml:"status"`
	Message     string    `json:"message" yaml:"message"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
	OutputPath  string    `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	ArtifactURL string    `json:"artifact_url,omitempty" yaml:"artifact_url,omitempty"`
}

// Field mutates one attribute of a job during Store.Set.
type Field func(*Job)

// WithStatus sets the status.
func WithStatus(s Status) Field {
	return func(j *Job) { j.Status = s }
}

// WithMessage sets the human readable message.
func WithMessage(msg string) Field {
	return func(j *Job) { j.Message = msg }
}

// WithOutputPath sets the exported model path.
func WithOutputPath(path string) Field {
	return func(j *Job) { j.OutputPath = path }
}

// WithArtifactURL sets the mirrored artifact URL.
func WithArtifactURL(url string) Field {
	return func(j *Job) { j.ArtifactURL = url }
}

// WithCreatedAt sets the creation time.
func WithCreatedAt(t time.Time) Field {
	return func(j *Job) { j.CreatedAt = t }
}

// Store is the process-wide job index shared by handlers and the runner.
type Store interface {
	// Get returns a copy of the job.
	Get(id string) (*Job, bool)
	// Set merges fields into the job, creating it with only its id when absent,
	// and returns the updated record.
	Set(id string, fields ...Field) Job
	// List returns jobs newest first, truncated to limit when limit > 0.
	List(limit int) []Job
}
