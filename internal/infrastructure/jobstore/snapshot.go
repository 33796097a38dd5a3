// Package jobstore keeps job records in memory and mirrors them to a JSON
// snapshot for inspection after a restart.
package jobstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/domain/job"
)

// FileSnapshotter writes the job collection as a JSON object keyed by id.
// Writes are not atomic; a crash mid-write can leave a corrupt file.
type FileSnapshotter struct {
	path string
}

// NewFileSnapshotter creates a snapshotter for path.
func NewFileSnapshotter(path string) *FileSnapshotter {
	return &FileSnapshotter{path: path}
}

// Path returns the snapshot file path.
func (f *FileSnapshotter) Path() string {
	return f.path
}

// Save overwrites the snapshot file.
func (f *FileSnapshotter) Save(jobs map[string]job.Job) error {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode job snapshot: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write job snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot file. A missing file yields an empty collection.
func LoadSnapshot(path string) (map[string]job.Job, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]job.Job{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read job snapshot: %w", err)
	}
	records := map[string]job.Job{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode job snapshot: %w", err)
	}
	return records, nil
}

// Open builds a MemoryStore backed by the snapshot at path, restoring any
// records it already holds. A corrupt snapshot is logged and ignored.
func Open(path string, log zerolog.Logger) *MemoryStore {
	snap := NewFileSnapshotter(path)
	store := NewMemoryStore(snap, log)
	records, err := LoadSnapshot(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("ignoring unreadable job snapshot")
		return store
	}
	store.Restore(records)
	log.Info().Int("jobs", len(records)).Str("path", path).Msg("job snapshot restored")
	return store
}
