package jobstore

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/domain/job"
)

// Snapshotter persists the full job collection.
type Snapshotter interface {
	Save(jobs map[string]job.Job) error
}

// MemoryStore is the process-wide job index. Every mutation rewrites the
// snapshot while holding the lock, so the snapshot never lags the map.
type MemoryStore struct {
	mu       sync.Mutex
	jobs     map[string]*job.Job
	snapshot Snapshotter
	now      func() time.Time
	log      zerolog.Logger
}

// NewMemoryStore creates an empty store. snapshot may be nil.
func NewMemoryStore(snapshot Snapshotter, log zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		jobs:     make(map[string]*job.Job),
		snapshot: snapshot,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("component", "jobstore").Logger(),
	}
}

// Restore loads records from a previous snapshot without rewriting it.
func (s *MemoryStore) Restore(records map[string]job.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range records {
		rec := rec
		rec.ID = id
		s.jobs[id] = &rec
	}
}

// Get returns a copy of the job.
func (s *MemoryStore) Get(id string) (*job.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	out := *j
	return &out, true
}

// Set merges fields into the job, creating it when absent.
func (s *MemoryStore) Set(id string, fields ...job.Field) job.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	j, ok := s.jobs[id]
	if !ok {
		j = &job.Job{ID: id}
		s.jobs[id] = j
	}
	for _, f := range fields {
		f(j)
	}
	j.ID = id
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now

	s.persistLocked()
	return *j
}

// List returns jobs ordered by creation time, newest first. Ties are broken
// by id so ordering is stable.
func (s *MemoryStore) List(limit int) []job.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].ID > out[b].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStore) persistLocked() {
	if s.snapshot == nil {
		return
	}
	records := make(map[string]job.Job, len(s.jobs))
	for id, j := range s.jobs {
		records[id] = *j
	}
	if err := s.snapshot.Save(records); err != nil {
		s.log.Warn().Err(err).Msg("failed to write job snapshot")
	}
}
