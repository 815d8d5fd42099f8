package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/servecoach/internal/domain/model"
	"github.com/okian/servecoach/pkg/metrics"
)

// MemoryStore keeps jobs in a map. Results are shared by pointer and must
// be treated as read-only once stored.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]model.Job
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MemoryStore{
		jobs: make(map[string]model.Job),
		now:  cfg.now,
	}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, job model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("%s: %w", job.ID, ErrExists)
	}
	now := s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	s.jobs[job.ID] = job
	metrics.UpdateJobsStored(len(s.jobs))
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return job, nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, id string, fn UpdateFunc) (model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err := fn(&job); err != nil {
		return model.Job{}, err
	}
	job.ID = id
	job.UpdatedAt = s.now()
	s.jobs[id] = job
	return job, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
