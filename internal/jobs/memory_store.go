package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contactflow/importer/internal/contact"
)

// MemoryStore is the in-process registry used when no Redis address is
// configured. Retention is enforced by Sweep, typically driven by
// StartSweeper.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	retention time.Duration
}

func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryStore{
		jobs:      make(map[string]*Job),
		retention: retention,
	}
}

func (s *MemoryStore) Create(ctx context.Context) (*Job, error) {
	job := &Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		StartedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	snapshot := *job
	return &snapshot, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, mutate func(*Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	return mutate(job)
}

func (s *MemoryStore) MarkProcessing(ctx context.Context, id string) error {
	return s.Update(ctx, id, transitionProcessing)
}

func (s *MemoryStore) MarkCompleted(ctx context.Context, id string, result contact.Result) error {
	return s.Update(ctx, id, func(j *Job) error {
		return transitionCompleted(j, result)
	})
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id string, message string) error {
	return s.Update(ctx, id, func(j *Job) error {
		return transitionFailed(j, message)
	})
}

// Sweep purges jobs created before the retention window.
func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if job.StartedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}

// StartSweeper runs Sweep on the given interval until ctx is cancelled.
// Intended to run in its own goroutine from main.
func StartSweeper(ctx context.Context, s Store, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Sweep(ctx)
			if err != nil {
				log.Warn("job sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Debug("purged expired import jobs", "removed", removed)
			}
		}
	}
}
