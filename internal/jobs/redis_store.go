package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/contactflow/importer/internal/contact"
)

const jobKeyPrefix = "import:job:"

// RedisStore keeps jobs as JSON values with the retention window as key
// TTL, so purging needs no sweep of our own.
type RedisStore struct {
	rdb       *redis.Client
	retention time.Duration
}

func NewRedisStore(rdb *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{rdb: rdb, retention: retention}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

func (s *RedisStore) Create(ctx context.Context) (*Job, error) {
	job := &Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		StartedAt: time.Now().UTC(),
	}
	if err := s.put(ctx, job, s.retention); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	data, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("jobs: get %s: %w", id, err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("jobs: unmarshal %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, mutate func(*Job) error) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := mutate(job); err != nil {
		return err
	}
	return s.put(ctx, job, redis.KeepTTL)
}

func (s *RedisStore) MarkProcessing(ctx context.Context, id string) error {
	return s.Update(ctx, id, transitionProcessing)
}

func (s *RedisStore) MarkCompleted(ctx context.Context, id string, result contact.Result) error {
	return s.Update(ctx, id, func(j *Job) error {
		return transitionCompleted(j, result)
	})
}

func (s *RedisStore) MarkFailed(ctx context.Context, id string, message string) error {
	return s.Update(ctx, id, func(j *Job) error {
		return transitionFailed(j, message)
	})
}

// Sweep is a no-op: key expiry owns retention.
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *RedisStore) put(ctx context.Context, job *Job, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("jobs: marshal %s: %w", job.ID, err)
	}
	if err := s.rdb.Set(ctx, jobKey(job.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("jobs: put %s: %w", job.ID, err)
	}
	return nil
}
