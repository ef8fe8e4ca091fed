package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/redis/go-redis/v9"
)

// ErrResultNotFound is returned for unknown or expired jobs.
var ErrResultNotFound = errors.New("job result not found")

// Job states.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// JobResult is the stored outcome of a crop job.
type JobResult struct {
	JobID      string            `json:"job_id"`
	Source     string            `json:"source"`
	Status     string            `json:"status"`
	Records    []pipeline.Record `json:"records"`
	FinishedAt time.Time         `json:"finished_at"`
}

// ResultStore persists job results.
type ResultStore interface {
	Save(ctx context.Context, r JobResult) error
	Load(ctx context.Context, jobID string) (JobResult, error)
}

// RedisStore keeps results as JSON strings with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to the Redis named by cfg.
func NewRedisStore(cfg Config) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &RedisStore{client: client, ttl: cfg.ResultTTL}
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Save implements ResultStore.
func (s *RedisStore) Save(ctx context.Context, r JobResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, ResultKey(r.JobID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store result of job %s: %w", r.JobID, err)
	}
	return nil
}

// Load implements ResultStore.
func (s *RedisStore) Load(ctx context.Context, jobID string) (JobResult, error) {
	var r JobResult
	data, err := s.client.Get(ctx, ResultKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return r, fmt.Errorf("%w: %s", ErrResultNotFound, jobID)
	}
	if err != nil {
		return r, fmt.Errorf("failed to load result of job %s: %w", jobID, err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("corrupt result of job %s: %w", jobID, err)
	}
	return r, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error { return s.client.Close() }
