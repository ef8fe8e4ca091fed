// Package queue runs card cropping as asynchronous jobs. Tasks travel through
// Redis via asynq and each finished job leaves its result records in Redis
// for a limited time.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeCrop is the asynq task type of a crop job.
const TypeCrop = "card:crop"

const resultKeyPrefix = "cardcrop:result:"

// Config holds the Redis connection and worker settings.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Queue         string
	Concurrency   int
	ResultTTL     time.Duration
}

// DefaultConfig returns settings for a local Redis.
func DefaultConfig() Config {
	return Config{
		RedisAddr:   "localhost:6379",
		Queue:       "cardcrop",
		Concurrency: 4,
		ResultTTL:   24 * time.Hour,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("redis address is required"))
	}
	if c.Queue == "" {
		errs = append(errs, errors.New("queue name is required"))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("invalid concurrency: %d", c.Concurrency))
	}
	if c.ResultTTL <= 0 {
		errs = append(errs, fmt.Errorf("invalid result TTL: %v", c.ResultTTL))
	}
	return errors.Join(errs...)
}

func (c Config) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// CropPayload is the JSON body of a crop task.
type CropPayload struct {
	JobID     string `json:"job_id"`
	Source    string `json:"source"`
	OutputDir string `json:"output_dir,omitempty"`
}

// NewCropTask builds a crop task. Jobs are never retried: a failed image is
// recorded as a failed result instead.
func NewCropTask(p CropPayload) (*asynq.Task, error) {
	if p.JobID == "" || p.Source == "" {
		return nil, errors.New("crop task needs a job id and a source")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCrop, data, asynq.TaskID(p.JobID), asynq.MaxRetry(0)), nil
}

// ParseCropPayload decodes the payload of a crop task.
func ParseCropPayload(t *asynq.Task) (CropPayload, error) {
	var p CropPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid %s payload: %w", TypeCrop, err)
	}
	if p.JobID == "" || p.Source == "" {
		return p, fmt.Errorf("invalid %s payload: job id and source are required", TypeCrop)
	}
	return p, nil
}

// ResultKey is the Redis key holding the result of a job.
func ResultKey(jobID string) string { return resultKeyPrefix + jobID }
