package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Client submits crop jobs.
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient connects to the Redis named by cfg.
func NewClient(cfg Config) *Client {
	return &Client{client: asynq.NewClient(cfg.redisOpt()), queue: cfg.Queue}
}

// Enqueue submits a crop job for src and returns its job ID.
func (c *Client) Enqueue(ctx context.Context, src, outputDir string) (string, error) {
	jobID := uuid.NewString()
	task, err := NewCropTask(CropPayload{JobID: jobID, Source: src, OutputDir: outputDir})
	if err != nil {
		return "", err
	}
	if _, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue)); err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", src, err)
	}
	return jobID, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error { return c.client.Close() }
