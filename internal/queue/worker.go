package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/hibiken/asynq"
)

// processor is the part of a pipeline a worker needs.
type processor interface {
	Process(ctx context.Context, id string) (*pipeline.Result, error)
}

// Worker handles crop tasks.
type Worker struct {
	pipeline processor
	store    ResultStore
	output   pipeline.OutputOptions
	multi    bool
	now      func() time.Time
}

// NewWorker creates a worker. output.Dir is the default crop directory, used
// when a task names none; an empty directory means crops are not written.
func NewWorker(p processor, store ResultStore, output pipeline.OutputOptions, multi bool) *Worker {
	return &Worker{pipeline: p, store: store, output: output, multi: multi, now: time.Now}
}

// HandleCrop processes one crop task. Pipeline failures are stored as failed
// results and do not fail the task.
func (w *Worker) HandleCrop(ctx context.Context, t *asynq.Task) error {
	payload, err := ParseCropPayload(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	start := time.Now()
	slog.Info("Processing crop job", "job_id", payload.JobID, "source", payload.Source)

	res, err := w.pipeline.Process(ctx, payload.Source)
	if res == nil {
		res = &pipeline.Result{ID: payload.Source}
	}

	var outputs []string
	if err == nil {
		opts := w.output
		if payload.OutputDir != "" {
			opts.Dir = payload.OutputDir
		}
		if opts.Dir != "" {
			var serr error
			outputs, serr = pipeline.SaveCrops(res, opts, w.multi)
			if serr != nil {
				slog.Error("Failed to save crop", "job_id", payload.JobID, "error", serr)
			}
		}
	}

	result := JobResult{
		JobID:      payload.JobID,
		Source:     payload.Source,
		Status:     StatusCompleted,
		Records:    pipeline.Records(res, outputs, err),
		FinishedAt: w.now().UTC(),
	}
	if err != nil {
		result.Status = StatusFailed
		slog.Warn("Crop job failed", "job_id", payload.JobID, "kind", pipeline.KindName(err), "error", err)
	}

	if serr := w.store.Save(ctx, result); serr != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, serr)
	}
	slog.Info("Crop job finished", "job_id", payload.JobID, "status", result.Status,
		"crops", len(res.Crops), "duration", time.Since(start))
	return nil
}

// Mux routes crop tasks to the worker.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCrop, w.HandleCrop)
	return mux
}

// Run consumes the configured queue until ctx is cancelled.
func Run(ctx context.Context, cfg Config, w *Worker) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid queue config: %w", err)
	}
	srv := asynq.NewServer(cfg.redisOpt(), asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		Logger:      slogLogger{},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			slog.Error("Task failed", "type", task.Type(), "error", err)
		}),
	})
	if err := srv.Start(w.Mux()); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	slog.Info("Worker started", "queue", cfg.Queue, "concurrency", cfg.Concurrency, "redis", cfg.RedisAddr)

	<-ctx.Done()
	srv.Shutdown()
	slog.Info("Worker stopped")
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// slogLogger routes asynq logs through slog.
type slogLogger struct{}

func (slogLogger) Debug(args ...any) { slog.Debug(fmt.Sprint(args...)) }
func (slogLogger) Info(args ...any)  { slog.Info(fmt.Sprint(args...)) }
func (slogLogger) Warn(args ...any)  { slog.Warn(fmt.Sprint(args...)) }
func (slogLogger) Error(args ...any) { slog.Error(fmt.Sprint(args...)) }
func (slogLogger) Fatal(args ...any) {
	slog.Error(fmt.Sprint(args...))
	os.Exit(1)
}
