// Package batch crops every card image found under a set of paths and
// collects one result record per crop or failed image.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/MeKo-Tech/cardcrop/internal/recognizer"
	"github.com/MeKo-Tech/cardcrop/internal/source"
)

// ProcessBatch discovers sources under args and runs them through a card
// pipeline built from config. rec is optional; ProcessBatch always closes it.
func ProcessBatch(ctx context.Context, args []string, config *Config, rec recognizer.Recognizer) (res *Result, err error) {
	owned := rec
	defer func() {
		if owned != nil {
			_ = owned.Close()
		}
	}()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch config: %w", err)
	}

	// Discover image files
	ids, err := source.Discover(args, source.DiscoverOptions{
		Recursive: config.Recursive,
		Include:   config.IncludePatterns,
		Exclude:   config.ExcludePatterns,
		Pages:     config.Pages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(ids) == 0 {
		return nil, errors.New("no image files found")
	}

	progress := newProgress(config, os.Stderr)

	loader := source.NewLoader()
	pl, err := buildPipeline(config, loader, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to build card pipeline: %w", err)
	}
	owned = nil
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Warn("Error closing pipeline", "error", err)
		}
	}()

	slog.Info("Batch started", "images", len(ids), "workers", pl.Config().Workers, "output_dir", config.OutputDir)
	startTime := time.Now()
	outcomes := pl.ProcessAll(ctx, ids, pipeline.ParallelConfig{Progress: progress})
	records := collectRecords(ctx, loader, outcomes, config)
	duration := time.Since(startTime)

	res = &Result{
		Outcomes:    outcomes,
		Records:     records,
		Duration:    duration,
		WorkerCount: pl.Config().Workers,
	}
	slog.Info("Batch finished", "images", len(ids), "failed", res.Failed(), "duration", duration)
	return res, nil
}

// newProgress picks the batch progress reporter. Structured logs get
// progress records instead of a redrawn bar.
func newProgress(config *Config, w io.Writer) pipeline.ProgressCallback {
	switch {
	case config.Quiet:
		return nil
	case config.LogProgress:
		return pipeline.NewLogProgress(slog.Default(), config.LogProgressEvery)
	case config.ShowProgress:
		return pipeline.NewBarProgress(w, "Cropping: ", config.ProgressInterval)
	}
	return nil
}
