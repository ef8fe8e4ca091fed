package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// ParallelConfig holds configuration for batch processing.
type ParallelConfig struct {
	Workers  int              // 0 uses the pipeline config, then runtime.NumCPU()
	Progress ProgressCallback // optional
	// OnResult is called from the collector goroutine as each image
	// finishes, in completion order.
	OnResult func(Outcome)
}

// Outcome is one batch entry.
type Outcome struct {
	Index  int
	ID     string
	Result *Result
	Err    error
}

type job struct {
	index int
	id    string
}

// ProcessAll runs every identifier through Process on a bounded worker pool
// and returns the outcomes in input order. A failing image never stops the
// batch. Cancelling ctx stops scheduling; images already running finish or
// hit their own deadline.
func (p *Pipeline) ProcessAll(ctx context.Context, ids []string, cfg ParallelConfig) []Outcome {
	out := make([]Outcome, len(ids))
	if len(ids) == 0 {
		return out
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = p.cfg.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(ids))

	if cfg.Progress != nil {
		cfg.Progress.OnStart(len(ids))
		defer cfg.Progress.OnComplete()
	}

	jobs := make(chan job)
	results := make(chan Outcome, workers)
	// In-flight runs are detached from batch cancellation.
	runCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res, err := p.Process(runCtx, j.id)
				results <- Outcome{Index: j.index, ID: j.id, Result: res, Err: err}
			}
		}()
	}

	scheduled := make([]bool, len(ids))
	go func() {
		defer close(jobs)
		for i, id := range ids {
			if ctx.Err() != nil {
				return
			}
			select {
			case jobs <- job{index: i, id: id}:
				scheduled[i] = true
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for o := range results {
		out[o.Index] = o
		done++
		if cfg.Progress != nil {
			if o.Err != nil {
				cfg.Progress.OnError(done, o.Err)
			}
			cfg.Progress.OnProgress(done, len(ids))
		}
		if cfg.OnResult != nil {
			cfg.OnResult(o)
		}
	}

	// close(jobs) happens before the workers exit, so scheduled is final.
	for i, id := range ids {
		if !scheduled[i] {
			out[i] = Outcome{
				Index:  i,
				ID:     id,
				Result: &Result{ID: id},
				Err:    fmt.Errorf("not scheduled: %w", context.Cause(ctx)),
			}
		}
	}
	return out
}
