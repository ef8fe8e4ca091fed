package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives batch progress. Calls come from a single
// collector goroutine.
type ProgressCallback interface {
	// OnStart is called once with the number of images in the batch.
	OnStart(total int)

	// OnProgress is called after every finished image.
	OnProgress(done, total int)

	// OnComplete is called when the batch has drained.
	OnComplete()

	// OnError is called for each failed image before its OnProgress.
	OnError(done int, err error)
}

const barWidth = 40

// BarProgress redraws a one-line bar with throughput and ETA. It is meant
// for an interactive stderr next to text logs.
type BarProgress struct {
	mu       sync.Mutex
	w        io.Writer
	label    string
	interval time.Duration
	started  time.Time
	drawn    time.Time
}

// NewBarProgress returns a bar writing to w (stderr when nil). Redraws are
// throttled to interval except for the final one.
func NewBarProgress(w io.Writer, label string, interval time.Duration) *BarProgress {
	if w == nil {
		w = os.Stderr
	}
	return &BarProgress{w: w, label: label, interval: interval}
}

func (b *BarProgress) OnStart(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = time.Now()
	b.drawn = time.Time{}
	_, _ = fmt.Fprintf(b.w, "%s0/%d (0.0%%)\n", b.label, total)
}

func (b *BarProgress) OnProgress(done, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	if done < total && now.Sub(b.drawn) < b.interval {
		return
	}
	b.drawn = now
	if total == 0 {
		return
	}

	filled := barWidth * done / total
	line := fmt.Sprintf("\r%s[%s%s] %d/%d (%.1f%%)", b.label,
		strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled),
		done, total, 100*float64(done)/float64(total))
	if elapsed := now.Sub(b.started); elapsed > 0 && done > 0 {
		line += fmt.Sprintf(" %.1f img/s", float64(done)/elapsed.Seconds())
		if done < total {
			eta := time.Duration(float64(elapsed) * float64(total-done) / float64(done))
			line += fmt.Sprintf(" ETA %v", eta.Round(time.Second))
		}
	}
	_, _ = fmt.Fprint(b.w, line)
}

func (b *BarProgress) OnComplete() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = fmt.Fprintf(b.w, "\n%sdone in %v\n", b.label, time.Since(b.started).Round(time.Millisecond))
}

func (b *BarProgress) OnError(done int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = fmt.Fprintf(b.w, "\n%simage %d failed: %v\n", b.label, done, err)
}

// LogProgress reports batch progress as log records, so structured log
// streams stay parseable where a redrawn bar would corrupt them.
type LogProgress struct {
	logger  *slog.Logger
	every   int
	last    int
	started time.Time
}

// NewLogProgress logs a progress record every `every` images and always
// for the last one. A nil logger uses slog.Default.
func NewLogProgress(logger *slog.Logger, every int) *LogProgress {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgress{logger: logger, every: max(every, 1)}
}

func (l *LogProgress) OnStart(total int) {
	l.started = time.Now()
	l.last = 0
	l.logger.Info("Batch progress started", "images", total)
}

func (l *LogProgress) OnProgress(done, total int) {
	if done-l.last < l.every && done != total {
		return
	}
	l.last = done
	elapsed := time.Since(l.started)
	l.logger.Info("Batch progress",
		"done", done,
		"total", total,
		"percent", fmt.Sprintf("%.1f", 100*float64(done)/float64(max(total, 1))),
		"elapsed", elapsed.Round(time.Millisecond),
	)
}

func (l *LogProgress) OnComplete() {
	l.logger.Info("Batch progress finished", "elapsed", time.Since(l.started).Round(time.Millisecond))
}

func (l *LogProgress) OnError(done int, err error) {
	l.logger.Log(context.Background(), slog.LevelWarn, "Image failed", "done", done, "error", err)
}
