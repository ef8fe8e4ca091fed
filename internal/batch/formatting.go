package batch

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
)

// Result holds the result of batch processing.
type Result struct {
	Outcomes    []pipeline.Outcome
	Records     []pipeline.Record
	Duration    time.Duration
	WorkerCount int
}

// Stats summarizes a batch run.
type Stats struct {
	TotalImages      int
	ProcessedImages  int
	FailedImages     int
	Crops            int
	WorkerCount      int
	TotalDuration    time.Duration
	AveragePerImage  time.Duration
	ThroughputPerSec float64
	Methods          map[string]int // crops per winning method
}

// Failed returns the number of images that produced no crop.
func (r *Result) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Stats computes processing statistics.
func (r *Result) Stats() Stats {
	s := Stats{
		TotalImages:   len(r.Outcomes),
		FailedImages:  r.Failed(),
		WorkerCount:   r.WorkerCount,
		TotalDuration: r.Duration,
		Methods:       map[string]int{},
	}
	s.ProcessedImages = s.TotalImages - s.FailedImages
	for _, o := range r.Outcomes {
		if o.Err != nil || o.Result == nil {
			continue
		}
		for _, c := range o.Result.Crops {
			s.Crops++
			s.Methods[c.Method]++
		}
	}
	if s.TotalImages > 0 {
		s.AveragePerImage = r.Duration / time.Duration(s.TotalImages)
	}
	if secs := r.Duration.Seconds(); secs > 0 {
		s.ThroughputPerSec = float64(s.TotalImages) / secs
	}
	return s
}

// FormatResults formats the records in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	f, err := pipeline.ParseFormat(format)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := pipeline.WriteRecords(&buf, r.Records, f); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SaveResults writes the formatted records to outputFile, or to w when no
// file is given.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}
	_, err = fmt.Fprint(w, output)
	return err
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	stats := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", stats.TotalImages)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", stats.ProcessedImages)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", stats.FailedImages)
	_, _ = fmt.Fprintf(w, "  Crops: %d\n", stats.Crops)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", stats.AveragePerImage.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", stats.ThroughputPerSec)
}
