package batch

import (
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Core pipeline settings
	Pipeline pipeline.Config

	// Output settings
	OutputDir   string // rectified crops, empty skips writing them
	ImageFormat string // png or jpeg
	Quality     int    // JPEG quality
	OverlayDir  string // detected corners drawn on the source image
	DebugDir    string // intermediate edge maps and overlays
	Format      string // record format: json, csv, yaml or text
	OutputFile  string // records destination, empty writes to stdout

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
	Pages           string // PDF page range

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ShowStats        bool
	ProgressInterval time.Duration
	LogProgress      bool // progress as log records instead of a bar
	LogProgressEvery int  // images between progress records
}

// DefaultConfig returns a batch configuration with pipeline defaults.
func DefaultConfig() *Config {
	return &Config{
		Pipeline:         pipeline.DefaultConfig(),
		OutputDir:        "cropped",
		ImageFormat:      "png",
		Quality:          95,
		Format:           string(pipeline.FormatJSON),
		ShowProgress:     true,
		ProgressInterval: 100 * time.Millisecond,
		LogProgressEvery: 10,
	}
}

// Validate checks the batch settings and the embedded pipeline config.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Pipeline.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.outputOptions().Ext(); err != nil {
		errs = append(errs, err)
	}
	if c.Quality < 0 || c.Quality > 100 {
		errs = append(errs, fmt.Errorf("quality must be in [0,100], got %d", c.Quality))
	}
	if _, err := pipeline.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) outputOptions() pipeline.OutputOptions {
	return pipeline.OutputOptions{Dir: c.OutputDir, Format: c.ImageFormat, Quality: c.Quality}
}
