package pipeline

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/barcode"
	"github.com/MeKo-Tech/cardcrop/internal/detector"
	"github.com/MeKo-Tech/cardcrop/internal/orientation"
	"github.com/MeKo-Tech/cardcrop/internal/rectify"
)

// Config holds configuration for the card pipeline and its components.
type Config struct {
	Detector    detector.Config
	Rectify     rectify.Config
	Orientation orientation.Config
	Barcode     barcode.Config

	// MultiCard rectifies every valid, non-overlapping candidate instead of
	// the single best one.
	MultiCard bool
	// Timeout bounds a single image run, 0 disables it.
	Timeout time.Duration
	// Workers is the batch pool size, 0 means runtime.NumCPU().
	Workers int
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Detector:    detector.DefaultConfig(),
		Rectify:     rectify.DefaultConfig(),
		Orientation: orientation.DefaultConfig(),
		Timeout:     30 * time.Second,
		Workers:     runtime.NumCPU(),
	}
}

// Validate checks the pipeline settings and the component configs.
func (c Config) Validate() error {
	var errs []error
	if err := c.Detector.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detector: %w", err))
	}
	if err := c.Rectify.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("rectify: %w", err))
	}
	if c.Orientation.Enabled {
		if err := c.Orientation.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("orientation: %w", err))
		}
	}
	if err := c.Barcode.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("barcode: %w", err))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must be non-negative, got %v", c.Timeout))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be non-negative, got %d", c.Workers))
	}
	return errors.Join(errs...)
}
