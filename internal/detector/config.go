package detector

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/cardcrop/internal/onnx"
)

// Config holds the detection thresholds. Defaults reproduce the tuned values
// for photographed cards.
type Config struct {
	BlurKernel     int     // Gaussian kernel size (odd)
	CLAHE          bool    // local contrast normalization after blurring
	CLAHEClipLimit float64 // histogram clip limit
	CLAHETiles     int     // tiles per axis

	CannyLow    float64
	CannyHigh   float64
	CloseKernel int // square closing element for the gradient map

	AdaptiveBlock int
	AdaptiveC     float64

	ApproxEpsilon       float64 // simplification tolerance as a fraction of perimeter
	MinAreaFrac         float64
	MaxAreaFrac         float64
	FallbackMinAreaFrac float64 // minimum area for the bounding-rectangle fallback
	BorderTolerancePx   float64

	// MaxDimension bounds the longest side of the working image; 0 disables
	// downscaling.
	MaxDimension int

	Model ModelConfig
}

// ModelConfig configures the optional segmentation edge map.
type ModelConfig struct {
	Path        string
	LibraryPath string
	InputSize   int     // square model input side
	Threshold   float64 // probability cutoff
	NumThreads  int
	GPU         onnx.GPUConfig
}

// Enabled reports whether a model path is configured.
func (m ModelConfig) Enabled() bool { return m.Path != "" }

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		BlurKernel:          5,
		CLAHE:               true,
		CLAHEClipLimit:      2.0,
		CLAHETiles:          8,
		CannyLow:            50,
		CannyHigh:           150,
		CloseKernel:         15,
		AdaptiveBlock:       11,
		AdaptiveC:           2,
		ApproxEpsilon:       0.02,
		MinAreaFrac:         0.01,
		MaxAreaFrac:         0.95,
		FallbackMinAreaFrac: 0.10,
		BorderTolerancePx:   2,
		MaxDimension:        1600,
		Model: ModelConfig{
			InputSize: 512,
			Threshold: 0.5,
		},
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	var errs []error
	if c.BlurKernel < 1 || c.BlurKernel%2 == 0 {
		errs = append(errs, fmt.Errorf("blur kernel must be a positive odd number, got %d", c.BlurKernel))
	}
	if c.CLAHE && (c.CLAHEClipLimit <= 0 || c.CLAHETiles < 1) {
		errs = append(errs, fmt.Errorf("invalid CLAHE parameters: clip %.2f, tiles %d", c.CLAHEClipLimit, c.CLAHETiles))
	}
	if c.CannyLow < 0 || c.CannyHigh <= c.CannyLow {
		errs = append(errs, fmt.Errorf("canny thresholds must satisfy 0 <= low < high, got %.1f/%.1f", c.CannyLow, c.CannyHigh))
	}
	if c.CloseKernel < 1 {
		errs = append(errs, fmt.Errorf("close kernel must be positive, got %d", c.CloseKernel))
	}
	if c.AdaptiveBlock < 3 || c.AdaptiveBlock%2 == 0 {
		errs = append(errs, fmt.Errorf("adaptive block must be an odd number >= 3, got %d", c.AdaptiveBlock))
	}
	if c.ApproxEpsilon <= 0 || c.ApproxEpsilon >= 1 {
		errs = append(errs, fmt.Errorf("approx epsilon must be in (0,1), got %.3f", c.ApproxEpsilon))
	}
	if c.MinAreaFrac < 0 || c.MaxAreaFrac > 1 || c.MinAreaFrac >= c.MaxAreaFrac {
		errs = append(errs, fmt.Errorf("area bounds must satisfy 0 <= min < max <= 1, got %.3f/%.3f", c.MinAreaFrac, c.MaxAreaFrac))
	}
	if c.FallbackMinAreaFrac < 0 || c.FallbackMinAreaFrac > 1 {
		errs = append(errs, fmt.Errorf("fallback min area must be in [0,1], got %.3f", c.FallbackMinAreaFrac))
	}
	if c.BorderTolerancePx < 0 {
		errs = append(errs, fmt.Errorf("border tolerance must be non-negative, got %.1f", c.BorderTolerancePx))
	}
	if c.MaxDimension < 0 {
		errs = append(errs, fmt.Errorf("max dimension must be non-negative, got %d", c.MaxDimension))
	}
	if c.Model.Enabled() {
		if c.Model.Threshold <= 0 || c.Model.Threshold >= 1 {
			errs = append(errs, fmt.Errorf("model threshold must be in (0,1), got %.2f", c.Model.Threshold))
		}
		if c.Model.InputSize < 32 {
			errs = append(errs, fmt.Errorf("model input size must be >= 32, got %d", c.Model.InputSize))
		}
	}
	return errors.Join(errs...)
}
