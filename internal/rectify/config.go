package rectify

import (
	"errors"
	"fmt"
	"image/color"
)

// Config holds the rectification policy.
type Config struct {
	// Margin pushes every side outward before warping so a tight detection
	// does not clip the card edge.
	Margin      bool
	MarginFrac  float64 // of the longest side
	MinMarginPx float64

	BorderPx    int // padding around the warped card
	BorderColor color.NRGBA

	// A quad whose corners all lie within BorderSnapFrac of the frame
	// corners is replaced by the frame inset by BorderInsetFrac.
	BorderSnapFrac  float64
	BorderInsetFrac float64

	MinQuadArea     float64 // pixels², below this the quad is degenerate
	MinCornerDistPx float64 // corners closer than this coincide
	MaxCondition    float64 // on the normalized homography system
	MaxOutputPx     int     // width*height cap, 0 disables
}

// DefaultConfig returns the standard rectification policy.
func DefaultConfig() Config {
	return Config{
		Margin:          false,
		MarginFrac:      0.08,
		MinMarginPx:     30,
		BorderPx:        10,
		BorderColor:     color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		BorderSnapFrac:  0.02,
		BorderInsetFrac: 0.03,
		MinQuadArea:     16,
		MinCornerDistPx: 2,
		MaxCondition:    1e8,
		MaxOutputPx:     100_000_000,
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	var errs []error
	if c.MarginFrac < 0 || c.MinMarginPx < 0 {
		errs = append(errs, fmt.Errorf("margin must be non-negative, got %.3f/%.1f", c.MarginFrac, c.MinMarginPx))
	}
	if c.BorderPx < 0 {
		errs = append(errs, fmt.Errorf("border must be non-negative, got %d", c.BorderPx))
	}
	if c.BorderSnapFrac < 0 || c.BorderSnapFrac >= 0.5 {
		errs = append(errs, fmt.Errorf("border snap fraction must be in [0,0.5), got %.3f", c.BorderSnapFrac))
	}
	if c.BorderInsetFrac < 0 || c.BorderInsetFrac >= 0.5 {
		errs = append(errs, fmt.Errorf("border inset fraction must be in [0,0.5), got %.3f", c.BorderInsetFrac))
	}
	if c.MinQuadArea < 0 || c.MinCornerDistPx < 0 {
		errs = append(errs, fmt.Errorf("minimum quad area and corner distance must be non-negative, got %.2f/%.2f", c.MinQuadArea, c.MinCornerDistPx))
	}
	if c.MaxCondition <= 1 {
		errs = append(errs, fmt.Errorf("max condition must be > 1, got %g", c.MaxCondition))
	}
	return errors.Join(errs...)
}
