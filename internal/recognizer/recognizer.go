// Package recognizer reads text from rectified card crops. The engine is
// linked through build tags: the default build has none and reports
// ErrNoBackend, while -tags=tesseract links a gosseract client.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

// ErrNoBackend is returned when no recognition engine was linked.
var ErrNoBackend = errors.New("recognizer: no backend linked; build with -tags=tesseract")

// Text is the recognized content of one crop.
type Text struct {
	Content    string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0..1, mean word confidence
	Language   string  `json:"language,omitempty"`
}

// Recognizer extracts text from an image. Implementations must be safe for
// concurrent use.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (Text, error)
	Close() error
}

// Config selects the engine language and data location.
type Config struct {
	Languages    []string // tesseract codes, e.g. "eng", "deu"
	TessdataPath string   // empty uses the system default
	PageSegMode  int      // tesseract PSM, 0 keeps the engine default
	Clean        CleanOptions
}

// DefaultConfig returns English recognition with standard text cleanup.
func DefaultConfig() Config {
	return Config{
		Languages: []string{"eng"},
		Clean:     DefaultCleanOptions(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.Languages) == 0 {
		return errors.New("at least one recognition language is required")
	}
	for _, l := range c.Languages {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("empty recognition language in %q", c.Languages)
		}
	}
	if c.PageSegMode < 0 || c.PageSegMode > 13 {
		return fmt.Errorf("page segmentation mode must be in [0,13], got %d", c.PageSegMode)
	}
	return nil
}

// New constructs the linked recognizer.
func New(cfg Config) (Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recognizer config: %w", err)
	}
	return newBackend(cfg)
}

// Backend names the linked engine.
func Backend() string { return backendName }
