// Package detector finds card-shaped quadrilaterals in photographs. It
// builds several binary edge maps, selects the largest valid four-sided
// contour across them and exposes the fallback strategies used when none
// survives.
package detector

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/cardcrop/internal/imageops"
)

// Detector holds the immutable detection configuration and the image
// primitives it runs on. It is safe for concurrent use.
type Detector struct {
	cfg        Config
	ops        imageops.Ops
	strategies []Strategy
	model      MaskModel
}

// Option customizes a Detector.
type Option func(*Detector)

// WithOps replaces the image primitives backend.
func WithOps(ops imageops.Ops) Option { return func(d *Detector) { d.ops = ops } }

// WithStrategies replaces the fallback chain.
func WithStrategies(s []Strategy) Option {
	return func(d *Detector) { d.strategies = append([]Strategy(nil), s...) }
}

// WithMaskModel injects a segmentation model for the model edge map.
func WithMaskModel(m MaskModel) Option { return func(d *Detector) { d.model = m } }

// New validates cfg and constructs a Detector. When cfg.Model is enabled and
// no model was injected, the ONNX model is loaded.
func New(cfg Config, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	d := &Detector{cfg: cfg, strategies: DefaultStrategies()}
	for _, opt := range opts {
		opt(d)
	}
	if d.ops == nil {
		d.ops = imageops.New()
	}
	if d.model == nil && cfg.Model.Enabled() {
		m, err := NewONNXModel(cfg.Model)
		if err != nil {
			return nil, err
		}
		d.model = m
	}
	slog.Debug("Detector initialized",
		"backend", imageops.Backend(),
		"clahe", cfg.CLAHE,
		"model", cfg.Model.Path,
		"strategies", len(d.strategies))
	return d, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config { return d.cfg }

// Ops returns the image primitives backend.
func (d *Detector) Ops() imageops.Ops { return d.ops }

// Strategies returns the fallback chain in order.
func (d *Detector) Strategies() []Strategy { return d.strategies }

// HasModel reports whether a segmentation model contributes an edge map.
func (d *Detector) HasModel() bool { return d.model != nil }

// Close releases the segmentation model, if any.
func (d *Detector) Close() error {
	if d.model == nil {
		return nil
	}
	return d.model.Close()
}
