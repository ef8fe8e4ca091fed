// Package pipeline runs card detection and rectification for single images
// and ordered batches. Each run is independent: it loads the image, builds
// edge maps, selects a quadrilateral (or falls back), corrects whole-frame
// detections and warps the card upright.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/barcode"
	"github.com/MeKo-Tech/cardcrop/internal/detector"
	"github.com/MeKo-Tech/cardcrop/internal/imageops"
	"github.com/MeKo-Tech/cardcrop/internal/orientation"
	"github.com/MeKo-Tech/cardcrop/internal/recognizer"
	"github.com/MeKo-Tech/cardcrop/internal/rectify"
)

// Loader resolves image identifiers.
type Loader interface {
	Load(ctx context.Context, id string) (image.Image, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, id string) (image.Image, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, id string) (image.Image, error) { return f(ctx, id) }

// Orienter predicts how far the content of a crop is rotated from upright.
type Orienter interface {
	Predict(img image.Image) (orientation.Result, error)
}

// Pipeline wires the detector, the rectifier and the optional collaborators.
// It is safe for concurrent use once built.
type Pipeline struct {
	cfg         Config
	Detector    *detector.Detector
	Rectifier   *rectify.Rectifier
	Orienter    Orienter              // nil keeps crops as warped
	Barcodes    barcode.Reader        // nil disables barcode decoding
	Recognizer  recognizer.Recognizer // nil disables recognition
	barcodeOpts barcode.Options
	loader      Loader
	sink        DebugSink
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Close releases the models and the recognizer.
func (p *Pipeline) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.Detector != nil {
		errs = append(errs, p.Detector.Close())
	}
	if c, ok := p.Orienter.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if p.Recognizer != nil {
		errs = append(errs, p.Recognizer.Close())
	}
	return errors.Join(errs...)
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg        Config
	ops        imageops.Ops
	detOpts    []detector.Option
	loader     Loader
	recognizer recognizer.Recognizer
	orienter   Orienter
	barcodes   barcode.Reader
	sink       DebugSink
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithMultiCard toggles rectifying every valid candidate.
func (b *Builder) WithMultiCard(on bool) *Builder {
	b.cfg.MultiCard = on
	return b
}

// WithTimeout sets the per-image deadline.
func (b *Builder) WithTimeout(d time.Duration) *Builder {
	b.cfg.Timeout = d
	return b
}

// WithWorkers sets the batch pool size.
func (b *Builder) WithWorkers(n int) *Builder {
	b.cfg.Workers = n
	return b
}

// WithMargin toggles margin expansion before warping.
func (b *Builder) WithMargin(on bool) *Builder {
	b.cfg.Rectify.Margin = on
	return b
}

// WithBorder sets the padding around rectified crops.
func (b *Builder) WithBorder(px int, fill color.NRGBA) *Builder {
	b.cfg.Rectify.BorderPx = px
	b.cfg.Rectify.BorderColor = fill
	return b
}

// WithMaxDimension sets the working resolution used for detection.
func (b *Builder) WithMaxDimension(px int) *Builder {
	b.cfg.Detector.MaxDimension = px
	return b
}

// WithCLAHE toggles local contrast normalization.
func (b *Builder) WithCLAHE(on bool) *Builder {
	b.cfg.Detector.CLAHE = on
	return b
}

// WithModelPath enables the segmentation edge map.
func (b *Builder) WithModelPath(path string) *Builder {
	b.cfg.Detector.Model.Path = path
	return b
}

// WithOps replaces the image primitives backend for every component.
func (b *Builder) WithOps(ops imageops.Ops) *Builder {
	b.ops = ops
	return b
}

// WithDetectorOptions forwards options to detector.New.
func (b *Builder) WithDetectorOptions(opts ...detector.Option) *Builder {
	b.detOpts = append(b.detOpts, opts...)
	return b
}

// WithLoader sets the identifier resolver used by Process.
func (b *Builder) WithLoader(l Loader) *Builder {
	b.loader = l
	return b
}

// WithRecognizer injects the text recognizer run on successful crops.
func (b *Builder) WithRecognizer(r recognizer.Recognizer) *Builder {
	b.recognizer = r
	return b
}

// WithOrientation toggles turning crops upright.
func (b *Builder) WithOrientation(on bool) *Builder {
	b.cfg.Orientation.Enabled = on
	return b
}

// WithOrienter injects the orientation classifier and enables it.
func (b *Builder) WithOrienter(o Orienter) *Builder {
	b.orienter = o
	b.cfg.Orientation.Enabled = o != nil
	return b
}

// WithBarcodes toggles barcode decoding on crops.
func (b *Builder) WithBarcodes(on bool) *Builder {
	b.cfg.Barcode.Enabled = on
	return b
}

// WithBarcodeReader injects the barcode reader and enables it.
func (b *Builder) WithBarcodeReader(r barcode.Reader) *Builder {
	b.barcodes = r
	b.cfg.Barcode.Enabled = r != nil
	return b
}

// WithDebugSink receives intermediate images.
func (b *Builder) WithDebugSink(s DebugSink) *Builder {
	b.sink = s
	return b
}

// Config returns the current builder configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and constructs the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	ops := b.ops
	if ops == nil {
		ops = imageops.New()
	}
	det, err := detector.New(b.cfg.Detector, append([]detector.Option{detector.WithOps(ops)}, b.detOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	rect, err := rectify.New(b.cfg.Rectify, ops)
	if err != nil {
		_ = det.Close()
		return nil, fmt.Errorf("failed to create rectifier: %w", err)
	}

	var orienter Orienter
	if b.cfg.Orientation.Enabled {
		orienter = b.orienter
		if orienter == nil {
			cls, err := orientation.NewClassifier(b.cfg.Orientation)
			if err != nil {
				_ = det.Close()
				return nil, fmt.Errorf("failed to create orientation classifier: %w", err)
			}
			orienter = cls
		}
	}
	var (
		reader barcode.Reader
		opts   barcode.Options
	)
	if b.cfg.Barcode.Enabled {
		reader = b.barcodes
		if reader == nil {
			reader = barcode.New()
		}
		// Validate already parsed the format names.
		opts, _ = b.cfg.Barcode.Options()
	}

	slog.Debug("Pipeline built",
		"backend", imageops.Backend(),
		"multi_card", b.cfg.MultiCard,
		"margin", b.cfg.Rectify.Margin,
		"timeout", b.cfg.Timeout,
		"orientation", orienter != nil,
		"barcodes", reader != nil,
		"recognizer", b.recognizer != nil)
	return &Pipeline{
		cfg:         b.cfg,
		Detector:    det,
		Rectifier:   rect,
		Orienter:    orienter,
		Barcodes:    reader,
		Recognizer:  b.recognizer,
		barcodeOpts: opts,
		loader:      b.loader,
		sink:        b.sink,
	}, nil
}
