// Package rectify turns a detected card quadrilateral into an upright,
// padded crop with a perspective warp.
package rectify

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/cardcrop/internal/imageops"
	"github.com/MeKo-Tech/cardcrop/internal/utils"
	"github.com/disintegration/imaging"
)

var (
	// ErrDegenerate marks a quad with coincident corners, near-zero area,
	// crossing sides or an empty target size.
	ErrDegenerate = errors.New("degenerate quadrilateral")
	// ErrIllConditioned marks a transform that cannot be solved reliably.
	ErrIllConditioned = errors.New("ill-conditioned perspective transform")
)

// Result is a rectified crop.
type Result struct {
	Image    *image.NRGBA
	Detected utils.Quad // ordered corners before margin expansion
	Corners  utils.Quad // ordered corners actually warped
	Width    int        // card width without border
	Height   int        // card height without border
	Border   int
}

// Rectifier warps quadrilaterals onto axis-aligned rectangles.
type Rectifier struct {
	cfg Config
	ops imageops.Ops
}

// New validates cfg. A nil ops uses the default backend.
func New(cfg Config, ops imageops.Ops) (*Rectifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rectify config: %w", err)
	}
	if ops == nil {
		ops = imageops.New()
	}
	return &Rectifier{cfg: cfg, ops: ops}, nil
}

// Config returns the rectification policy.
func (r *Rectifier) Config() Config { return r.cfg }

// CheckGeometry orders q and rejects quads that cannot be warped.
func (r *Rectifier) CheckGeometry(q utils.Quad) (utils.Quad, error) {
	o := OrderCorners(q)
	for i := range o {
		for j := i + 1; j < len(o); j++ {
			if d := utils.Dist(o[i], o[j]); d < r.cfg.MinCornerDistPx {
				return o, fmt.Errorf("%w: corners %d and %d are %.2fpx apart", ErrDegenerate, i, j, d)
			}
		}
	}
	if area := math.Abs(utils.SignedArea(o[:])); area < r.cfg.MinQuadArea {
		return o, fmt.Errorf("%w: area %.2f", ErrDegenerate, area)
	}
	if !utils.IsSimpleQuad(o) {
		return o, fmt.Errorf("%w: sides cross", ErrDegenerate)
	}
	return o, nil
}

// Rectify warps the region of img bounded by q. q may be in any order and
// is interpreted in img's zero-based pixel coordinates.
func (r *Rectifier) Rectify(img image.Image, q utils.Quad) (*Result, error) {
	b := img.Bounds()
	detected, err := r.CheckGeometry(q)
	if err != nil {
		return nil, err
	}

	corners := detected
	if r.cfg.Margin {
		m := r.MarginFor(detected)
		corners = OrderCorners(ExpandQuad(detected, m, b.Dx(), b.Dy()))
		slog.Debug("Expanded quad by margin", "margin", m)
	}

	w, h := TargetSize(corners)
	if w < 2 || h < 2 {
		return nil, fmt.Errorf("%w: target size %dx%d", ErrDegenerate, w, h)
	}
	border := r.cfg.BorderPx
	if r.cfg.MaxOutputPx > 0 && (w+2*border)*(h+2*border) > r.cfg.MaxOutputPx {
		return nil, fmt.Errorf("%w: output %dx%d exceeds limit", ErrIllConditioned, w, h)
	}

	dst := utils.Quad{
		{X: 0, Y: 0},
		{X: float64(w - 1), Y: 0},
		{X: float64(w - 1), Y: float64(h - 1)},
		{X: 0, Y: float64(h - 1)},
	}
	m, err := ComputeHomography(corners, dst, r.cfg.MaxCondition)
	if err != nil {
		return nil, err
	}
	warped, err := r.ops.WarpPerspective(img, m, w, h, r.cfg.BorderColor)
	if err != nil {
		if errors.Is(err, imageops.ErrSingularTransform) {
			return nil, fmt.Errorf("%w: %w", ErrIllConditioned, err)
		}
		return nil, err
	}
	out := warped
	if border > 0 {
		out = imaging.Paste(imaging.New(w+2*border, h+2*border, r.cfg.BorderColor), warped, image.Pt(border, border))
	}
	return &Result{
		Image:    out,
		Detected: detected,
		Corners:  corners,
		Width:    w,
		Height:   h,
		Border:   border,
	}, nil
}
