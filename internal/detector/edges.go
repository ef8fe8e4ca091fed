package detector

import (
	"errors"
	"image"
	"log/slog"
)

// EdgeMethod names the technique that produced an edge map.
type EdgeMethod string

const (
	MethodGradient EdgeMethod = "gradient"
	MethodAdaptive EdgeMethod = "adaptive"
	MethodModel    EdgeMethod = "model"
)

// priority orders methods for tie breaking; higher wins.
func (m EdgeMethod) priority() int {
	switch m {
	case MethodGradient:
		return 3
	case MethodAdaptive:
		return 2
	case MethodModel:
		return 1
	default:
		return 0
	}
}

// EdgeMap is a binary boundary mask (0/255) tagged with its method.
type EdgeMap struct {
	Method EdgeMethod
	Mask   *image.Gray
}

// ErrEmptyImage is returned for images with no pixels.
var ErrEmptyImage = errors.New("image has zero width or height")

// Preprocess converts img to a smoothed single-channel image, applying
// local contrast normalization when enabled.
func (d *Detector) Preprocess(img image.Image) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	gray := d.ops.Grayscale(img)
	out := d.ops.GaussianBlur(gray, d.cfg.BlurKernel)
	if d.cfg.CLAHE {
		out = d.ops.EqualizeLocal(out, d.cfg.CLAHEClipLimit, d.cfg.CLAHETiles)
	}
	return out, nil
}

// EdgeMaps builds every boundary map for the preprocessed image in priority
// order. src is the colour working image, used only by the model map.
func (d *Detector) EdgeMaps(src image.Image, gray *image.Gray) []EdgeMap {
	edges := d.ops.Canny(gray, d.cfg.CannyLow, d.cfg.CannyHigh)
	maps := []EdgeMap{
		{Method: MethodGradient, Mask: d.ops.Close(edges, d.cfg.CloseKernel)},
		{Method: MethodAdaptive, Mask: d.ops.AdaptiveThresholdMean(gray, d.cfg.AdaptiveBlock, d.cfg.AdaptiveC)},
	}
	if d.model != nil {
		b := gray.Bounds()
		mask, err := d.model.Mask(src, b.Dx(), b.Dy())
		if err != nil {
			slog.Warn("segmentation model failed, continuing without model map", "error", err)
		} else {
			maps = append(maps, EdgeMap{Method: MethodModel, Mask: mask})
		}
	}
	return maps
}
