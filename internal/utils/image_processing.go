package utils

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/cardcrop/internal/mempool"
	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ResizeToMax downsizes img so that its longest side is at most maxDim,
// preserving aspect ratio with Lanczos resampling. It returns the image used
// for processing and the factor that maps its coordinates back to img.
// Images already within bounds are returned unchanged with scale 1.
func ResizeToMax(img image.Image, maxDim int) (image.Image, float64, error) {
	if img == nil {
		return nil, 0, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, 0, &ImageProcessingError{Operation: "resize", Err: fmt.Errorf("invalid dimensions %dx%d", w, h)}
	}
	longest := max(w, h)
	if maxDim <= 0 || longest <= maxDim {
		return img, 1, nil
	}
	scale := float64(maxDim) / float64(longest)
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	resized := imaging.Resize(img, nw, nh, imaging.Lanczos)
	return resized, float64(w) / float64(nw), nil
}

// NormalizeImage converts img to a planar NCHW float tensor scaled to 0..1.
// The tensor is drawn from mempool; callers may return it with
// mempool.PutFloat32 once inference is done.
func NormalizeImage(img image.Image) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}
	nrgba := imaging.Clone(img)
	width, height := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	if width <= 0 || height <= 0 {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("invalid image dimensions")}
	}
	plane := width * height
	tensor := mempool.GetFloat32(3 * plane)
	for y := range height {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range width {
			idx := y*width + x
			tensor[idx] = float32(row[4*x]) / 255
			tensor[plane+idx] = float32(row[4*x+1]) / 255
			tensor[2*plane+idx] = float32(row[4*x+2]) / 255
		}
	}
	return tensor, width, height, nil
}
