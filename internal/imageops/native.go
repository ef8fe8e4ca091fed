package imageops

import (
	"image"

	"github.com/MeKo-Tech/cardcrop/internal/utils"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// Native implements Ops in pure Go.
type Native struct{}

// NewNative returns the pure-Go backend.
func NewNative() *Native { return &Native{} }

// Rec. 601 luma weights.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Grayscale converts img to luma. The result always starts at (0,0).
func (Native) Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	out := newGray(b.Dx(), b.Dy())
	if b.Empty() {
		return out
	}
	// bild keeps the luma in each of R, G and B.
	rgba := effect.GrayscaleWithWeights(img, lumaR, lumaG, lumaB)
	for y := range b.Dy() {
		src := rgba.Pix[y*rgba.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := range b.Dx() {
			dst[x] = src[4*x]
		}
	}
	return out
}

// GaussianBlur uses the sigma OpenCV derives for a kernel of size ksize.
func (Native) GaussianBlur(src *image.Gray, ksize int) *image.Gray {
	if ksize < 3 {
		return cloneGray(src)
	}
	sigma := 0.3*(float64(ksize-1)*0.5-1) + 0.8
	blurred := imaging.Blur(src, sigma)
	w, h := size(src)
	out := newGray(w, h)
	for y := range h {
		row := blurred.Pix[y*blurred.Stride:]
		for x := range w {
			out.Pix[y*out.Stride+x] = row[4*x]
		}
	}
	return out
}

func (Native) ApproxPoly(contour []utils.Point, epsilon float64) []utils.Point {
	return utils.ApproxClosed(contour, epsilon)
}

func (Native) ArcLength(contour []utils.Point) float64 { return utils.Perimeter(contour) }

func (Native) ContourArea(contour []utils.Point) float64 { return utils.PolygonArea(contour) }

func (Native) ConvexHull(pts []utils.Point) []utils.Point { return utils.ConvexHull(pts) }

func (Native) MinAreaRect(pts []utils.Point) []utils.Point { return utils.MinAreaRect(pts) }

func cloneGray(src *image.Gray) *image.Gray {
	w, h := size(src)
	out := newGray(w, h)
	for y := range h {
		copy(out.Pix[y*out.Stride:y*out.Stride+w], src.Pix[y*src.Stride:])
	}
	return out
}
