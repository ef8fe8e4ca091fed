// Package imageops defines the image primitives the card detector is written
// against and provides a pure-Go implementation of them. An OpenCV-backed
// implementation is linked instead when building with -tags=gocv.
//
// All binary maps use 0 for background and 255 for foreground. Coordinates
// are relative to the image's Bounds().Min.
package imageops

import (
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/cardcrop/internal/utils"
)

// Segment is a straight line segment found in a binary edge map.
type Segment struct {
	A utils.Point
	B utils.Point
}

// Length returns the segment length in pixels.
func (s Segment) Length() float64 { return utils.Dist(s.A, s.B) }

// Angle returns the segment direction in radians, in (-pi, pi].
func (s Segment) Angle() float64 { return math.Atan2(s.B.Y-s.A.Y, s.B.X-s.A.X) }

// Line returns the infinite line through the segment.
func (s Segment) Line() utils.Line { return utils.Line{A: s.A, B: s.B} }

// HoughParams configures line segment detection.
type HoughParams struct {
	Rho           float64 // accumulator distance resolution in pixels
	Theta         float64 // accumulator angle resolution in radians
	Threshold     int     // minimum votes for a line
	MinLineLength float64 // shorter segments are discarded
	MaxLineGap    float64 // maximum gap bridged between points on the same line
}

// DefaultHoughParams returns the parameters used for card edges in an image
// of the given width.
func DefaultHoughParams(width int) HoughParams {
	return HoughParams{
		Rho:           1,
		Theta:         math.Pi / 180,
		Threshold:     100,
		MinLineLength: float64(width) / 4,
		MaxLineGap:    20,
	}
}

// Homography is a row-major 3x3 projective transform.
type Homography [9]float64

// Apply maps (x, y) through the transform.
func (h Homography) Apply(x, y float64) (float64, float64) {
	w := h[6]*x + h[7]*y + h[8]
	if w == 0 {
		return math.Inf(1), math.Inf(1)
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w
}

// Ops is the capability interface over image primitives.
type Ops interface {
	// Grayscale converts img to single-channel luminance.
	Grayscale(img image.Image) *image.Gray
	// GaussianBlur smooths src with a ksize x ksize Gaussian kernel.
	GaussianBlur(src *image.Gray, ksize int) *image.Gray
	// EqualizeLocal applies contrast-limited adaptive histogram equalization
	// over a tiles x tiles grid.
	EqualizeLocal(src *image.Gray, clipLimit float64, tiles int) *image.Gray
	// Canny returns a binary edge map using hysteresis thresholds low/high.
	Canny(src *image.Gray, low, high float64) *image.Gray
	// Close applies morphological closing with a ksize x ksize square.
	Close(src *image.Gray, ksize int) *image.Gray
	// AdaptiveThresholdMean marks pixels brighter than their local block
	// mean minus c.
	AdaptiveThresholdMean(src *image.Gray, blockSize int, c float64) *image.Gray
	// FindExternalContours traces the outer boundary of every foreground
	// region not enclosed by another region.
	FindExternalContours(bin *image.Gray) [][]utils.Point
	// HoughSegments detects straight segments in a binary edge map.
	HoughSegments(bin *image.Gray, p HoughParams) []Segment

	// ApproxPoly simplifies a closed contour at tolerance epsilon.
	ApproxPoly(contour []utils.Point, epsilon float64) []utils.Point
	// ArcLength returns the closed perimeter of contour.
	ArcLength(contour []utils.Point) float64
	// ContourArea returns the enclosed area of contour.
	ContourArea(contour []utils.Point) float64
	// ConvexHull returns the convex hull of pts.
	ConvexHull(pts []utils.Point) []utils.Point
	// MinAreaRect returns the corners of the minimum-area enclosing rectangle.
	MinAreaRect(pts []utils.Point) []utils.Point
	// WarpPerspective maps src through m into a w x h canvas, filling
	// pixels that fall outside src with fill.
	WarpPerspective(src image.Image, m Homography, w, h int, fill color.Color) (*image.NRGBA, error)
}

// New returns the backend selected at build time.
func New() Ops { return newDefaultBackend() }

// Backend names the linked implementation.
func Backend() string { return backendName }

func newGray(w, h int) *image.Gray { return image.NewGray(image.Rect(0, 0, w, h)) }

func size(g *image.Gray) (int, int) { return g.Rect.Dx(), g.Rect.Dy() }
