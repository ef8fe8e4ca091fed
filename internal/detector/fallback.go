package detector

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/cardcrop/internal/imageops"
	"github.com/MeKo-Tech/cardcrop/internal/utils"
)

// Strategy reconstructs a quadrilateral from a frame when no candidate
// survived selection. Find must not modify the frame.
type Strategy struct {
	Name string
	Find func(f *Frame) (utils.Quad, bool)
}

// Fallback strategy names, in default order.
const (
	FallbackBoundingRect = "bounding_rect"
	FallbackLines        = "line_intersection"
	FallbackHull         = "convex_hull"
	FallbackLargest      = "largest_contour"
)

// DefaultStrategies returns the fallback chain from strongest to weakest.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: FallbackBoundingRect, Find: BoundingRectFallback},
		{Name: FallbackLines, Find: LineIntersectionFallback},
		{Name: FallbackHull, Find: ConvexHullFallback},
		{Name: FallbackLargest, Find: LargestContourFallback},
	}
}

// BoundingRectFallback takes the largest contour covering a meaningful share
// of the image whose bounding box is not the image frame, and returns its
// minimum-area rectangle.
func BoundingRectFallback(f *Frame) (utils.Quad, bool) {
	minArea := f.cfg.FallbackMinAreaFrac * f.Area()
	c, ok := f.largestContour(func(c []utils.Point, area float64) bool {
		return area > minArea && !spansFrame(utils.BoundingBox(c), f.Width, f.Height, f.cfg.BorderTolerancePx)
	})
	if !ok {
		return utils.Quad{}, false
	}
	return utils.QuadFromPoints(f.ops.MinAreaRect(c))
}

// LineIntersectionFallback intersects the two longest horizontal-like and
// vertical-like segments of the gradient map. Segments with |sin θ| < 0.5
// are horizontal-like, all others vertical-like.
func LineIntersectionFallback(f *Frame) (utils.Quad, bool) {
	em, ok := f.Map(MethodGradient)
	if !ok {
		return utils.Quad{}, false
	}
	segs := f.ops.HoughSegments(em.Mask, imageops.DefaultHoughParams(f.Width))

	var horiz, vert []imageops.Segment
	for _, s := range segs {
		a := s.Angle()
		if math.Abs(math.Sin(a)) < 0.5 {
			horiz = append(horiz, s)
		} else {
			vert = append(vert, s)
		}
	}
	if len(horiz) < 2 || len(vert) < 2 {
		return utils.Quad{}, false
	}
	longestFirst := func(s []imageops.Segment) {
		sort.SliceStable(s, func(i, j int) bool { return s[i].Length() > s[j].Length() })
	}
	longestFirst(horiz)
	longestFirst(vert)

	var q utils.Quad
	pairs := [4][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	for i, p := range pairs {
		pt, ok := utils.Intersect(horiz[p[0]].Line(), vert[p[1]].Line())
		if !ok {
			return utils.Quad{}, false
		}
		q[i] = pt
	}
	return q, true
}

// ConvexHullFallback simplifies the hull of the largest contour. More than
// four vertices are truncated to the first four in hull order.
func ConvexHullFallback(f *Frame) (utils.Quad, bool) {
	c, ok := f.largestContour(nil)
	if !ok {
		return utils.Quad{}, false
	}
	hull := f.ops.ConvexHull(c)
	approx := f.ops.ApproxPoly(hull, f.cfg.ApproxEpsilon*f.ops.ArcLength(hull))
	return utils.QuadFromPoints(approx)
}

// LargestContourFallback always succeeds when any contour exists: the first
// four simplified vertices, or four points evenly spaced along the contour.
func LargestContourFallback(f *Frame) (utils.Quad, bool) {
	c, ok := f.largestContour(nil)
	if !ok {
		return utils.Quad{}, false
	}
	approx := f.ops.ApproxPoly(c, f.cfg.ApproxEpsilon*f.ops.ArcLength(c))
	if q, ok := utils.QuadFromPoints(approx); ok {
		return q, true
	}
	var q utils.Quad
	n := len(c)
	for i := range q {
		q[i] = c[i*n/4]
	}
	return q, true
}
