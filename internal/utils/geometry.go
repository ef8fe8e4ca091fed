package utils

import (
	"image"
	"math"
)

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64
	Y float64
}

// Pt is shorthand for constructing a Point.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Scale multiplies both coordinates by s.
func (p Point) Scale(s float64) Point { return Point{X: p.X * s, Y: p.Y * s} }

// Dist returns the euclidean distance between p and q.
func Dist(p, q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Box represents an axis-aligned bounding box in float coordinates.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Area returns the box area.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// ToRect converts a Box to an image.Rectangle, clamped to image bounds.
func (b Box) ToRect(bounds image.Rectangle) image.Rectangle {
	x1 := clampInt(int(math.Floor(b.MinX)), bounds.Min.X, bounds.Max.X)
	y1 := clampInt(int(math.Floor(b.MinY)), bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(int(math.Ceil(b.MaxX)), bounds.Min.X, bounds.Max.X)
	y2 := clampInt(int(math.Ceil(b.MaxY)), bounds.Min.Y, bounds.Max.Y)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return image.Rect(x1, y1, x2, y2)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// BoundingBox returns the axis-aligned bounding box for a set of points.
func BoundingBox(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	b := Box{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b
}

// Centroid returns the vertex average of pts.
func Centroid(pts []Point) Point {
	var c Point
	if len(pts) == 0 {
		return c
	}
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(pts))
	return Point{X: c.X / n, Y: c.Y / n}
}

// ScalePoints returns a copy of pts with x scaled by sx and y by sy.
func ScalePoints(pts []Point, sx, sy float64) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{X: p.X * sx, Y: p.Y * sy}
	}
	return out
}

// Line is an infinite line through two points.
type Line struct {
	A Point
	B Point
}

// Intersect returns the intersection of two infinite lines. ok is false for
// parallel or degenerate lines.
func Intersect(l1, l2 Line) (Point, bool) {
	// a*x + b*y = c form
	a1 := l1.B.Y - l1.A.Y
	b1 := l1.A.X - l1.B.X
	c1 := a1*l1.A.X + b1*l1.A.Y
	a2 := l2.B.Y - l2.A.Y
	b2 := l2.A.X - l2.B.X
	c2 := a2*l2.A.X + b2*l2.A.Y
	det := a1*b2 - a2*b1
	if math.Abs(det) < 1e-9 {
		return Point{}, false
	}
	return Point{X: (c1*b2 - c2*b1) / det, Y: (a1*c2 - a2*c1) / det}, true
}

// Quad is a quadrilateral given by its four corners.
type Quad [4]Point

// Points returns the corners as a slice.
func (q Quad) Points() []Point { return append([]Point(nil), q[:]...) }

// Scale multiplies every corner by s.
func (q Quad) Scale(s float64) Quad {
	for i := range q {
		q[i] = q[i].Scale(s)
	}
	return q
}

// QuadFromPoints returns the first four points of pts as a Quad.
func QuadFromPoints(pts []Point) (Quad, bool) {
	var q Quad
	if len(pts) < 4 {
		return q, false
	}
	copy(q[:], pts[:4])
	return q, true
}
