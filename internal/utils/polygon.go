package utils

import (
	"math"
	"sort"
)

// Perimeter returns the length of the closed polygon through pts.
func Perimeter(pts []Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	total := 0.0
	for i := range pts {
		total += Dist(pts[i], pts[(i+1)%len(pts)])
	}
	return total
}

// SignedArea returns the shoelace area of the closed polygon. Positive for
// counter-clockwise order in a y-up frame, which is clockwise on screen.
func SignedArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	s := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		s += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return s / 2
}

// PolygonArea returns the absolute shoelace area.
func PolygonArea(pts []Point) float64 { return math.Abs(SignedArea(pts)) }

// ApproxClosed simplifies a closed contour with Douglas–Peucker at tolerance
// epsilon. The contour is split at two mutually distant points so that the
// result does not depend on where tracing started.
func ApproxClosed(pts []Point, epsilon float64) []Point {
	n := len(pts)
	if n <= 3 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}
	a := farthestFrom(pts, pts[0])
	b := farthestFrom(pts, pts[a])
	if a == b {
		return []Point{pts[a]}
	}

	// Rotate so that the first split point sits at index 0.
	ring := make([]Point, 0, n+1)
	ring = append(ring, pts[a:]...)
	ring = append(ring, pts[:a]...)
	ring = append(ring, pts[a])
	mid := (b - a + n) % n

	keep := make([]bool, len(ring))
	keep[0], keep[mid] = true, true
	dpSimplify(ring, 0, mid, epsilon, keep)
	dpSimplify(ring, mid, n, epsilon, keep)

	out := make([]Point, 0, 8)
	for i := 0; i < n; i++ {
		if keep[i] {
			out = append(out, ring[i])
		}
	}
	return out
}

// SimplifyPolyline runs Douglas–Peucker on an open polyline, always keeping
// both endpoints.
func SimplifyPolyline(pts []Point, epsilon float64) []Point {
	if len(pts) <= 2 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}
	keep := make([]bool, len(pts))
	keep[0], keep[len(pts)-1] = true, true
	dpSimplify(pts, 0, len(pts)-1, epsilon, keep)
	out := make([]Point, 0, len(pts))
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

func farthestFrom(pts []Point, ref Point) int {
	best, bestD := 0, -1.0
	for i, p := range pts {
		if d := Dist(p, ref); d > bestD {
			best, bestD = i, d
		}
	}
	return best
}

func dpSimplify(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	index := -1
	for i := start + 1; i < end; i++ {
		if d := segmentDistance(pts[i], pts[start], pts[end]); d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist > eps {
		keep[index] = true
		dpSimplify(pts, start, index, eps, keep)
		dpSimplify(pts, index, end, eps, keep)
	}
}

// segmentDistance is the distance from p to the line through a and b, or to
// a when the two coincide.
func segmentDistance(p, a, b Point) float64 {
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		return Dist(p, a)
	}
	return math.Abs((p.X-a.X)*vy-(p.Y-a.Y)*vx) / math.Hypot(vx, vy)
}

// ConvexHull computes the convex hull with the monotone chain algorithm.
// The hull is returned without repeating the first point.
func ConvexHull(pts []Point) []Point {
	if len(pts) <= 1 {
		return append([]Point(nil), pts...)
	}
	p := append([]Point(nil), pts...)
	sort.Slice(p, func(i, j int) bool {
		if p[i].X != p[j].X {
			return p[i].X < p[j].X
		}
		return p[i].Y < p[j].Y
	})
	p = dedupeSorted(p)
	if len(p) <= 2 {
		return p
	}

	hull := make([]Point, 0, 2*len(p))
	for _, pt := range p {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	lower := len(hull) + 1
	for i := len(p) - 2; i >= 0; i-- {
		pt := p[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	return hull[:len(hull)-1]
}

func dedupeSorted(p []Point) []Point {
	out := p[:1]
	for _, pt := range p[1:] {
		if last := out[len(out)-1]; pt != last {
			out = append(out, pt)
		}
	}
	return out
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// MinAreaRect returns the 4 corners of the minimum-area enclosing rectangle
// of pts, found with rotating calipers over the convex hull.
func MinAreaRect(pts []Point) []Point {
	hull := ConvexHull(pts)
	switch len(hull) {
	case 0:
		return nil
	case 1:
		p := hull[0]
		return []Point{p, p, p, p}
	case 2:
		return []Point{hull[0], hull[1], hull[1], hull[0]}
	}

	bestArea := math.Inf(1)
	var u, v Point
	var minS, maxS, minT, maxT float64
	for i := range hull {
		e := hull[(i+1)%len(hull)].Sub(hull[i])
		l := math.Hypot(e.X, e.Y)
		if l == 0 {
			continue
		}
		eu := e.Scale(1 / l)
		ev := Point{X: -eu.Y, Y: eu.X}
		s0, s1 := math.Inf(1), math.Inf(-1)
		t0, t1 := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			s := p.X*eu.X + p.Y*eu.Y
			t := p.X*ev.X + p.Y*ev.Y
			s0, s1 = math.Min(s0, s), math.Max(s1, s)
			t0, t1 = math.Min(t0, t), math.Max(t1, t)
		}
		if area := (s1 - s0) * (t1 - t0); area < bestArea {
			bestArea = area
			u, v = eu, ev
			minS, maxS, minT, maxT = s0, s1, t0, t1
		}
	}
	corner := func(s, t float64) Point {
		return Point{X: u.X*s + v.X*t, Y: u.Y*s + v.Y*t}
	}
	return []Point{corner(minS, minT), corner(maxS, minT), corner(maxS, maxT), corner(minS, maxT)}
}

// SegmentsCross reports whether the open segments p1p2 and q1q2 properly
// intersect.
func SegmentsCross(p1, p2, q1, q2 Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// IsSimpleQuad reports whether the closed quadrilateral q does not
// self-intersect.
func IsSimpleQuad(q Quad) bool {
	return !SegmentsCross(q[0], q[1], q[2], q[3]) && !SegmentsCross(q[1], q[2], q[3], q[0])
}

// PointInPolygon reports whether p lies strictly inside the closed polygon
// (even-odd rule).
func PointInPolygon(p Point, poly []Point) bool {
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}
