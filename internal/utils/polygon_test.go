package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rectContour walks the outline of an axis-aligned rectangle one pixel at a
// time, starting offset steps after the top-left corner.
func rectContour(x0, y0, x1, y1 float64, offset int) []Point {
	var pts []Point
	for x := x0; x < x1; x++ {
		pts = append(pts, Pt(x, y0))
	}
	for y := y0; y < y1; y++ {
		pts = append(pts, Pt(x1, y))
	}
	for x := x1; x > x0; x-- {
		pts = append(pts, Pt(x, y1))
	}
	for y := y1; y > y0; y-- {
		pts = append(pts, Pt(x0, y))
	}
	offset %= len(pts)
	return append(pts[offset:], pts[:offset]...)
}

func TestApproxClosed_RectangleIndependentOfStart(t *testing.T) {
	for _, offset := range []int{0, 7, 60, 150} {
		contour := rectContour(10, 20, 110, 80, offset)
		eps := 0.02 * Perimeter(contour)
		got := ApproxClosed(contour, eps)
		require.Len(t, got, 4, "offset %d", offset)
		assert.ElementsMatch(t, []Point{{10, 20}, {110, 20}, {110, 80}, {10, 80}}, got)
	}
}

func TestApproxClosed_ShortInputCopied(t *testing.T) {
	in := []Point{{0, 0}, {1, 0}, {1, 1}}
	got := ApproxClosed(in, 5)
	assert.Equal(t, in, got)
	got[0] = Pt(9, 9)
	assert.Equal(t, Pt(0, 0), in[0])
}

func TestSimplifyPolyline_KeepsEndpoints(t *testing.T) {
	line := []Point{{0, 0}, {1, 0.1}, {2, -0.1}, {3, 0}, {3, 5}}
	got := SimplifyPolyline(line, 0.5)
	assert.Equal(t, []Point{{0, 0}, {3, 0}, {3, 5}}, got)
}

func TestPerimeterAndArea(t *testing.T) {
	sq := []Point{{0, 0}, {4, 0}, {4, 3}, {0, 3}}
	assert.InDelta(t, 14.0, Perimeter(sq), 1e-9)
	assert.InDelta(t, 12.0, PolygonArea(sq), 1e-9)
	assert.InDelta(t, -SignedArea(sq), SignedArea([]Point{sq[3], sq[2], sq[1], sq[0]}), 1e-9)
	assert.Zero(t, PolygonArea(sq[:2]))
}

func TestConvexHull_DropsInteriorPoints(t *testing.T) {
	pts := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {5, 5}, {2, 3}, {10, 0}}
	hull := ConvexHull(pts)
	assert.Len(t, hull, 4)
	assert.NotContains(t, hull, Pt(5, 5))
}

func TestMinAreaRect_RotatedSquare(t *testing.T) {
	diamond := []Point{{50, 0}, {100, 50}, {50, 100}, {0, 50}, {50, 50}}
	rect := MinAreaRect(diamond)
	require.Len(t, rect, 4)
	assert.InDelta(t, 5000.0, PolygonArea(rect), 1e-6)
	assert.ElementsMatch(t, []Point{{50, 0}, {100, 50}, {50, 100}, {0, 50}}, roundPoints(rect))
}

func TestMinAreaRect_Degenerate(t *testing.T) {
	assert.Nil(t, MinAreaRect(nil))
	assert.Len(t, MinAreaRect([]Point{{1, 1}}), 4)
	assert.Len(t, MinAreaRect([]Point{{1, 1}, {5, 5}}), 4)
}

func TestIsSimpleQuad(t *testing.T) {
	assert.True(t, IsSimpleQuad([4]Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}))
	assert.False(t, IsSimpleQuad([4]Point{{0, 0}, {10, 10}, {10, 0}, {0, 10}}))
}

func TestIntersect_Parallel(t *testing.T) {
	_, ok := Intersect(Line{A: Pt(0, 0), B: Pt(1, 0)}, Line{A: Pt(0, 1), B: Pt(5, 1)})
	assert.False(t, ok)
}

func roundPoints(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Pt(float64(int(p.X+0.5*sign(p.X))), float64(int(p.Y+0.5*sign(p.Y))))
	}
	return out
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func TestPointInPolygon(t *testing.T) {
	square := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	assert.True(t, PointInPolygon(Pt(5, 5), square))
	assert.False(t, PointInPolygon(Pt(15, 5), square))
	assert.False(t, PointInPolygon(Pt(5, -1), square))
	assert.False(t, PointInPolygon(Pt(5, 5), nil))
}
