package detector

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/cardcrop/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firstSuccess(f *Frame, strategies []Strategy) (string, utils.Quad, bool) {
	for _, s := range strategies {
		if q, ok := s.Find(f); ok {
			return s.Name, q, true
		}
	}
	return "", utils.Quad{}, false
}

func TestDefaultStrategies_Order(t *testing.T) {
	names := make([]string, 0, 4)
	for _, s := range DefaultStrategies() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{FallbackBoundingRect, FallbackLines, FallbackHull, FallbackLargest}, names)
}

func TestFallbackOrdering_LargeRoundContourUsesBoundingRect(t *testing.T) {
	d := newTestDetector(t)
	mask := filledMask(800, 600, disk(400, 300, 150, 90))
	f := d.NewFrame(800, 600, []EdgeMap{{Method: MethodGradient, Mask: mask}})

	_, ok := d.SelectCandidate(f)
	require.False(t, ok, "a disk must not produce a four-sided candidate")

	name, q, ok := firstSuccess(f, d.Strategies())
	require.True(t, ok)
	assert.Equal(t, FallbackBoundingRect, name)

	// The enclosing rectangle of a disk is a square of side ~ the diameter.
	assert.InDelta(t, 300, utils.Dist(q[0], q[1]), 8)
	assert.InDelta(t, 300, utils.Dist(q[1], q[2]), 8)
}

func TestBoundingRectFallback_SkipsSmallAndFrameContours(t *testing.T) {
	d := newTestDetector(t)
	small := filledMask(800, 600, disk(400, 300, 60, 60))
	f := d.NewFrame(800, 600, []EdgeMap{{Method: MethodGradient, Mask: small}})
	_, ok := BoundingRectFallback(f)
	assert.False(t, ok)

	full := filledMask(800, 600, []utils.Point{{X: 0, Y: 0}, {X: 800, Y: 0}, {X: 800, Y: 600}, {X: 0, Y: 600}})
	f = d.NewFrame(800, 600, []EdgeMap{{Method: MethodAdaptive, Mask: full}})
	_, ok = BoundingRectFallback(f)
	assert.False(t, ok)
}

func TestLineIntersectionFallback(t *testing.T) {
	d := newTestDetector(t)
	outline := image.NewGray(image.Rect(0, 0, 800, 600))
	corners := []utils.Point{{X: 100, Y: 100}, {X: 700, Y: 100}, {X: 700, Y: 500}, {X: 100, Y: 500}}
	utils.DrawPolygon(outline, corners, color.Gray{Y: 255}, 1)
	f := d.NewFrame(800, 600, []EdgeMap{{Method: MethodGradient, Mask: outline}})

	q, ok := LineIntersectionFallback(f)
	require.True(t, ok)
	for _, want := range corners {
		assertHasVertexNear(t, q.Points(), want, 2)
	}
}

func TestLineIntersectionFallback_SlantedSides(t *testing.T) {
	d := newTestDetector(t)
	outline := image.NewGray(image.Rect(0, 0, 800, 600))
	// Horizontal top and bottom, sides at 45 degrees.
	corners := []utils.Point{{X: 150, Y: 150}, {X: 450, Y: 150}, {X: 750, Y: 450}, {X: 450, Y: 450}}
	utils.DrawPolygon(outline, corners, color.Gray{Y: 255}, 1)
	f := d.NewFrame(800, 600, []EdgeMap{{Method: MethodGradient, Mask: outline}})

	q, ok := LineIntersectionFallback(f)
	require.True(t, ok, "45 degree sides count as vertical-like")
	for _, want := range corners {
		assertHasVertexNear(t, q.Points(), want, 3)
	}
}

func TestLineIntersectionFallback_NeedsTwoPerClass(t *testing.T) {
	d := newTestDetector(t)
	lines := image.NewGray(image.Rect(0, 0, 800, 600))
	utils.DrawPolygon(lines, []utils.Point{{X: 100, Y: 100}, {X: 700, Y: 100}}, color.Gray{Y: 255}, 1)
	f := d.NewFrame(800, 600, []EdgeMap{{Method: MethodGradient, Mask: lines}})

	_, ok := LineIntersectionFallback(f)
	assert.False(t, ok)

	noGradient := d.NewFrame(800, 600, []EdgeMap{{Method: MethodAdaptive, Mask: lines}})
	_, ok = LineIntersectionFallback(noGradient)
	assert.False(t, ok)
}

func TestConvexHullFallback(t *testing.T) {
	d := newTestDetector(t)

	pentagon := []utils.Point{{X: 200, Y: 40}, {X: 360, Y: 150}, {X: 300, Y: 280}, {X: 100, Y: 280}, {X: 40, Y: 150}}
	f := d.NewFrame(400, 320, []EdgeMap{{Method: MethodGradient, Mask: filledMask(400, 320, pentagon)}})
	q, ok := ConvexHullFallback(f)
	require.True(t, ok)
	for _, p := range q {
		assert.NotEqual(t, utils.Point{}, p)
	}

	triangle := []utils.Point{{X: 200, Y: 40}, {X: 360, Y: 280}, {X: 40, Y: 280}}
	f = d.NewFrame(400, 320, []EdgeMap{{Method: MethodGradient, Mask: filledMask(400, 320, triangle)}})
	_, ok = ConvexHullFallback(f)
	assert.False(t, ok, "three hull vertices cannot form a quadrilateral")
}

func TestLargestContourFallback(t *testing.T) {
	d := newTestDetector(t)

	triangle := []utils.Point{{X: 200, Y: 40}, {X: 360, Y: 280}, {X: 40, Y: 280}}
	f := d.NewFrame(400, 320, []EdgeMap{{Method: MethodGradient, Mask: filledMask(400, 320, triangle)}})
	q, ok := LargestContourFallback(f)
	require.True(t, ok, "the last strategy succeeds whenever a contour exists")
	assert.NotEqual(t, q[0], q[2])

	empty := d.NewFrame(400, 320, []EdgeMap{{Method: MethodGradient, Mask: image.NewGray(image.Rect(0, 0, 400, 320))}})
	_, ok = LargestContourFallback(empty)
	assert.False(t, ok)
	assert.Zero(t, empty.ContourCount())
}

func TestWithStrategies_Replaces(t *testing.T) {
	called := false
	custom := []Strategy{{Name: "custom", Find: func(*Frame) (utils.Quad, bool) {
		called = true
		return utils.Quad{}, false
	}}}
	d := newTestDetector(t, WithStrategies(custom))
	require.Len(t, d.Strategies(), 1)
	_, _, ok := firstSuccess(d.NewFrame(10, 10, nil), d.Strategies())
	assert.False(t, ok)
	assert.True(t, called)
}
