package detector

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/MeKo-Tech/cardcrop/internal/imageops"
	"github.com/MeKo-Tech/cardcrop/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardImage(w, h int, cards ...image.Rectangle) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 40
	}
	for _, r := range cards {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetGray(x, y, color.Gray{Y: 220})
			}
		}
	}
	return img
}

func filledMask(w, h int, poly []utils.Point) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	utils.FillPolygon(m, poly, color.Gray{Y: 255})
	return m
}

func disk(cx, cy, r float64, n int) []utils.Point {
	pts := make([]utils.Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = utils.Pt(cx+r*math.Cos(a), cy+r*math.Sin(a))
	}
	return pts
}

func newTestDetector(t *testing.T, opts ...Option) *Detector {
	t.Helper()
	opts = append([]Option{WithOps(imageops.NewNative())}, opts...)
	d, err := New(DefaultConfig(), opts...)
	require.NoError(t, err)
	return d
}

func assertHasVertexNear(t *testing.T, pts []utils.Point, want utils.Point, tol float64) {
	t.Helper()
	for _, p := range pts {
		if utils.Dist(p, want) <= tol {
			return
		}
	}
	t.Errorf("no vertex within %.1fpx of %v in %v", tol, want, pts)
}

func analyze(t *testing.T, d *Detector, img image.Image) *Frame {
	t.Helper()
	gray, err := d.Preprocess(img)
	require.NoError(t, err)
	b := gray.Bounds()
	return d.NewFrame(b.Dx(), b.Dy(), d.EdgeMaps(img, gray))
}

func TestPreprocess(t *testing.T) {
	d := newTestDetector(t)

	_, err := d.Preprocess(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
	_, err = d.Preprocess(image.NewGray(image.Rect(0, 0, 0, 10)))
	assert.ErrorIs(t, err, ErrEmptyImage)

	gray, err := d.Preprocess(cardImage(120, 80))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 120, 80), gray.Bounds())
}

func TestEdgeMaps_DefaultMethods(t *testing.T) {
	d := newTestDetector(t)
	img := cardImage(200, 150, image.Rect(40, 30, 160, 120))
	gray, err := d.Preprocess(img)
	require.NoError(t, err)

	maps := d.EdgeMaps(img, gray)
	require.Len(t, maps, 2)
	assert.Equal(t, MethodGradient, maps[0].Method)
	assert.Equal(t, MethodAdaptive, maps[1].Method)
	for _, m := range maps {
		assert.Equal(t, gray.Bounds(), m.Mask.Bounds())
	}
}

type fakeModel struct {
	mask *image.Gray
	err  error
}

func (f fakeModel) Mask(_ image.Image, w, h int) (*image.Gray, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.mask, nil
}

func (fakeModel) Close() error { return nil }

func TestEdgeMaps_ModelMap(t *testing.T) {
	img := cardImage(100, 80)
	mask := image.NewGray(image.Rect(0, 0, 100, 80))

	d := newTestDetector(t, WithMaskModel(fakeModel{mask: mask}))
	assert.True(t, d.HasModel())
	gray, err := d.Preprocess(img)
	require.NoError(t, err)
	maps := d.EdgeMaps(img, gray)
	require.Len(t, maps, 3)
	assert.Equal(t, MethodModel, maps[2].Method)

	failing := newTestDetector(t, WithMaskModel(fakeModel{err: errors.New("boom")}))
	assert.Len(t, failing.EdgeMaps(img, gray), 2, "a failing model only drops its own map")
}

func TestSelectCandidate_SyntheticCard(t *testing.T) {
	d := newTestDetector(t)
	f := analyze(t, d, cardImage(800, 600, image.Rect(100, 100, 700, 500)))

	cand, ok := d.SelectCandidate(f)
	require.True(t, ok)
	assert.Equal(t, MethodGradient, cand.Method)
	assert.Equal(t, 4, cand.Vertices)
	assert.False(t, cand.BorderAdjacent)
	for _, want := range []utils.Point{{X: 100, Y: 100}, {X: 700, Y: 100}, {X: 700, Y: 500}, {X: 100, Y: 500}} {
		assertHasVertexNear(t, cand.Polygon, want, 3)
	}
}

func TestSelectCandidate_TieGoesToGradient(t *testing.T) {
	d := newTestDetector(t)
	mask := filledMask(400, 300, []utils.Point{{X: 50, Y: 50}, {X: 250, Y: 50}, {X: 250, Y: 200}, {X: 50, Y: 200}})
	f := d.NewFrame(400, 300, []EdgeMap{
		{Method: MethodAdaptive, Mask: mask},
		{Method: MethodGradient, Mask: mask},
	})

	cand, ok := d.SelectCandidate(f)
	require.True(t, ok)
	assert.Equal(t, MethodGradient, cand.Method)
}

func TestSelectCandidate_RejectsFrameAndTinyShapes(t *testing.T) {
	d := newTestDetector(t)
	full := filledMask(400, 300, []utils.Point{{X: 0, Y: 0}, {X: 400, Y: 0}, {X: 400, Y: 300}, {X: 0, Y: 300}})
	tiny := filledMask(400, 300, []utils.Point{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 20, Y: 20}, {X: 10, Y: 20}})
	f := d.NewFrame(400, 300, []EdgeMap{
		{Method: MethodGradient, Mask: full},
		{Method: MethodAdaptive, Mask: tiny},
	})

	_, ok := d.SelectCandidate(f)
	assert.False(t, ok)
}

func TestSelectAll_TwoCards(t *testing.T) {
	d := newTestDetector(t)
	f := analyze(t, d, cardImage(800, 600, image.Rect(50, 50, 350, 300), image.Rect(450, 300, 750, 550)))

	cands := d.SelectAll(f)
	require.Len(t, cands, 2)
	for _, c := range cands {
		assert.Equal(t, 4, c.Vertices)
	}
}

func TestSelectAll_DropsNested(t *testing.T) {
	d := newTestDetector(t)
	outer := filledMask(400, 300, []utils.Point{{X: 50, Y: 50}, {X: 350, Y: 50}, {X: 350, Y: 250}, {X: 50, Y: 250}})
	inner := filledMask(400, 300, []utils.Point{{X: 150, Y: 100}, {X: 250, Y: 100}, {X: 250, Y: 200}, {X: 150, Y: 200}})
	f := d.NewFrame(400, 300, []EdgeMap{
		{Method: MethodGradient, Mask: outer},
		{Method: MethodAdaptive, Mask: inner},
	})

	cands := d.SelectAll(f)
	require.Len(t, cands, 1)
	assert.Equal(t, MethodGradient, cands[0].Method)
}

func TestAllNearBorder(t *testing.T) {
	frame := []utils.Point{{X: 0, Y: 0}, {X: 399, Y: 0}, {X: 399, Y: 299}, {X: 0, Y: 299}}
	assert.True(t, allNearBorder(frame, 400, 300, 2))
	inner := []utils.Point{{X: 0, Y: 0}, {X: 200, Y: 50}, {X: 399, Y: 299}, {X: 0, Y: 299}}
	assert.False(t, allNearBorder(inner, 400, 300, 2))
	assert.False(t, allNearBorder(nil, 400, 300, 2))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlurKernel = 4
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"even adaptive block", func(c *Config) { c.AdaptiveBlock = 10 }, false},
		{"inverted canny", func(c *Config) { c.CannyLow, c.CannyHigh = 150, 50 }, false},
		{"inverted area", func(c *Config) { c.MinAreaFrac, c.MaxAreaFrac = 0.5, 0.4 }, false},
		{"bad epsilon", func(c *Config) { c.ApproxEpsilon = 0 }, false},
		{"negative max dimension", func(c *Config) { c.MaxDimension = -1 }, false},
		{"clahe disabled ignores tiles", func(c *Config) { c.CLAHE = false; c.CLAHETiles = 0 }, true},
		{"model threshold", func(c *Config) { c.Model.Path = "m.onnx"; c.Model.Threshold = 1.5 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestProbabilityMask(t *testing.T) {
	prob := []float32{
		0.9, 0.1,
		0.2, 0.6,
	}
	m := ProbabilityMask(prob, 2, 2, 0.5, 4, 4)
	assert.Equal(t, uint8(255), m.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), m.GrayAt(1, 1).Y)
	assert.Zero(t, m.GrayAt(3, 0).Y)
	assert.Zero(t, m.GrayAt(0, 3).Y)
	assert.Equal(t, uint8(255), m.GrayAt(3, 3).Y)

	empty := ProbabilityMask(nil, 2, 2, 0.5, 4, 4)
	assert.Equal(t, image.Rect(0, 0, 4, 4), empty.Bounds())
}
