package orientation

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stripes draws 10px black and white stripes running vertically or
// horizontally.
func stripes(w, h int, vertical bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := y
			if vertical {
				v = x
			}
			c := color.NRGBA{255, 255, 255, 255}
			if (v/10)%2 == 0 {
				c = color.NRGBA{0, 0, 0, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func heuristicClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultConfig())
	require.NoError(t, err)
	require.True(t, c.Heuristic())
	t.Cleanup(func() { assert.NoError(t, c.Close()) })
	return c
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.InputSize = 8
	cfg.ConfidenceThreshold = 1.5
	cfg.SquareThreshold = 0.5
	cfg.NumThreads = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input size")
	assert.Contains(t, err.Error(), "confidence threshold")
	assert.Contains(t, err.Error(), "square threshold")
	assert.Contains(t, err.Error(), "num threads")

	_, err = NewClassifier(cfg)
	require.Error(t, err)
}

func TestNewClassifier_MissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/orientation.onnx"
	_, err := NewClassifier(cfg)
	require.Error(t, err)
}

func TestPredict_Heuristic(t *testing.T) {
	c := heuristicClassifier(t)

	res, err := c.Predict(stripes(300, 200, true))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Angle)
	assert.GreaterOrEqual(t, res.Confidence, 0.9)

	res, err = c.Predict(stripes(300, 200, false))
	require.NoError(t, err)
	assert.Equal(t, 90, res.Angle)
	assert.GreaterOrEqual(t, res.Confidence, 0.7)
}

func TestPredict_SkipsSquareAndTinyImages(t *testing.T) {
	c := heuristicClassifier(t)

	res, err := c.Predict(stripes(200, 200, false))
	require.NoError(t, err)
	assert.Equal(t, Result{Angle: 0, Confidence: 1}, res)

	res, err = c.Predict(image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Angle)

	_, err = c.Predict(nil)
	require.Error(t, err)
}

func TestPredict_BelowThresholdIsUpright(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConfidenceThreshold = 1
	c, err := NewClassifier(cfg)
	require.NoError(t, err)

	// A uniform image has no transitions and zero confidence.
	img := image.NewNRGBA(image.Rect(0, 0, 300, 200))
	res, err := c.Predict(img)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Angle)
	assert.InDelta(t, 0.0, res.Confidence, 1e-9)
}

func TestCorrect(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	red := color.NRGBA{255, 0, 0, 255}
	img.SetNRGBA(0, 0, red)

	tests := []struct {
		angle      int
		w, h, x, y int
	}{
		{0, 4, 2, 0, 0},
		{90, 2, 4, 0, 3},
		{180, 4, 2, 3, 1},
		{270, 2, 4, 1, 0},
		{-90, 2, 4, 1, 0},
		{450, 2, 4, 0, 3},
	}
	for _, tt := range tests {
		out := Correct(img, tt.angle)
		assert.Equal(t, tt.w, out.Bounds().Dx(), "angle %d", tt.angle)
		assert.Equal(t, tt.h, out.Bounds().Dy(), "angle %d", tt.angle)
		assert.Equal(t, red, out.NRGBAAt(tt.x, tt.y), "angle %d", tt.angle)
		assert.Equal(t, SwapsAxes(tt.angle), tt.w != 4, "angle %d", tt.angle)
	}
}

func TestSoftmaxArgmax(t *testing.T) {
	probs := softmax([]float32{1, 3, 2, 0})
	require.Len(t, probs, 4)
	var sum float64
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, 1, argmax(probs))

	assert.Nil(t, softmax(nil))
	assert.Equal(t, -1, argmax(nil))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 0, Normalize(0))
	assert.Equal(t, 0, Normalize(360))
	assert.Equal(t, 270, Normalize(-90))
	assert.Equal(t, 90, Normalize(450))
	assert.Equal(t, 180, Normalize(200))
}
