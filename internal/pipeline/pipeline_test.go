package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/barcode"
	"github.com/MeKo-Tech/cardcrop/internal/detector"
	"github.com/MeKo-Tech/cardcrop/internal/imageops"
	"github.com/MeKo-Tech/cardcrop/internal/orientation"
	"github.com/MeKo-Tech/cardcrop/internal/recognizer"
	"github.com/MeKo-Tech/cardcrop/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	background = color.NRGBA{R: 40, G: 40, B: 40, A: 255}
	cardColor  = color.NRGBA{R: 225, G: 225, B: 215, A: 255}
)

func syntheticImage(w, h int, cards ...image.Rectangle) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, background)
		}
	}
	for _, r := range cards {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetNRGBA(x, y, cardColor)
			}
		}
	}
	return img
}

func newTestPipeline(t *testing.T, configure func(*Builder)) *Pipeline {
	t.Helper()
	b := NewBuilder().WithOps(imageops.NewNative()).WithWorkers(2)
	if configure != nil {
		configure(b)
	}
	p, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func assertCornersNear(t *testing.T, want, got utils.Quad, tol float64) {
	t.Helper()
	for i := range want {
		assert.LessOrEqualf(t, utils.Dist(want[i], got[i]), tol, "corner %d: want %v got %v", i, want[i], got[i])
	}
}

func TestProcessImage_SyntheticCard(t *testing.T) {
	p := newTestPipeline(t, nil)
	res, err := p.ProcessImage(context.Background(), "card.png", syntheticImage(800, 600, image.Rect(100, 100, 700, 500)))
	require.NoError(t, err)
	require.Len(t, res.Crops, 1)

	c := res.Crops[0]
	assert.Equal(t, 800, res.Width)
	assert.Equal(t, 600, res.Height)
	assert.Equal(t, string(detector.MethodGradient), c.Method)
	assert.False(t, c.BorderCorrected)
	assertCornersNear(t, utils.Quad{{X: 100, Y: 100}, {X: 700, Y: 100}, {X: 700, Y: 500}, {X: 100, Y: 500}}, c.Corners, 3)
	assert.InDelta(t, 600, c.Width, 6)
	assert.InDelta(t, 400, c.Height, 6)
	assert.Equal(t, 10, c.Border)
	assert.Equal(t, image.Rect(0, 0, c.Width+20, c.Height+20), c.Image.Bounds())
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, c.Image.NRGBAAt(2, 2))
	assert.Equal(t, cardColor, c.Image.NRGBAAt(c.Image.Rect.Dx()/2, c.Image.Rect.Dy()/2))
}

func TestProcessImage_WorkingResolutionScalesBack(t *testing.T) {
	p := newTestPipeline(t, func(b *Builder) { b.WithMaxDimension(400) })
	res, err := p.ProcessImage(context.Background(), "big.png", syntheticImage(800, 600, image.Rect(100, 100, 700, 500)))
	require.NoError(t, err)
	require.Len(t, res.Crops, 1)
	assertCornersNear(t, utils.Quad{{X: 100, Y: 100}, {X: 700, Y: 100}, {X: 700, Y: 500}, {X: 100, Y: 500}}, res.Crops[0].Corners, 8)
	assert.InDelta(t, 600, res.Crops[0].Width, 12)
}

func TestProcessImage_WholeFrameIsCorrected(t *testing.T) {
	p := newTestPipeline(t, nil)
	res, err := p.ProcessImage(context.Background(), "blank.png", syntheticImage(800, 600))
	require.NoError(t, err)
	require.Len(t, res.Crops, 1)

	c := res.Crops[0]
	assert.True(t, c.BorderCorrected)
	assert.Equal(t, detector.FallbackHull, c.Method)
	assert.Equal(t, utils.Quad{{X: 24, Y: 18}, {X: 776, Y: 18}, {X: 776, Y: 582}, {X: 24, Y: 582}}, c.Corners)
}

func TestProcessImage_MultiCard(t *testing.T) {
	p := newTestPipeline(t, func(b *Builder) { b.WithMultiCard(true) })
	img := syntheticImage(800, 600, image.Rect(50, 50, 350, 300), image.Rect(450, 300, 750, 550))
	res, err := p.ProcessImage(context.Background(), "two.png", img)
	require.NoError(t, err)
	require.Len(t, res.Crops, 2)
	assert.Equal(t, 1, res.Crops[0].Index)
	assert.Equal(t, 2, res.Crops[1].Index)
	for _, c := range res.Crops {
		assert.InDelta(t, 300, c.Width, 6)
		assert.InDelta(t, 250, c.Height, 6)
	}
}

func TestProcessImage_Failures(t *testing.T) {
	t.Run("empty image", func(t *testing.T) {
		p := newTestPipeline(t, nil)
		_, err := p.ProcessImage(context.Background(), "empty", image.NewNRGBA(image.Rect(0, 0, 0, 0)))
		assert.ErrorIs(t, err, ErrUnreadableImage)
		st, ok := StageOf(err)
		require.True(t, ok)
		assert.Equal(t, StageLoad, st)
	})

	t.Run("cancelled context", func(t *testing.T) {
		p := newTestPipeline(t, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := p.ProcessImage(ctx, "late", syntheticImage(100, 100))
		assert.ErrorIs(t, err, ErrTimeout)
		assert.ErrorIs(t, err, context.Canceled)
		st, _ := StageOf(err)
		assert.Equal(t, StagePreprocess, st)
	})

	t.Run("degenerate quad", func(t *testing.T) {
		collinear := detector.Strategy{Name: "collinear", Find: func(*detector.Frame) (utils.Quad, bool) {
			return utils.Quad{{X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}, {X: 40, Y: 40}}, true
		}}
		p := newTestPipeline(t, func(b *Builder) {
			b.WithDetectorOptions(detector.WithStrategies([]detector.Strategy{collinear}))
		})
		_, err := p.ProcessImage(context.Background(), "flat", syntheticImage(200, 150))
		assert.ErrorIs(t, err, ErrDegenerateGeometry)
		st, _ := StageOf(err)
		assert.Equal(t, StageRectify, st)
	})
}

func TestRunFallbacks_FailureKinds(t *testing.T) {
	p := newTestPipeline(t, nil)

	_, _, err := p.runFallbacks(context.Background(), "x", p.Detector.NewFrame(50, 50, nil))
	assert.ErrorIs(t, err, ErrNoContourFound)

	never := detector.Strategy{Name: "never", Find: func(*detector.Frame) (utils.Quad, bool) { return utils.Quad{}, false }}
	p = newTestPipeline(t, func(b *Builder) {
		b.WithDetectorOptions(detector.WithStrategies([]detector.Strategy{never}))
	})
	mask := image.NewGray(image.Rect(0, 0, 50, 50))
	utils.FillPolygon(mask, []utils.Point{{X: 10, Y: 10}, {X: 40, Y: 10}, {X: 25, Y: 40}}, color.Gray{Y: 255})
	f := p.Detector.NewFrame(50, 50, []detector.EdgeMap{{Method: detector.MethodGradient, Mask: mask}})
	_, _, err = p.runFallbacks(context.Background(), "x", f)
	assert.ErrorIs(t, err, ErrNoQuadrilateral)
	st, _ := StageOf(err)
	assert.Equal(t, StageFallback, st)
}

func TestProcess_Loader(t *testing.T) {
	missing := errors.New("missing")
	p := newTestPipeline(t, func(b *Builder) {
		b.WithLoader(LoaderFunc(func(_ context.Context, id string) (image.Image, error) {
			if id == "missing.png" {
				return nil, missing
			}
			return syntheticImage(400, 300, image.Rect(50, 50, 350, 250)), nil
		}))
	})

	res, err := p.Process(context.Background(), "ok.png")
	require.NoError(t, err)
	assert.Len(t, res.Crops, 1)
	assert.Positive(t, res.Duration)

	_, err = p.Process(context.Background(), "missing.png")
	assert.ErrorIs(t, err, ErrUnreadableImage)
	assert.ErrorIs(t, err, missing)

	noLoader := newTestPipeline(t, nil)
	_, err = noLoader.Process(context.Background(), "ok.png")
	assert.ErrorIs(t, err, ErrUnreadableImage)
}

func TestProcess_Timeout(t *testing.T) {
	p := newTestPipeline(t, func(b *Builder) {
		b.WithTimeout(20 * time.Millisecond)
		b.WithLoader(LoaderFunc(func(ctx context.Context, _ string) (image.Image, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}))
	})
	_, err := p.Process(context.Background(), "slow.png")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessImage_StageHookAndDebugSink(t *testing.T) {
	var mu sync.Mutex
	var emitted []string
	sink := SinkFunc(func(_, stage string, img image.Image) {
		mu.Lock()
		defer mu.Unlock()
		emitted = append(emitted, stage)
		assert.NotNil(t, img)
	})
	p := newTestPipeline(t, func(b *Builder) { b.WithDebugSink(sink) })

	var stages []Stage
	ctx := WithStageFunc(context.Background(), func(_ string, s Stage) { stages = append(stages, s) })
	_, err := p.ProcessImage(ctx, "card.png", syntheticImage(400, 300, image.Rect(50, 50, 350, 250)))
	require.NoError(t, err)

	assert.Equal(t, []Stage{StagePreprocess, StageEdgeMapping, StageCandidateSearch, StageBorderCheck, StageRectify}, stages)
	assert.Equal(t, []string{"edges_gradient", "edges_adaptive", "contours", "quad"}, emitted)
}

type fakeRecognizer struct {
	text recognizer.Text
	err  error
}

func (f fakeRecognizer) Recognize(context.Context, image.Image) (recognizer.Text, error) {
	return f.text, f.err
}

func (fakeRecognizer) Close() error { return nil }

func TestProcessImage_Recognizer(t *testing.T) {
	img := syntheticImage(400, 300, image.Rect(50, 50, 350, 250))

	p := newTestPipeline(t, func(b *Builder) {
		b.WithRecognizer(fakeRecognizer{text: recognizer.Text{Content: "ACE OF SPADES", Confidence: 0.9}})
	})
	res, err := p.ProcessImage(context.Background(), "card.png", img)
	require.NoError(t, err)
	require.NotNil(t, res.Crops[0].Text)
	assert.Equal(t, "ACE OF SPADES", res.Crops[0].Text.Content)

	failing := newTestPipeline(t, func(b *Builder) {
		b.WithRecognizer(fakeRecognizer{err: recognizer.ErrNoBackend})
	})
	res, err = failing.ProcessImage(context.Background(), "card.png", img)
	require.NoError(t, err, "recognition failures do not fail the crop")
	assert.Nil(t, res.Crops[0].Text)
}

type fakeOrienter struct {
	res orientation.Result
	err error
}

func (f fakeOrienter) Predict(image.Image) (orientation.Result, error) { return f.res, f.err }

func TestProcessImage_Orientation(t *testing.T) {
	img := syntheticImage(400, 300, image.Rect(50, 50, 350, 250))

	var stages []Stage
	ctx := WithStageFunc(context.Background(), func(_ string, s Stage) { stages = append(stages, s) })
	p := newTestPipeline(t, func(b *Builder) {
		b.WithOrienter(fakeOrienter{res: orientation.Result{Angle: 90, Confidence: 0.95}})
	})
	res, err := p.ProcessImage(ctx, "card.png", img)
	require.NoError(t, err)
	require.Len(t, res.Crops, 1)

	c := res.Crops[0]
	assert.Equal(t, 90, c.Rotation)
	assert.InDelta(t, 200, c.Width, 6)
	assert.InDelta(t, 300, c.Height, 6)
	assert.Equal(t, image.Rect(0, 0, c.Width+20, c.Height+20), c.Image.Bounds())
	assertCornersNear(t, utils.Quad{{X: 50, Y: 50}, {X: 350, Y: 50}, {X: 350, Y: 250}, {X: 50, Y: 250}}, c.Corners, 3)
	assert.Contains(t, stages, StageRecognize)

	failing := newTestPipeline(t, func(b *Builder) {
		b.WithOrienter(fakeOrienter{err: errors.New("model exploded")})
	})
	res, err = failing.ProcessImage(context.Background(), "card.png", img)
	require.NoError(t, err, "orientation failures do not fail the crop")
	assert.Zero(t, res.Crops[0].Rotation)
	assert.InDelta(t, 300, res.Crops[0].Width, 6)
}

func TestProcessImage_HeuristicOrientationBuiltFromConfig(t *testing.T) {
	p := newTestPipeline(t, func(b *Builder) { b.WithOrientation(true) })
	require.NotNil(t, p.Orienter)
	cls, ok := p.Orienter.(*orientation.Classifier)
	require.True(t, ok)
	assert.True(t, cls.Heuristic())
}

type fakeBarcodeReader struct {
	mu    sync.Mutex
	opts  []barcode.Options
	codes []barcode.Result
}

func (f *fakeBarcodeReader) Decode(_ context.Context, img image.Image, opts barcode.Options) ([]barcode.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if img == nil {
		return nil, errors.New("nil image")
	}
	f.opts = append(f.opts, opts)
	return f.codes, nil
}

func TestProcessImage_Barcodes(t *testing.T) {
	img := syntheticImage(800, 600, image.Rect(50, 50, 350, 300), image.Rect(450, 300, 750, 550))
	reader := &fakeBarcodeReader{codes: []barcode.Result{{Format: barcode.FormatQR, Text: "CARD-7"}}}

	cfg := DefaultConfig()
	cfg.MultiCard = true
	cfg.Workers = 2
	cfg.Barcode = barcode.Config{Formats: []string{"qr"}, TryHarder: true}
	p := newTestPipeline(t, func(b *Builder) { b.WithConfig(cfg).WithBarcodeReader(reader) })

	res, err := p.ProcessImage(context.Background(), "two.png", img)
	require.NoError(t, err)
	require.Len(t, res.Crops, 2)
	for _, c := range res.Crops {
		assert.Equal(t, reader.codes, c.Barcodes)
	}
	require.Len(t, reader.opts, 2)
	assert.Equal(t, barcode.Options{Formats: []barcode.Format{barcode.FormatQR}, TryHarder: true}, reader.opts[0])
}

func TestBuilder_InvalidBarcodeFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Barcode = barcode.Config{Enabled: true, Formats: []string{"morse"}}
	_, err := NewBuilder().WithConfig(cfg).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "morse")
}

func TestBuilder_InvalidConfig(t *testing.T) {
	_, err := NewBuilder().WithWorkers(-1).Build()
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Rectify.BorderPx = -3
	_, err = NewBuilder().WithConfig(cfg).Build()
	assert.Error(t, err)
}
