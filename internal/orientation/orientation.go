// Package orientation decides whether a rectified card is upside down or
// lying on its side and turns it upright.
package orientation

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/cardcrop/internal/mempool"
	"github.com/MeKo-Tech/cardcrop/internal/onnx"
	"github.com/MeKo-Tech/cardcrop/internal/utils"
	"github.com/disintegration/imaging"
)

// Config controls orientation classification.
type Config struct {
	Enabled bool
	// ModelPath names a four-class ONNX classifier (0, 90, 180, 270 degrees).
	// Empty selects the transition heuristic, which only tells 0 from 90.
	ModelPath           string
	LibraryPath         string
	InputSize           int
	ConfidenceThreshold float64
	// SquareThreshold skips crops whose aspect ratio is at most this value.
	SquareThreshold float64
	NumThreads      int
	GPU             onnx.GPUConfig
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		InputSize:           224,
		ConfidenceThreshold: 0.7,
		SquareThreshold:     1.2,
	}
}

// Validate checks the numeric settings.
func (c Config) Validate() error {
	var errs []error
	if c.InputSize < 32 {
		errs = append(errs, fmt.Errorf("input size must be at least 32, got %d", c.InputSize))
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("confidence threshold must be in [0,1], got %v", c.ConfidenceThreshold))
	}
	if c.SquareThreshold < 1 {
		errs = append(errs, fmt.Errorf("square threshold must be at least 1, got %v", c.SquareThreshold))
	}
	if c.NumThreads < 0 {
		errs = append(errs, fmt.Errorf("num threads must be non-negative, got %d", c.NumThreads))
	}
	return errors.Join(errs...)
}

// Result is a predicted orientation.
type Result struct {
	Angle      int     // clockwise rotation of the content: 0, 90, 180 or 270
	Confidence float64 // probability of Angle (0..1)
}

// Classifier predicts card orientation with an ONNX model, or with a
// luminance transition heuristic when no model is configured.
type Classifier struct {
	cfg     Config
	session *onnx.Session
}

// NewClassifier loads the model named by cfg.
func NewClassifier(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orientation config: %w", err)
	}
	if cfg.ModelPath == "" {
		slog.Debug("Orientation classifier uses the heuristic")
		return &Classifier{cfg: cfg}, nil
	}
	s, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   cfg.ModelPath,
		LibraryPath: cfg.LibraryPath,
		NumThreads:  cfg.NumThreads,
		GPU:         cfg.GPU,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load orientation model: %w", err)
	}
	slog.Debug("Orientation model loaded", "path", cfg.ModelPath, "input_size", cfg.InputSize)
	return &Classifier{cfg: cfg, session: s}, nil
}

// Heuristic reports whether no model backs the classifier.
func (c *Classifier) Heuristic() bool { return c.session == nil }

// Close releases the model session.
func (c *Classifier) Close() error {
	if c == nil || c.session == nil {
		return nil
	}
	return c.session.Close()
}

// Predict returns the orientation of img. Predictions below the confidence
// threshold are reported as angle 0.
func (c *Classifier) Predict(img image.Image) (Result, error) {
	if img == nil {
		return Result{}, errors.New("nil image")
	}
	b := img.Bounds()
	if b.Dx() <= 1 || b.Dy() <= 1 {
		return Result{Angle: 0, Confidence: 1}, nil
	}
	if aspectRatio(b) <= c.cfg.SquareThreshold {
		return Result{Angle: 0, Confidence: 1}, nil
	}

	var (
		angle int
		conf  float64
	)
	if c.session == nil {
		angle, conf = heuristicOrientation(img)
	} else {
		var err error
		if angle, conf, err = c.predictModel(img); err != nil {
			return Result{}, err
		}
	}
	if conf < c.cfg.ConfidenceThreshold {
		return Result{Angle: 0, Confidence: conf}, nil
	}
	return Result{Angle: angle, Confidence: conf}, nil
}

func (c *Classifier) predictModel(img image.Image) (int, float64, error) {
	resized := imaging.Resize(img, c.cfg.InputSize, c.cfg.InputSize, imaging.Linear)
	data, w, h, err := utils.NormalizeImage(resized)
	if err != nil {
		return 0, 0, err
	}
	defer mempool.PutFloat32(data)
	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return 0, 0, err
	}
	logits, _, err := c.session.Run(tensor)
	if err != nil {
		return 0, 0, err
	}
	if len(logits) < 4 {
		return 0, 0, fmt.Errorf("expected 4 orientation logits, got %d", len(logits))
	}
	probs := softmax(logits[:4])
	idx := argmax(probs)
	return idx * 90, probs[idx], nil
}

// Correct turns img upright given the clockwise rotation of its content.
func Correct(img image.Image, angle int) *image.NRGBA {
	switch Normalize(angle) {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return imaging.Clone(img)
	}
}

// SwapsAxes reports whether correcting by angle exchanges width and height.
func SwapsAxes(angle int) bool {
	a := Normalize(angle)
	return a == 90 || a == 270
}

// Normalize maps angle to 0, 90, 180 or 270.
func Normalize(angle int) int {
	a := ((angle % 360) + 360) % 360
	return a - a%90
}

func aspectRatio(b image.Rectangle) float64 {
	w, h := float64(b.Dx()), float64(b.Dy())
	if w < h {
		return h / w
	}
	return w / h
}

// heuristicOrientation compares binarized luminance transitions along rows
// and columns. It cannot separate 0 from 180 or 90 from 270, so it returns
// 0 or 90.
func heuristicOrientation(img image.Image) (int, float64) {
	thumb := imaging.Resize(img, 128, 128, imaging.Lanczos)
	g := imaging.Grayscale(thumb)
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w <= 1 || h <= 1 {
		return 0, 0
	}

	var sum float64
	for y := range h {
		for x := range w {
			sum += float64(g.Pix[y*g.Stride+4*x])
		}
	}
	mean := sum / float64(w*h)
	dark := func(x, y int) bool { return float64(g.Pix[y*g.Stride+4*x]) < mean }

	var rows, cols float64
	for y := range h {
		for x := 1; x < w; x++ {
			if dark(x, y) != dark(x-1, y) {
				rows++
			}
		}
	}
	for x := range w {
		for y := 1; y < h; y++ {
			if dark(x, y) != dark(x, y-1) {
				cols++
			}
		}
	}

	total := rows + cols
	if total == 0 {
		return 0, 0
	}
	ar := float64(img.Bounds().Dy()) / float64(img.Bounds().Dx())
	if cols >= rows {
		conf := (cols - rows) / total
		if ar > 1.2 {
			conf = math.Min(1, conf+0.15)
		}
		return 90, conf
	}
	conf := (rows - cols) / total
	if ar < 0.8 {
		conf = math.Min(1, conf+0.1)
	}
	return 0, conf
}

func softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	var sum float64
	probs := make([]float64, len(logits))
	for i, v := range logits {
		probs[i] = math.Exp(float64(v - maxLogit))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func argmax(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	best := 0
	for i, v := range values[1:] {
		if v > values[best] {
			best = i + 1
		}
	}
	return best
}
