package detector

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/cardcrop/internal/mempool"
	"github.com/MeKo-Tech/cardcrop/internal/onnx"
	"github.com/MeKo-Tech/cardcrop/internal/utils"
	"github.com/disintegration/imaging"
)

// MaskModel predicts a binary card mask for an image.
type MaskModel interface {
	// Mask returns a 0/255 mask of size w x h.
	Mask(img image.Image, w, h int) (*image.Gray, error)
	Close() error
}

// ONNXModel runs a segmentation network with a [1,3,S,S] input and a
// [1,1,H,W] probability output.
type ONNXModel struct {
	session   *onnx.Session
	inputSize int
	threshold float32
}

// NewONNXModel loads the model named by cfg.
func NewONNXModel(cfg ModelConfig) (*ONNXModel, error) {
	if !cfg.Enabled() {
		return nil, errors.New("model path is empty")
	}
	s, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   cfg.Path,
		LibraryPath: cfg.LibraryPath,
		NumThreads:  cfg.NumThreads,
		GPU:         cfg.GPU,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load segmentation model: %w", err)
	}
	slog.Debug("Segmentation model loaded", "path", cfg.Path, "input_size", cfg.InputSize)
	return &ONNXModel{session: s, inputSize: cfg.InputSize, threshold: float32(cfg.Threshold)}, nil
}

// Mask implements MaskModel.
func (m *ONNXModel) Mask(img image.Image, w, h int) (*image.Gray, error) {
	resized := imaging.Resize(img, m.inputSize, m.inputSize, imaging.Linear)
	data, tw, th, err := utils.NormalizeImage(resized)
	if err != nil {
		return nil, err
	}
	defer mempool.PutFloat32(data)
	tensor, err := onnx.NewImageTensor(data, 3, th, tw)
	if err != nil {
		return nil, err
	}
	out, shape, err := m.session.Run(tensor)
	if err != nil {
		return nil, err
	}
	if len(shape) != 4 || shape[1] != 1 {
		return nil, fmt.Errorf("unexpected model output shape %v", shape)
	}
	return ProbabilityMask(out, int(shape[3]), int(shape[2]), m.threshold, w, h), nil
}

// Close releases the session.
func (m *ONNXModel) Close() error { return m.session.Close() }

// ProbabilityMask thresholds a pw x ph probability map and scales it to
// w x h with nearest-neighbour sampling.
func ProbabilityMask(prob []float32, pw, ph int, threshold float32, w, h int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, w, h))
	if pw <= 0 || ph <= 0 || len(prob) < pw*ph {
		return out
	}
	for y := range h {
		sy := min(y*ph/h, ph-1)
		for x := range w {
			sx := min(x*pw/w, pw-1)
			if prob[sy*pw+sx] >= threshold {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}
