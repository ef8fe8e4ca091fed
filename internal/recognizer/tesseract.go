//go:build tesseract

package recognizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

const backendName = "tesseract"

// tesseract shares one client; gosseract clients are not safe for
// concurrent use.
type tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
	cfg    Config
}

func newBackend(cfg Config) (Recognizer, error) {
	client := gosseract.NewClient()
	if cfg.TessdataPath != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataPath); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(cfg.Languages...); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if cfg.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
		}
	}
	slog.Debug("Tesseract recognizer initialized", "languages", cfg.Languages, "version", gosseract.Version())
	return &tesseract{client: client, cfg: cfg}, nil
}

func (t *tesseract) Recognize(ctx context.Context, img image.Image) (Text, error) {
	if img == nil {
		return Text{}, fmt.Errorf("recognize: nil image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Text{}, fmt.Errorf("recognize: encode: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Text{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return Text{}, fmt.Errorf("recognize: set image: %w", err)
	}
	raw, err := t.client.Text()
	if err != nil {
		return Text{}, fmt.Errorf("recognize: %w", err)
	}

	conf := 0.0
	if boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil && len(boxes) > 0 {
		for _, b := range boxes {
			conf += b.Confidence / 100
		}
		conf /= float64(len(boxes))
	}
	return Text{
		Content:    PostProcessText(raw, t.cfg.Clean),
		Confidence: conf,
		Language:   strings.Join(t.cfg.Languages, "+"),
	}, nil
}

func (t *tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
