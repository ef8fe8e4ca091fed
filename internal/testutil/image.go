package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/cardcrop/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{800, 600}
	LargeSize  = ImageSize{2400, 1800}
)

// CardSpec describes one card drawn into a synthetic photograph.
type CardSpec struct {
	Rect     image.Rectangle // axis-aligned extent before rotation
	Rotation float64         // degrees, counter-clockwise around the card centre
	Color    color.Color
	Label    string
}

// SceneConfig holds configuration for generating a synthetic photograph.
type SceneConfig struct {
	Size       ImageSize
	Background color.Color
	Cards      []CardSpec
	Noise      float64 // uniform noise amplitude in [0,1]
	Seed       int64
}

// DefaultSceneConfig returns one light card at (100,100)-(700,500) on a dark
// 800x600 background.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		Size:       MediumSize,
		Background: color.Gray{Y: 40},
		Cards: []CardSpec{{
			Rect:  image.Rect(100, 100, 700, 500),
			Color: color.Gray{Y: 220},
			Label: "CARD",
		}},
		Seed: 1,
	}
}

// Corners returns the card outline in TL, TR, BR, BL order for unrotated
// cards. Rotated cards keep the same vertex sequence.
func (c CardSpec) Corners() utils.Quad {
	r := c.Rect
	q := utils.Quad{
		utils.Pt(float64(r.Min.X), float64(r.Min.Y)),
		utils.Pt(float64(r.Max.X), float64(r.Min.Y)),
		utils.Pt(float64(r.Max.X), float64(r.Max.Y)),
		utils.Pt(float64(r.Min.X), float64(r.Max.Y)),
	}
	if c.Rotation == 0 {
		return q
	}
	centre := utils.Centroid(q[:])
	rad := -c.Rotation * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	for i, p := range q {
		d := p.Sub(centre)
		q[i] = utils.Pt(centre.X+d.X*cos-d.Y*sin, centre.Y+d.X*sin+d.Y*cos)
	}
	return q
}

// GenerateScene renders the configured cards onto the background.
func GenerateScene(cfg SceneConfig) *image.NRGBA {
	img := imaging.New(cfg.Size.Width, cfg.Size.Height, cfg.Background)
	for _, card := range cfg.Cards {
		fill := card.Color
		if fill == nil {
			fill = color.White
		}
		q := card.Corners()
		utils.FillPolygon(img, q[:], fill)
		if card.Label != "" {
			drawLabel(img, utils.Centroid(q[:]), card.Label)
		}
	}
	if cfg.Noise > 0 {
		addNoise(img, cfg.Noise, cfg.Seed)
	}
	return img
}

func drawLabel(dst draw.Image, at utils.Point, text string) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(int(at.X)-w/2, int(at.Y)+face.Metrics().Ascent.Ceil()/2),
	}
	d.DrawString(text)
}

func addNoise(img *image.NRGBA, level float64, seed int64) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic test noise
	amp := level * 255
	for i := 0; i < len(img.Pix); i += 4 {
		for c := range 3 {
			v := float64(img.Pix[i+c]) + (rng.Float64()*2-1)*amp
			img.Pix[i+c] = uint8(utils.Clamp(v, 0, 255))
		}
	}
}

// SaveImage saves an image as PNG (or by extension) to path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()
	require.NoError(t, EnsureDir(filepath.Dir(path)), "Failed to create directory for %s", path)
	require.NoError(t, imaging.Save(img, path), "Failed to encode image %s", path)
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()
	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to load image %s", path)
	return img
}

// WriteScene renders cfg into dir/name and returns the path.
func WriteScene(t *testing.T, dir, name string, cfg SceneConfig) string {
	t.Helper()
	path := filepath.Join(dir, name)
	SaveImage(t, GenerateScene(cfg), path)
	return path
}

// WriteGarbage writes a file with an image extension that does not decode.
func WriteGarbage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("definitely not an image"), 0o600))
	return path
}
