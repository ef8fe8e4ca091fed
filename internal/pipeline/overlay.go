package pipeline

import (
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/cardcrop/internal/utils"
	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Palette returns n well separated colours. Hues advance by the golden
// angle so neighbouring indices never look alike.
func Palette(n int) []color.NRGBA {
	out := make([]color.NRGBA, n)
	h := 0.0
	for i := range out {
		r, g, b := colorful.Hsv(h, 0.85, 0.95).Clamped().RGB255()
		out[i] = color.NRGBA{R: r, G: g, B: b, A: 255}
		h = math.Mod(h+137.508, 360)
	}
	return out
}

// RenderQuads draws each quad over a copy of img in its own palette colour
// and marks the TL corner.
func RenderQuads(img image.Image, quads []utils.Quad) *image.NRGBA {
	if img == nil {
		return nil
	}
	dst := imaging.Clone(img)
	thickness := max(2, min(dst.Rect.Dx(), dst.Rect.Dy())/300)
	for i, c := range Palette(len(quads)) {
		q := quads[i]
		utils.DrawPolygon(dst, q[:], c, thickness)
		utils.DrawMarker(dst, q[0], 2*thickness, c)
	}
	return dst
}

// RenderContours draws contours over a copy of img.
func RenderContours(img image.Image, contours [][]utils.Point) *image.NRGBA {
	if img == nil {
		return nil
	}
	dst := imaging.Clone(img)
	for i, c := range Palette(len(contours)) {
		utils.DrawPolygon(dst, contours[i], c, 1)
	}
	return dst
}

// Overlay renders the corners of every crop in res onto the source image.
func Overlay(img image.Image, res *Result) *image.NRGBA {
	if res == nil {
		return imaging.Clone(img)
	}
	quads := make([]utils.Quad, len(res.Crops))
	for i, c := range res.Crops {
		quads[i] = c.Corners
	}
	return RenderQuads(img, quads)
}
