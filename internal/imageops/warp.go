package imageops

import (
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"
)

// ErrSingularTransform is returned when a homography cannot be inverted.
var ErrSingularTransform = errors.New("imageops: singular perspective transform")

// WarpPerspective renders the w x h destination by pulling every output
// pixel back through the inverse of m and sampling src bilinearly.
func (Native) WarpPerspective(src image.Image, m Homography, w, h int, fill color.Color) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, errors.New("imageops: empty warp target")
	}
	inv, err := Invert(m)
	if err != nil {
		return nil, err
	}

	s := imaging.Clone(src)
	sw, sh := s.Rect.Dx(), s.Rect.Dy()
	fr, fg, fb, fa := fill.RGBA()
	fillPix := [4]uint8{uint8(fr >> 8), uint8(fg >> 8), uint8(fb >> 8), uint8(fa >> 8)}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		row := out.Pix[y*out.Stride:]
		for x := range w {
			sx, sy := inv.Apply(float64(x), float64(y))
			px := row[4*x : 4*x+4]
			if !(sx > -1 && sy > -1 && sx < float64(sw) && sy < float64(sh)) {
				copy(px, fillPix[:])
				continue
			}
			bilinearSample(s, sx, sy, fillPix, px)
		}
	}
	return out, nil
}

// Invert returns the inverse transform.
func Invert(m Homography) (Homography, error) {
	a := mat.NewDense(3, 3, m[:])
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return Homography{}, ErrSingularTransform
	}
	var out Homography
	for r := range 3 {
		for c := range 3 {
			out[r*3+c] = inv.At(r, c)
		}
	}
	return out, nil
}

// bilinearSample blends the four pixels around (x, y); neighbours outside the
// image take the fill colour.
func bilinearSample(src *image.NRGBA, x, y float64, fill [4]uint8, dst []uint8) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	x0, y0 := floor(x), floor(y)
	fx, fy := x-float64(x0), y-float64(y0)
	pix := func(px, py int) []uint8 {
		if px < 0 || py < 0 || px >= w || py >= h {
			return fill[:]
		}
		o := py*src.Stride + 4*px
		return src.Pix[o : o+4]
	}
	c00, c10 := pix(x0, y0), pix(x0+1, y0)
	c01, c11 := pix(x0, y0+1), pix(x0+1, y0+1)
	for i := range 4 {
		top := lerp(float64(c00[i]), float64(c10[i]), fx)
		bot := lerp(float64(c01[i]), float64(c11[i]), fx)
		dst[i] = uint8(lerp(top, bot, fy) + 0.5)
	}
}

func floor(v float64) int {
	i := int(v)
	if v < float64(i) {
		i--
	}
	return i
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
