//go:build gocv

package imageops

import (
	"image"
	"log/slog"

	"github.com/MeKo-Tech/cardcrop/internal/utils"
	"gocv.io/x/gocv"
)

const backendName = "gocv"

func newDefaultBackend() Ops { return &CV{} }

// CV runs the raster primitives through OpenCV. Geometry on point lists and
// the final warp stay on the native implementation.
type CV struct {
	Native
}

// withMat converts src to a Mat, runs fn into a fresh destination and
// converts back. Conversion failures fall back to the native result.
func withMat(src *image.Gray, fn func(in gocv.Mat, out *gocv.Mat), fallback func() *image.Gray) *image.Gray {
	in, err := gocv.ImageGrayToMatGray(src)
	if err != nil {
		slog.Debug("gocv conversion failed, using native", "error", err)
		return fallback()
	}
	defer func() { _ = in.Close() }()
	out := gocv.NewMat()
	defer func() { _ = out.Close() }()
	fn(in, &out)
	img, err := out.ToImage()
	if err != nil {
		return fallback()
	}
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	return Native{}.Grayscale(img)
}

func (c *CV) GaussianBlur(src *image.Gray, ksize int) *image.Gray {
	return withMat(src, func(in gocv.Mat, out *gocv.Mat) {
		gocv.GaussianBlur(in, out, image.Pt(ksize, ksize), 0, 0, gocv.BorderDefault)
	}, func() *image.Gray { return c.Native.GaussianBlur(src, ksize) })
}

func (c *CV) EqualizeLocal(src *image.Gray, clipLimit float64, tiles int) *image.Gray {
	return withMat(src, func(in gocv.Mat, out *gocv.Mat) {
		clahe := gocv.NewCLAHEWithParams(clipLimit, image.Pt(tiles, tiles))
		defer func() { _ = clahe.Close() }()
		clahe.Apply(in, out)
	}, func() *image.Gray { return c.Native.EqualizeLocal(src, clipLimit, tiles) })
}

func (c *CV) Canny(src *image.Gray, low, high float64) *image.Gray {
	return withMat(src, func(in gocv.Mat, out *gocv.Mat) {
		gocv.Canny(in, out, float32(low), float32(high))
	}, func() *image.Gray { return c.Native.Canny(src, low, high) })
}

func (c *CV) Close(src *image.Gray, ksize int) *image.Gray {
	return withMat(src, func(in gocv.Mat, out *gocv.Mat) {
		kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(ksize, ksize))
		defer func() { _ = kernel.Close() }()
		gocv.MorphologyEx(in, out, gocv.MorphClose, kernel)
	}, func() *image.Gray { return c.Native.Close(src, ksize) })
}

func (c *CV) AdaptiveThresholdMean(src *image.Gray, blockSize int, cval float64) *image.Gray {
	return withMat(src, func(in gocv.Mat, out *gocv.Mat) {
		gocv.AdaptiveThreshold(in, out, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinary, blockSize, float32(cval))
	}, func() *image.Gray { return c.Native.AdaptiveThresholdMean(src, blockSize, cval) })
}

func (c *CV) FindExternalContours(bin *image.Gray) [][]utils.Point {
	in, err := gocv.ImageGrayToMatGray(bin)
	if err != nil {
		return c.Native.FindExternalContours(bin)
	}
	defer func() { _ = in.Close() }()
	contours := gocv.FindContours(in, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	out := make([][]utils.Point, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		ip := contours.At(i).ToPoints()
		pts := make([]utils.Point, len(ip))
		for j, p := range ip {
			pts[j] = utils.Point{X: float64(p.X), Y: float64(p.Y)}
		}
		out = append(out, pts)
	}
	return out
}

func (c *CV) HoughSegments(bin *image.Gray, p HoughParams) []Segment {
	in, err := gocv.ImageGrayToMatGray(bin)
	if err != nil {
		return c.Native.HoughSegments(bin, p)
	}
	defer func() { _ = in.Close() }()
	lines := gocv.NewMat()
	defer func() { _ = lines.Close() }()
	gocv.HoughLinesPWithParams(in, &lines, float32(p.Rho), float32(p.Theta), p.Threshold,
		float32(p.MinLineLength), float32(p.MaxLineGap))

	out := make([]Segment, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVeciAt(i, 0)
		out = append(out, Segment{
			A: utils.Point{X: float64(v[0]), Y: float64(v[1])},
			B: utils.Point{X: float64(v[2]), Y: float64(v[3])},
		})
	}
	return out
}
