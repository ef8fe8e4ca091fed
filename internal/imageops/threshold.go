package imageops

import (
	"image"

	"github.com/anthonynsimon/bild/blur"
)

// AdaptiveThresholdMean binarizes src against the mean of a blockSize x
// blockSize neighbourhood: foreground where value > mean - c.
func (Native) AdaptiveThresholdMean(src *image.Gray, blockSize int, c float64) *image.Gray {
	w, h := size(src)
	out := newGray(w, h)
	if blockSize < 3 {
		blockSize = 3
	}
	if blockSize%2 == 0 {
		blockSize++
	}
	mean := blur.Box(src, float64(blockSize/2))
	for y := range h {
		srow := src.Pix[y*src.Stride:]
		mrow := mean.Pix[y*mean.Stride:]
		orow := out.Pix[y*out.Stride:]
		for x := range w {
			if float64(srow[x]) > float64(mrow[4*x])-c {
				orow[x] = 255
			}
		}
	}
	return out
}
