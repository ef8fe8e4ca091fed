package imageops

import (
	"image"
	"math"
)

// EqualizeLocal implements CLAHE: per-tile clipped histogram equalization
// with bilinear blending between neighbouring tile mappings.
func (Native) EqualizeLocal(src *image.Gray, clipLimit float64, tiles int) *image.Gray {
	w, h := size(src)
	if tiles < 1 || w < tiles || h < tiles {
		return cloneGray(src)
	}
	tw := (w + tiles - 1) / tiles
	th := (h + tiles - 1) / tiles

	luts := make([][256]uint8, tiles*tiles)
	for ty := range tiles {
		for tx := range tiles {
			x0, y0 := tx*tw, ty*th
			x1, y1 := min(x0+tw, w), min(y0+th, h)
			luts[ty*tiles+tx] = tileLUT(src, x0, y0, x1, y1, clipLimit)
		}
	}

	out := newGray(w, h)
	for y := range h {
		fy := float64(y)/float64(th) - 0.5
		ty0 := int(math.Floor(fy))
		ya := fy - float64(ty0)
		ty1 := min(ty0+1, tiles-1)
		ty0 = max(ty0, 0)
		for x := range w {
			fx := float64(x)/float64(tw) - 0.5
			tx0 := int(math.Floor(fx))
			xa := fx - float64(tx0)
			tx1 := min(tx0+1, tiles-1)
			tx0 = max(tx0, 0)

			v := src.Pix[y*src.Stride+x]
			top := (1-xa)*float64(luts[ty0*tiles+tx0][v]) + xa*float64(luts[ty0*tiles+tx1][v])
			bot := (1-xa)*float64(luts[ty1*tiles+tx0][v]) + xa*float64(luts[ty1*tiles+tx1][v])
			out.Pix[y*out.Stride+x] = uint8(math.Round((1-ya)*top + ya*bot))
		}
	}
	return out
}

func tileLUT(src *image.Gray, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var hist [256]int
	for y := y0; y < y1; y++ {
		row := src.Pix[y*src.Stride:]
		for x := x0; x < x1; x++ {
			hist[row[x]]++
		}
	}
	area := (x1 - x0) * (y1 - y0)
	var lut [256]uint8
	if area == 0 {
		return lut
	}

	if clipLimit > 0 {
		limit := max(int(clipLimit*float64(area)/256), 1)
		excess := 0
		for i := range hist {
			if hist[i] > limit {
				excess += hist[i] - limit
				hist[i] = limit
			}
		}
		batch := excess / 256
		residual := excess - batch*256
		for i := range hist {
			hist[i] += batch
		}
		if residual > 0 {
			step := max(256/residual, 1)
			for i := 0; i < 256 && residual > 0; i += step {
				hist[i]++
				residual--
			}
		}
	}

	scale := 255.0 / float64(area)
	sum := 0
	for i := range hist {
		sum += hist[i]
		lut[i] = uint8(min(255, math.Round(float64(sum)*scale)))
	}
	return lut
}
