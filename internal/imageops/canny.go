package imageops

import (
	"image"
	"math"

	"github.com/MeKo-Tech/cardcrop/internal/mempool"
)

// Canny detects edges with 3x3 Sobel gradients (L1 magnitude), non-maximum
// suppression and hysteresis thresholding.
func (Native) Canny(src *image.Gray, low, high float64) *image.Gray {
	w, h := size(src)
	out := newGray(w, h)
	if w < 3 || h < 3 {
		return out
	}
	if low > high {
		low, high = high, low
	}

	gx := mempool.GetInt32(w * h)
	gy := mempool.GetInt32(w * h)
	mag := mempool.GetInt32(w * h)
	defer func() {
		mempool.PutInt32(gx)
		mempool.PutInt32(gy)
		mempool.PutInt32(mag)
	}()
	at := func(x, y int) int32 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return int32(src.Pix[y*src.Stride+x])
	}
	for y := range h {
		for x := range w {
			sx := -at(x-1, y-1) + at(x+1, y-1) - 2*at(x-1, y) + 2*at(x+1, y) - at(x-1, y+1) + at(x+1, y+1)
			sy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) + at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			i := y*w + x
			gx[i], gy[i] = sx, sy
			mag[i] = abs32(sx) + abs32(sy)
		}
	}

	// 0 = suppressed, 1 = weak, 2 = strong
	state := make([]uint8, w*h)
	tan22 := math.Tan(math.Pi / 8)
	tan67 := math.Tan(3 * math.Pi / 8)
	stack := make([]int, 0, 1024)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := float64(mag[i])
			if m <= low {
				continue
			}
			ax, ay := math.Abs(float64(gx[i])), math.Abs(float64(gy[i]))
			var a, b int32
			switch {
			case ay <= ax*tan22:
				a, b = mag[i-1], mag[i+1]
			case ay >= ax*tan67:
				a, b = mag[i-w], mag[i+w]
			case (gx[i] < 0) == (gy[i] < 0):
				a, b = mag[i-w-1], mag[i+w+1]
			default:
				a, b = mag[i-w+1], mag[i+w-1]
			}
			if m > float64(a) && m >= float64(b) {
				if m > high {
					state[i] = 2
					stack = append(stack, i)
				} else {
					state[i] = 1
				}
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		out.Pix[y*out.Stride+x] = 255
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				j := i + dy*w + dx
				if j >= 0 && j < len(state) && state[j] == 1 {
					state[j] = 2
					stack = append(stack, j)
				}
			}
		}
	}
	return out
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
