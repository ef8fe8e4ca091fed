package imageops

import "image"

// MorphologicalOp enumerates the supported square-kernel operations.
type MorphologicalOp int

const (
	// MorphDilate replaces each pixel by the maximum in its window.
	MorphDilate MorphologicalOp = iota
	// MorphErode replaces each pixel by the minimum in its window.
	MorphErode
	// MorphOpen erodes then dilates.
	MorphOpen
	// MorphClose dilates then erodes.
	MorphClose
)

// Morph applies op with a ksize x ksize square structuring element. Pixels
// outside the image never contribute, matching OpenCV's default border.
func Morph(src *image.Gray, op MorphologicalOp, ksize int) *image.Gray {
	if ksize < 2 {
		return cloneGray(src)
	}
	switch op {
	case MorphDilate:
		return squareFilter(src, ksize, true)
	case MorphErode:
		return squareFilter(src, ksize, false)
	case MorphOpen:
		return squareFilter(squareFilter(src, ksize, false), ksize, true)
	case MorphClose:
		return squareFilter(squareFilter(src, ksize, true), ksize, false)
	default:
		return cloneGray(src)
	}
}

// Close bridges gaps narrower than ksize in a binary edge map.
func (Native) Close(src *image.Gray, ksize int) *image.Gray {
	return Morph(src, MorphClose, ksize)
}

// squareFilter runs a separable running max (or min) over rows then columns.
func squareFilter(src *image.Gray, ksize int, isMax bool) *image.Gray {
	w, h := size(src)
	before := (ksize - 1) / 2
	after := ksize - 1 - before

	tmp := newGray(w, h)
	line := make([]uint8, max(w, h))
	res := make([]uint8, max(w, h))
	dq := make([]int, 0, max(w, h))

	for y := range h {
		copy(line[:w], src.Pix[y*src.Stride:])
		slidingExtreme(line[:w], res[:w], before, after, isMax, dq)
		copy(tmp.Pix[y*tmp.Stride:], res[:w])
	}

	out := newGray(w, h)
	for x := range w {
		for y := range h {
			line[y] = tmp.Pix[y*tmp.Stride+x]
		}
		slidingExtreme(line[:h], res[:h], before, after, isMax, dq)
		for y := range h {
			out.Pix[y*out.Stride+x] = res[y]
		}
	}
	return out
}

// slidingExtreme writes into dst the max (or min) of src over the window
// [i-before, i+after] clipped to the line, using a monotonic deque.
func slidingExtreme(src, dst []uint8, before, after int, isMax bool, dq []int) {
	n := len(src)
	dq = dq[:0]
	head := 0
	better := func(a, b uint8) bool {
		if isMax {
			return a >= b
		}
		return a <= b
	}
	next := 0
	for i := range n {
		for ; next < n && next <= i+after; next++ {
			for len(dq) > head && better(src[next], src[dq[len(dq)-1]]) {
				dq = dq[:len(dq)-1]
			}
			dq = append(dq, next)
		}
		for dq[head] < i-before {
			head++
		}
		dst[i] = src[dq[head]]
	}
}
