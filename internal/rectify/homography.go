package rectify

import (
	"math"

	"github.com/MeKo-Tech/cardcrop/internal/imageops"
	"github.com/MeKo-Tech/cardcrop/internal/utils"
	"gonum.org/v1/gonum/mat"
)

// normalizer returns the similarity transform that moves pts' centroid to
// the origin with mean distance sqrt(2).
func normalizer(pts utils.Quad) *mat.Dense {
	c := utils.Centroid(pts[:])
	mean := 0.0
	for _, p := range pts {
		mean += utils.Dist(p, c)
	}
	mean /= 4
	s := 1.0
	if mean > 0 {
		s = math.Sqrt2 / mean
	}
	return mat.NewDense(3, 3, []float64{
		s, 0, -s * c.X,
		0, s, -s * c.Y,
		0, 0, 1,
	})
}

func apply(t *mat.Dense, p utils.Point) utils.Point {
	w := t.At(2, 0)*p.X + t.At(2, 1)*p.Y + t.At(2, 2)
	return utils.Point{
		X: (t.At(0, 0)*p.X + t.At(0, 1)*p.Y + t.At(0, 2)) / w,
		Y: (t.At(1, 0)*p.X + t.At(1, 1)*p.Y + t.At(1, 2)) / w,
	}
}

// ComputeHomography solves for the transform mapping src[i] to dst[i]. The
// 8x8 system is built on normalized coordinates and rejected when its
// condition number exceeds maxCond.
func ComputeHomography(src, dst utils.Quad, maxCond float64) (imageops.Homography, error) {
	ts, td := normalizer(src), normalizer(dst)

	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := range 4 {
		p, q := apply(ts, src[i]), apply(td, dst[i])
		r := 2 * i
		a.SetRow(r, []float64{p.X, p.Y, 1, 0, 0, 0, -p.X * q.X, -p.Y * q.X})
		a.SetRow(r+1, []float64{0, 0, 0, p.X, p.Y, 1, -p.X * q.Y, -p.Y * q.Y})
		b.SetVec(r, q.X)
		b.SetVec(r+1, q.Y)
	}
	if c := mat.Cond(a, 2); math.IsNaN(c) || c > maxCond {
		return imageops.Homography{}, ErrIllConditioned
	}
	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return imageops.Homography{}, ErrIllConditioned
	}
	hn := mat.NewDense(3, 3, []float64{
		h.AtVec(0), h.AtVec(1), h.AtVec(2),
		h.AtVec(3), h.AtVec(4), h.AtVec(5),
		h.AtVec(6), h.AtVec(7), 1,
	})

	// H = Td^-1 * Hn * Ts
	var tdInv mat.Dense
	if err := tdInv.Inverse(td); err != nil {
		return imageops.Homography{}, ErrIllConditioned
	}
	var tmp, full mat.Dense
	tmp.Mul(hn, ts)
	full.Mul(&tdInv, &tmp)

	scale := full.At(2, 2)
	if scale == 0 || math.IsNaN(scale) {
		return imageops.Homography{}, ErrIllConditioned
	}
	var out imageops.Homography
	for r := range 3 {
		for c := range 3 {
			v := full.At(r, c) / scale
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return imageops.Homography{}, ErrIllConditioned
			}
			out[r*3+c] = v
		}
	}
	return out, nil
}
