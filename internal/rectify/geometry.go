package rectify

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/cardcrop/internal/utils"
)

// OrderCorners returns q as top-left, top-right, bottom-right, bottom-left:
// TL has the smallest x+y, BR the largest, TR the smallest y-x and BL the
// largest. When two of those picks land on the same point, which happens for
// diamonds and strongly skewed quads, the corners are instead sorted by angle
// around the centroid starting at TL. The result is always a permutation of q.
func OrderCorners(q utils.Quad) utils.Quad {
	// Ties go to the upper point for TL and TR, the lower one for BR and BL,
	// so the result does not depend on input order.
	tl, tr, br, bl := 0, 0, 0, 0
	for i, p := range q {
		s, d := p.X+p.Y, p.Y-p.X
		if ts := q[tl].X + q[tl].Y; s < ts || (s == ts && p.Y < q[tl].Y) {
			tl = i
		}
		if bs := q[br].X + q[br].Y; s > bs || (s == bs && p.Y > q[br].Y) {
			br = i
		}
		if td := q[tr].Y - q[tr].X; d < td || (d == td && p.Y < q[tr].Y) {
			tr = i
		}
		if bd := q[bl].Y - q[bl].X; d > bd || (d == bd && p.Y > q[bl].Y) {
			bl = i
		}
	}
	if tl != tr && tl != br && tl != bl && tr != br && tr != bl && br != bl {
		return utils.Quad{q[tl], q[tr], q[br], q[bl]}
	}
	return orderByAngle(q, tl)
}

// orderByAngle walks the corners clockwise on screen (y down) from q[start].
func orderByAngle(q utils.Quad, start int) utils.Quad {
	ctr := utils.Centroid(q[:])
	idx := []int{0, 1, 2, 3}
	angle := func(i int) float64 { return math.Atan2(q[i].Y-ctr.Y, q[i].X-ctr.X) }
	sort.SliceStable(idx, func(a, b int) bool { return angle(idx[a]) < angle(idx[b]) })
	first := 0
	for k, i := range idx {
		if i == start {
			first = k
		}
	}
	var out utils.Quad
	for k := range out {
		out[k] = q[idx[(first+k)%4]]
	}
	return out
}

// CorrectBorder replaces a quad whose corners all hug the frame corners with
// the frame inset on every side. The second result reports a replacement.
func (r *Rectifier) CorrectBorder(q utils.Quad, w, h int) (utils.Quad, bool) {
	fw, fh := float64(w), float64(h)
	snap := r.cfg.BorderSnapFrac
	for _, p := range q {
		nearX := (p.X >= 0 && p.X <= snap*fw) || (p.X >= (1-snap)*fw && p.X <= fw)
		nearY := (p.Y >= 0 && p.Y <= snap*fh) || (p.Y >= (1-snap)*fh && p.Y <= fh)
		if !nearX || !nearY {
			return q, false
		}
	}
	in := r.cfg.BorderInsetFrac
	x0, y0 := math.Floor(in*fw), math.Floor(in*fh)
	x1, y1 := fw-x0, fh-y0
	return utils.Quad{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}, true
}

// MarginFor returns the expansion distance for an ordered quad.
func (r *Rectifier) MarginFor(q utils.Quad) float64 {
	longest := 0.0
	for i := range q {
		longest = math.Max(longest, utils.Dist(q[i], q[(i+1)%4]))
	}
	return math.Max(r.cfg.MarginFrac*longest, r.cfg.MinMarginPx)
}

// ExpandQuad moves every side of the ordered convex quad outward by m and
// clamps the corners to the w x h image.
func ExpandQuad(q utils.Quad, m float64, w, h int) utils.Quad {
	// Outward normals depend on winding; image space with y down makes a
	// TL,TR,BR,BL quad positive in SignedArea terms.
	sign := 1.0
	if utils.SignedArea(q[:]) < 0 {
		sign = -1
	}
	normal := func(a, b utils.Point) utils.Point {
		d := b.Sub(a)
		l := math.Hypot(d.X, d.Y)
		if l == 0 {
			return utils.Point{}
		}
		return utils.Point{X: d.Y / l * sign, Y: -d.X / l * sign}
	}

	ctr := utils.Centroid(q[:])
	var out utils.Quad
	for i := range q {
		prev, next := q[(i+3)%4], q[(i+1)%4]
		n1, n2 := normal(prev, q[i]), normal(q[i], next)
		denom := 1 + n1.X*n2.X + n1.Y*n2.Y
		var p utils.Point
		if denom > 1e-6 {
			// miter offset keeps both adjacent sides exactly m away
			p = q[i].Add(n1.Add(n2).Scale(m / denom))
		} else {
			v := q[i].Sub(ctr)
			l := math.Hypot(v.X, v.Y)
			if l == 0 {
				p = q[i]
			} else {
				p = q[i].Add(v.Scale(m / l))
			}
		}
		out[i] = utils.Point{
			X: utils.Clamp(p.X, 0, float64(w-1)),
			Y: utils.Clamp(p.Y, 0, float64(h-1)),
		}
	}
	return out
}

// TargetSize returns the output size of an ordered quad: the longer of the
// horizontal sides by the longer of the vertical sides, rounded down.
func TargetSize(q utils.Quad) (int, int) {
	top := utils.Dist(q[0], q[1])
	bottom := utils.Dist(q[3], q[2])
	left := utils.Dist(q[0], q[3])
	right := utils.Dist(q[1], q[2])
	return int(math.Floor(math.Max(top, bottom))), int(math.Floor(math.Max(left, right)))
}
