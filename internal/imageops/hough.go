package imageops

import (
	"image"
	"math"
	"sort"

	"github.com/MeKo-Tech/cardcrop/internal/mempool"
	"github.com/MeKo-Tech/cardcrop/internal/utils"
)

const maxHoughPeaks = 200

type houghPeak struct {
	theta int
	rho   int
	votes int32
}

// HoughSegments votes edge pixels into a (theta, rho) accumulator, then walks
// each local-maximum line across the map collecting runs of edge pixels
// separated by at most MaxLineGap. Pixels claimed by an accepted segment do
// not contribute to later ones.
func (Native) HoughSegments(bin *image.Gray, p HoughParams) []Segment {
	w, h := size(bin)
	if w == 0 || h == 0 || p.Rho <= 0 || p.Theta <= 0 {
		return nil
	}

	var xs, ys []int
	for y := range h {
		row := bin.Pix[y*bin.Stride:]
		for x := range w {
			if row[x] != 0 {
				xs = append(xs, x)
				ys = append(ys, y)
			}
		}
	}
	if len(xs) == 0 {
		return nil
	}

	numTheta := max(1, int(math.Round(math.Pi/p.Theta)))
	maxRho := math.Hypot(float64(w), float64(h))
	numRho := int(math.Ceil(2*maxRho/p.Rho)) + 1
	cosT := make([]float64, numTheta)
	sinT := make([]float64, numTheta)
	for t := range numTheta {
		a := float64(t) * p.Theta
		cosT[t], sinT[t] = math.Cos(a), math.Sin(a)
	}

	acc := mempool.GetInt32(numTheta * numRho)
	defer mempool.PutInt32(acc)
	for i := range xs {
		fx, fy := float64(xs[i]), float64(ys[i])
		for t := range numTheta {
			r := int(math.Round((fx*cosT[t]+fy*sinT[t]+maxRho)/p.Rho))
			acc[t*numRho+r]++
		}
	}

	peaks := findPeaks(acc, numTheta, numRho, int32(p.Threshold))
	used := mempool.GetBool(w * h)
	defer mempool.PutBool(used)
	var segments []Segment
	for _, pk := range peaks {
		rho := float64(pk.rho)*p.Rho - maxRho
		n := utils.Point{X: cosT[pk.theta], Y: sinT[pk.theta]}
		segments = append(segments, walkLine(bin, used, n, rho, maxRho, p)...)
	}
	return segments
}

func findPeaks(acc []int32, numTheta, numRho int, threshold int32) []houghPeak {
	var peaks []houghPeak
	for t := range numTheta {
		for r := range numRho {
			v := acc[t*numRho+r]
			if v < threshold || v == 0 {
				continue
			}
			isMax := true
			for dt := -1; dt <= 1 && isMax; dt++ {
				for dr := -1; dr <= 1; dr++ {
					if dt == 0 && dr == 0 {
						continue
					}
					tt, rr := t+dt, r+dr
					if tt < 0 || tt >= numTheta || rr < 0 || rr >= numRho {
						continue
					}
					nv := acc[tt*numRho+rr]
					// Plateaus keep their first cell only.
					if nv > v || (nv == v && (dt < 0 || (dt == 0 && dr < 0))) {
						isMax = false
						break
					}
				}
			}
			if isMax {
				peaks = append(peaks, houghPeak{theta: t, rho: r, votes: v})
			}
		}
	}
	sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].votes > peaks[j].votes })
	if len(peaks) > maxHoughPeaks {
		peaks = peaks[:maxHoughPeaks]
	}
	return peaks
}

// walkLine samples the line {x : x·n = rho} one pixel at a time and returns
// the runs long enough to count as segments.
func walkLine(bin *image.Gray, used []bool, n utils.Point, rho, extent float64, p HoughParams) []Segment {
	w, h := size(bin)
	foot := n.Scale(rho)
	dir := utils.Point{X: -n.Y, Y: n.X}

	var out []Segment
	var run []int
	runStart, lastHit := math.NaN(), math.NaN()
	flush := func() {
		if !math.IsNaN(runStart) && lastHit-runStart >= p.MinLineLength {
			for _, i := range run {
				used[i] = true
			}
			out = append(out, Segment{A: foot.Add(dir.Scale(runStart)), B: foot.Add(dir.Scale(lastHit))})
		}
		run = run[:0]
		runStart, lastHit = math.NaN(), math.NaN()
	}

	for t := -extent; t <= extent; t++ {
		c := foot.Add(dir.Scale(t))
		if c.X < -1 || c.Y < -1 || c.X > float64(w) || c.Y > float64(h) {
			continue
		}
		hit := -1
		for _, k := range [3]float64{0, -1, 1} {
			x := int(math.Round(c.X + n.X*k))
			y := int(math.Round(c.Y + n.Y*k))
			if x < 0 || y < 0 || x >= w || y >= h {
				continue
			}
			i := y*w + x
			if bin.Pix[y*bin.Stride+x] != 0 && !used[i] {
				hit = i
				break
			}
		}
		if hit < 0 {
			if !math.IsNaN(lastHit) && t-lastHit > p.MaxLineGap {
				flush()
			}
			continue
		}
		if math.IsNaN(runStart) {
			runStart = t
		}
		lastHit = t
		run = append(run, hit)
	}
	flush()
	return out
}
