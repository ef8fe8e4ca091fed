package detector

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/cardcrop/internal/imageops"
	"github.com/MeKo-Tech/cardcrop/internal/utils"
)

// Frame carries the per-image state shared by candidate selection and the
// fallback strategies. It is built once per image and never mutated.
type Frame struct {
	Width    int
	Height   int
	Maps     []EdgeMap
	Contours [][][]utils.Point // Contours[i] belongs to Maps[i]

	ops imageops.Ops
	cfg Config
}

// Area returns the image area in pixels.
func (f *Frame) Area() float64 { return float64(f.Width * f.Height) }

// ContourCount returns the number of contours over all maps.
func (f *Frame) ContourCount() int {
	n := 0
	for _, cs := range f.Contours {
		n += len(cs)
	}
	return n
}

// Map returns the first edge map produced by method m.
func (f *Frame) Map(m EdgeMethod) (EdgeMap, bool) {
	for _, em := range f.Maps {
		if em.Method == m {
			return em, true
		}
	}
	return EdgeMap{}, false
}

// largestContour returns the non-empty contour with maximum area among those
// accepted by keep. Earlier maps win ties.
func (f *Frame) largestContour(keep func(c []utils.Point, area float64) bool) ([]utils.Point, bool) {
	var best []utils.Point
	bestArea := -1.0
	for _, cs := range f.Contours {
		for _, c := range cs {
			if len(c) == 0 {
				continue
			}
			area := f.ops.ContourArea(c)
			if keep != nil && !keep(c, area) {
				continue
			}
			if area > bestArea {
				best, bestArea = c, area
			}
		}
	}
	return best, best != nil
}

// Candidate is a simplified contour with the attributes used for selection.
type Candidate struct {
	Polygon        []utils.Point
	Area           float64
	Vertices       int
	Method         EdgeMethod
	BorderAdjacent bool
}

// Quad returns the polygon as a quadrilateral.
func (c Candidate) Quad() utils.Quad {
	q, _ := utils.QuadFromPoints(c.Polygon)
	return q
}

// NewFrame traces the external contours of every map.
func (d *Detector) NewFrame(width, height int, maps []EdgeMap) *Frame {
	f := &Frame{Width: width, Height: height, Maps: maps, ops: d.ops, cfg: d.cfg}
	f.Contours = make([][][]utils.Point, len(maps))
	for i, m := range maps {
		f.Contours[i] = d.ops.FindExternalContours(m.Mask)
	}
	return f
}

func (d *Detector) candidate(f *Frame, c []utils.Point, m EdgeMethod) Candidate {
	peri := d.ops.ArcLength(c)
	approx := d.ops.ApproxPoly(c, d.cfg.ApproxEpsilon*peri)
	return Candidate{
		Polygon:        approx,
		Area:           d.ops.ContourArea(approx),
		Vertices:       len(approx),
		Method:         m,
		BorderAdjacent: allNearBorder(approx, f.Width, f.Height, d.cfg.BorderTolerancePx),
	}
}

// valid applies the vertex, area and border filters.
func (d *Detector) valid(f *Frame, c Candidate) bool {
	area := f.Area()
	return c.Vertices == 4 &&
		c.Area >= d.cfg.MinAreaFrac*area &&
		c.Area <= d.cfg.MaxAreaFrac*area &&
		!c.BorderAdjacent
}

// Candidates returns every valid candidate, largest first; equal areas keep
// method priority order.
func (d *Detector) Candidates(f *Frame) []Candidate {
	var out []Candidate
	for i, cs := range f.Contours {
		for _, c := range cs {
			if len(c) < 4 {
				continue
			}
			cand := d.candidate(f, c, f.Maps[i].Method)
			if d.valid(f, cand) {
				out = append(out, cand)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Area != out[j].Area {
			return out[i].Area > out[j].Area
		}
		return out[i].Method.priority() > out[j].Method.priority()
	})
	return out
}

// SelectCandidate returns the largest valid candidate across all maps.
func (d *Detector) SelectCandidate(f *Frame) (Candidate, bool) {
	cands := d.Candidates(f)
	if len(cands) == 0 {
		return Candidate{}, false
	}
	return cands[0], true
}

// SelectAll returns non-overlapping valid candidates for multi-card images.
// A candidate is dropped when its centroid lies inside an accepted one or an
// accepted centroid lies inside it.
func (d *Detector) SelectAll(f *Frame) []Candidate {
	var accepted []Candidate
	for _, c := range d.Candidates(f) {
		ctr := utils.Centroid(c.Polygon)
		overlaps := false
		for _, a := range accepted {
			if utils.PointInPolygon(ctr, a.Polygon) || utils.PointInPolygon(utils.Centroid(a.Polygon), c.Polygon) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, c)
		}
	}
	return accepted
}

// allNearBorder reports whether every point lies within tol of some image
// edge, which marks the photograph's own frame rather than an object.
func allNearBorder(pts []utils.Point, w, h int, tol float64) bool {
	if len(pts) == 0 {
		return false
	}
	fw, fh := float64(w), float64(h)
	for _, p := range pts {
		near := math.Abs(p.X) < tol || math.Abs(p.X-fw) < tol ||
			math.Abs(p.Y) < tol || math.Abs(p.Y-fh) < tol
		if !near {
			return false
		}
	}
	return true
}

// spansFrame reports whether a bounding box touches all four image edges.
func spansFrame(b utils.Box, w, h int, tol float64) bool {
	return b.MinX < tol && b.MinY < tol &&
		math.Abs(b.MaxX+1-float64(w)) < tol && math.Abs(b.MaxY+1-float64(h)) < tol
}
