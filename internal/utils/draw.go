package utils

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"
)

// DrawPolygon draws the closed outline through pts.
func DrawPolygon(dst draw.Image, pts []Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		drawLine(dst, toImagePoint(a), toImagePoint(b), col, thickness)
	}
}

// DrawMarker draws a filled square of side 2r+1 centred on p.
func DrawMarker(dst draw.Image, p Point, r int, col color.Color) {
	drawThickPoint(dst, int(math.Round(p.X)), int(math.Round(p.Y)), col, 2*r+1)
}

// FillPolygon fills the polygon with an even-odd scanline rule.
func FillPolygon(dst draw.Image, pts []Point, col color.Color) {
	if len(pts) < 3 {
		return
	}
	b := dst.Bounds()
	box := BoundingBox(pts)
	y0 := max(b.Min.Y, int(math.Floor(box.MinY)))
	y1 := min(b.Max.Y-1, int(math.Ceil(box.MaxY)))
	xs := make([]float64, 0, len(pts))
	for y := y0; y <= y1; y++ {
		cy := float64(y) + 0.5
		xs = xs[:0]
		for i := range pts {
			p, q := pts[i], pts[(i+1)%len(pts)]
			if (p.Y <= cy && q.Y > cy) || (q.Y <= cy && p.Y > cy) {
				xs = append(xs, p.X+(cy-p.Y)*(q.X-p.X)/(q.Y-p.Y))
			}
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			xa := max(b.Min.X, int(math.Ceil(xs[i]-0.5)))
			xb := min(b.Max.X-1, int(math.Floor(xs[i+1]-0.5)))
			for x := xa; x <= xb; x++ {
				dst.Set(x, y, col)
			}
		}
	}
}

func toImagePoint(p Point) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// drawLine draws a line between two points using Bresenham.
func drawLine(dst draw.Image, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	dx := abs(b.X - x0)
	dy := -abs(b.Y - y0)
	sx, sy := -1, -1
	if x0 < b.X {
		sx = 1
	}
	if y0 < b.Y {
		sy = 1
	}
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == b.X && y0 == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawThickPoint(dst draw.Image, x, y int, col color.Color, thickness int) {
	r := (max(thickness, 1) - 1) / 2
	bounds := dst.Bounds()
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if image.Pt(xx, yy).In(bounds) {
				dst.Set(xx, yy, col)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
