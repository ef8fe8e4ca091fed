package imageops

import (
	"image"

	"github.com/MeKo-Tech/cardcrop/internal/mempool"
	"github.com/MeKo-Tech/cardcrop/internal/utils"
)

// compStats holds the bounding box of a labelled component.
type compStats struct {
	count    int
	minX     int
	minY     int
	maxX     int
	maxY     int
	external bool
}

// 8-neighbourhood in clockwise order (y down): E, SE, S, SW, W, NW, N, NE.
var (
	ndx = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	ndy = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// FindExternalContours labels 8-connected foreground components, keeps those
// that touch the image border or the background connected to it, and traces
// each one's outer boundary.
func (Native) FindExternalContours(bin *image.Gray) [][]utils.Point {
	w, h := size(bin)
	if w == 0 || h == 0 {
		return nil
	}
	fg := mempool.GetBool(w * h)
	defer mempool.PutBool(fg)
	for y := range h {
		row := bin.Pix[y*bin.Stride:]
		for x := range w {
			fg[y*w+x] = row[x] != 0
		}
	}

	outside := outerBackground(fg, w, h)
	defer mempool.PutBool(outside)
	comps, labels := labelComponents(fg, outside, w, h)

	contours := make([][]utils.Point, 0, len(comps))
	for i, st := range comps {
		if !st.external {
			continue
		}
		if c := traceContourMoore(labels, w, h, i+1, st); len(c) > 0 {
			contours = append(contours, c)
		}
	}
	return contours
}

// outerBackground flood-fills (4-connected) the background reachable from
// the image border.
func outerBackground(fg []bool, w, h int) []bool {
	outside := mempool.GetBool(w * h)
	queue := make([]int, 0, 2*(w+h))
	seed := func(x, y int) {
		i := y*w + x
		if !fg[i] && !outside[i] {
			outside[i] = true
			queue = append(queue, i)
		}
	}
	for x := range w {
		seed(x, 0)
		seed(x, h-1)
	}
	for y := range h {
		seed(0, y)
		seed(w-1, y)
	}
	for head := 0; head < len(queue); head++ {
		i := queue[head]
		x, y := i%w, i/w
		if x > 0 {
			seed(x-1, y)
		}
		if x < w-1 {
			seed(x+1, y)
		}
		if y > 0 {
			seed(x, y-1)
		}
		if y < h-1 {
			seed(x, y+1)
		}
	}
	return outside
}

// labelComponents assigns 8-connected labels starting at 1 and records
// whether each component borders the outer background.
func labelComponents(fg, outside []bool, w, h int) ([]compStats, []int) {
	labels := make([]int, w*h)
	var comps []compStats
	queue := make([]int, 0, 256)

	for start := range fg {
		if !fg[start] || labels[start] != 0 {
			continue
		}
		label := len(comps) + 1
		sx, sy := start%w, start/w
		st := compStats{minX: sx, minY: sy, maxX: sx, maxY: sy}
		labels[start] = label
		queue = append(queue[:0], start)
		for head := 0; head < len(queue); head++ {
			i := queue[head]
			x, y := i%w, i/w
			st.count++
			st.minX, st.maxX = min(st.minX, x), max(st.maxX, x)
			st.minY, st.maxY = min(st.minY, y), max(st.maxY, y)
			if !st.external && touchesOutside(outside, w, h, x, y) {
				st.external = true
			}
			for k := range 8 {
				nx, ny := x+ndx[k], y+ndy[k]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if fg[j] && labels[j] == 0 {
					labels[j] = label
					queue = append(queue, j)
				}
			}
		}
		comps = append(comps, st)
	}
	return comps, labels
}

func touchesOutside(outside []bool, w, h, x, y int) bool {
	if x == 0 || y == 0 || x == w-1 || y == h-1 {
		return true
	}
	i := y*w + x
	return outside[i-1] || outside[i+1] || outside[i-w] || outside[i+w]
}

// traceContourMoore follows the outer boundary of the labelled component with
// Moore-neighbour tracing, starting at its top-left pixel. Collinear runs
// are compressed to their end points.
func traceContourMoore(labels []int, w, h, label int, st compStats) []utils.Point {
	isLabel := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && labels[y*w+x] == label
	}

	sx, sy := -1, -1
	for x := st.minX; x <= st.maxX; x++ {
		if isLabel(x, st.minY) {
			sx, sy = x, st.minY
			break
		}
	}
	if sx < 0 {
		return nil
	}

	pts := make([]utils.Point, 0, 64)
	add := func(x, y int) {
		p := utils.Point{X: float64(x), Y: float64(y)}
		if n := len(pts); n > 0 && pts[n-1] == p {
			return
		} else if n >= 2 {
			a, b := pts[n-2], pts[n-1]
			if (b.X-a.X)*(p.Y-b.Y)-(b.Y-a.Y)*(p.X-b.X) == 0 &&
				(b.X-a.X)*(p.X-b.X)+(b.Y-a.Y)*(p.Y-b.Y) > 0 {
				pts = pts[:n-1]
			}
		}
		pts = append(pts, p)
	}
	add(sx, sy)

	// The pixel to the west of the top-left pixel is background.
	cx, cy := sx, sy
	bdir := 4
	startDir := -1
	for steps := 0; steps < 4*st.count+8; steps++ {
		found := false
		for k := 1; k <= 8; k++ {
			d := (bdir + k) % 8
			nx, ny := cx+ndx[d], cy+ndy[d]
			if !isLabel(nx, ny) {
				continue
			}
			// Backtrack is the last background neighbour checked before d,
			// expressed as a direction from the new pixel.
			prev := (d + 7) % 8
			px, py := cx+ndx[prev], cy+ndy[prev]
			bdir = dirIndex(px-nx, py-ny)
			if cx == sx && cy == sy {
				if startDir == d {
					return closeContour(pts)
				}
				if startDir < 0 {
					startDir = d
				}
			}
			cx, cy = nx, ny
			add(cx, cy)
			found = true
			break
		}
		if !found {
			break
		}
	}
	return closeContour(pts)
}

func closeContour(pts []utils.Point) []utils.Point {
	if n := len(pts); n >= 2 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	if n := len(pts); n >= 3 {
		a, b, c := pts[n-1], pts[0], pts[1]
		if (b.X-a.X)*(c.Y-b.Y)-(b.Y-a.Y)*(c.X-b.X) == 0 &&
			(b.X-a.X)*(c.X-b.X)+(b.Y-a.Y)*(c.Y-b.Y) > 0 {
			pts = pts[1:]
		}
	}
	return pts
}

func dirIndex(dx, dy int) int {
	for i := range 8 {
		if ndx[i] == dx && ndy[i] == dy {
			return i
		}
	}
	return 4
}
