package utils

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genPoint generates a random point.
func genPoint() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(-100, 100),
		gen.Float64Range(-100, 100),
	).Map(func(vals []interface{}) Point {
		return Point{X: vals[0].(float64), Y: vals[1].(float64)}
	})
}

func genCloud(n int) gopter.Gen {
	return gen.SliceOfN(n, genPoint())
}

func TestApproxClosed_SubsetOfInput(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("simplified contour keeps only input vertices", prop.ForAll(
		func(points []Point, epsilon float64) bool {
			simplified := ApproxClosed(points, epsilon)
			if len(simplified) > len(points) {
				return false
			}
			for _, s := range simplified {
				found := false
				for _, p := range points {
					if p == s {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
			return true
		},
		genCloud(12),
		gen.Float64Range(0.1, 10.0),
	))

	properties.TestingRun(t)
}

func TestConvexHull_ContainsAllPoints(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every point lies on or left of each hull edge", prop.ForAll(
		func(points []Point) bool {
			hull := ConvexHull(points)
			if len(hull) < 3 {
				return true
			}
			for i := range hull {
				a, b := hull[i], hull[(i+1)%len(hull)]
				for _, p := range points {
					if cross(a, b, p) < -1e-6 {
						return false
					}
				}
			}
			return true
		},
		genCloud(15),
	))

	properties.TestingRun(t)
}

func TestMinAreaRect_EnclosesHull(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("rectangle area is at least the hull area", prop.ForAll(
		func(points []Point) bool {
			hull := ConvexHull(points)
			if len(hull) < 3 {
				return true
			}
			rect := MinAreaRect(points)
			rectArea := Dist(rect[0], rect[1]) * Dist(rect[1], rect[2])
			return rectArea+1e-6 >= PolygonArea(hull)
		},
		genCloud(10),
	))

	properties.Property("rectangle sides are perpendicular", prop.ForAll(
		func(points []Point) bool {
			if len(ConvexHull(points)) < 3 {
				return true
			}
			r := MinAreaRect(points)
			e1, e2 := r[1].Sub(r[0]), r[2].Sub(r[1])
			dot := e1.X*e2.X + e1.Y*e2.Y
			return math.Abs(dot) < 1e-6*(1+math.Hypot(e1.X, e1.Y)*math.Hypot(e2.X, e2.Y))
		},
		genCloud(10),
	))

	properties.TestingRun(t)
}

func TestIntersect_RecoversCommonPoint(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("two lines through p intersect at p", prop.ForAll(
		func(p Point, a1, a2 float64) bool {
			if math.Abs(math.Sin(a1-a2)) < 0.05 {
				return true
			}
			l1 := Line{A: p, B: p.Add(Point{X: math.Cos(a1) * 10, Y: math.Sin(a1) * 10})}
			l2 := Line{A: p.Sub(Point{X: math.Cos(a2) * 7, Y: math.Sin(a2) * 7}), B: p}
			got, ok := Intersect(l1, l2)
			return ok && Dist(got, p) < 1e-6
		},
		genPoint(),
		gen.Float64Range(0, math.Pi),
		gen.Float64Range(0, math.Pi),
	))

	properties.TestingRun(t)
}
