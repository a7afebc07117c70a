// Package geo holds the planar geometry shared by the planner and both simulators.
// Coordinates are kilometres on a flat plane with the base at the origin.
package geo

import "math"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

var Base = Point{}

// Distance returns the straight-line distance between (x1,y1) and (x2,y2).
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

func (p Point) DistanceTo(q Point) float64 {
	return Distance(p.X, p.Y, q.X, q.Y)
}

// PathLength sums the legs between consecutive points.
func PathLength(points ...Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += points[i-1].DistanceTo(points[i])
	}
	return total
}

// StepToward moves from toward to by at most maxStep on each axis independently.
// Neither axis overshoots the target.
func StepToward(from, to Point, maxStep float64) Point {
	return Point{
		X: from.X + clamp(to.X-from.X, maxStep),
		Y: from.Y + clamp(to.Y-from.Y, maxStep),
	}
}

func clamp(delta, limit float64) float64 {
	if delta > limit {
		return limit
	}
	if delta < -limit {
		return -limit
	}
	return delta
}
