package shadows

import "math"

// IsFacingPoint checks if a segment is facing towards a given point.
// Segments are wound clockwise in screen space, so the outside of an occluder
// is on the negative side of the cross product.
func IsFacingPoint(seg Segment, point Point) bool {
	dx1 := seg.B.X - seg.A.X
	dy1 := seg.B.Y - seg.A.Y
	dx2 := point.X - seg.A.X
	dy2 := point.Y - seg.A.Y

	return dx1*dy2-dy1*dx2 < 0
}

// PointInPolygon tests whether a point is inside a polygon using ray casting
func PointInPolygon(point Point, polygon []Point) bool {
	inside := false
	j := len(polygon) - 1

	for i := 0; i < len(polygon); i++ {
		xi, yi := polygon[i].X, polygon[i].Y
		xj, yj := polygon[j].X, polygon[j].Y

		if ((yi > point.Y) != (yj > point.Y)) &&
			(point.X < (xj-xi)*(point.Y-yi)/(yj-yi)+xi) {
			inside = !inside
		}
		j = i
	}

	return inside
}

// Distance calculates the Euclidean distance between two points
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// NormalizeAngle wraps an angle to [0, 2π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// AngleDiff returns the signed difference b-a wrapped to [-π, π].
func AngleDiff(a, b float64) float64 {
	d := NormalizeAngle(b - a)
	if d > math.Pi {
		d -= 2 * math.Pi
	}
	return d
}
