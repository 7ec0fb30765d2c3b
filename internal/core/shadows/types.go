package shadows

import "math"

// Point represents a 2D point in world or screen space
type Point struct {
	X, Y float64
}

// Coord represents a tile or bucket coordinate
type Coord struct {
	X, Y int
}

// Rect is an axis-aligned occluder in world pixels.
type Rect struct {
	X, Y, W, H float64
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return !(r.W > 0 && r.H > 0)
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// EdgeType names the side of an occluder a segment was taken from.
type EdgeType uint8

const (
	EdgeTop EdgeType = iota
	EdgeRight
	EdgeBottom
	EdgeLeft
)

func (e EdgeType) String() string {
	switch e {
	case EdgeTop:
		return "top"
	case EdgeRight:
		return "right"
	case EdgeBottom:
		return "bottom"
	case EdgeLeft:
		return "left"
	}
	return "unknown"
}

// Horizontal reports whether segments of this edge type run along the X axis.
func (e EdgeType) Horizontal() bool {
	return e == EdgeTop || e == EdgeBottom
}

// Segment represents an occluder edge that blocks rays
type Segment struct {
	A, B     Point
	EdgeType EdgeType
}

// RayHit is the result of a single ray cast.
type RayHit struct {
	Distance float64 // distance along the ray to the first edge, or the max length
	Hit      bool    // false when nothing was intersected within the max length
	Point    Point   // origin + Distance along the ray direction
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
