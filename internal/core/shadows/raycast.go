package shadows

import "math"

// parallelEpsilon is the determinant below which a ray and segment are treated as parallel.
const parallelEpsilon = 1e-10

// hitEpsilon widens the accepted segment parameter range so a ray through a
// shared corner always registers a hit instead of slipping between two edges.
const hitEpsilon = 1e-9

// Cast fires a ray from origin at angle (radians, world space) and returns the
// distance to the first occluder edge, or maxLen with Hit=false if nothing is
// in range. A non-finite origin or a maxLen that is not positive yields a hit
// at distance 0; a NaN angle is treated as 0.
func (g *Grid) Cast(origin Point, angle, maxLen float64) RayHit {
	if !finite(origin.X) || !finite(origin.Y) || !(maxLen > 0) {
		return RayHit{Distance: 0, Hit: true, Point: origin}
	}
	if !finite(angle) {
		angle = 0
	}

	dx := math.Cos(angle)
	dy := math.Sin(angle)
	best, hit := g.march(origin, dx, dy, maxLen)

	return RayHit{
		Distance: best,
		Hit:      hit,
		Point:    Point{X: origin.X + dx*best, Y: origin.Y + dy*best},
	}
}

// CastTo reports whether target is visible from origin, along with the ray
// result. The target is visible if no edge is crossed strictly before it.
func (g *Grid) CastTo(origin, target Point) (bool, RayHit) {
	dist := Distance(origin, target)
	if dist == 0 {
		return true, RayHit{Point: origin}
	}
	angle := math.Atan2(target.Y-origin.Y, target.X-origin.X)
	res := g.Cast(origin, angle, dist)
	return !res.Hit || res.Distance >= dist-hitEpsilon, res
}

// march walks the broad-phase buckets along the ray in order and tests only
// the segments indexed in the cells it crosses.
func (g *Grid) march(origin Point, dx, dy, maxLen float64) (float64, bool) {
	best := maxLen
	hit := false
	if g == nil || len(g.segments) == 0 {
		return best, hit
	}

	cs := g.cellSize
	cx := g.cellOf(origin.X)
	cy := g.cellOf(origin.Y)

	stepX, tMaxX, tDeltaX := dda(origin.X, dx, cx, cs)
	stepY, tMaxY, tDeltaY := dda(origin.Y, dy, cy, cs)

	maxCX := g.minCX + g.cols - 1
	maxCY := g.minCY + g.rows - 1

	for {
		if idx := g.bucketIndex(cx, cy); idx >= 0 {
			for _, si := range g.buckets[idx] {
				if t, ok := raySegmentIntersection(origin, dx, dy, g.segments[si]); ok && t < best {
					best = t
					hit = true
				}
			}
		}

		tExit := math.Min(tMaxX, tMaxY)
		if best <= tExit || tExit > maxLen {
			break
		}

		// Nothing more can be hit once the walk leaves the indexed area heading away.
		if (stepX > 0 && cx > maxCX) || (stepX < 0 && cx < g.minCX) || (stepX == 0 && (cx < g.minCX || cx > maxCX)) ||
			(stepY > 0 && cy > maxCY) || (stepY < 0 && cy < g.minCY) || (stepY == 0 && (cy < g.minCY || cy > maxCY)) {
			break
		}

		if tMaxX < tMaxY {
			cx += stepX
			tMaxX += tDeltaX
		} else {
			cy += stepY
			tMaxY += tDeltaY
		}
	}

	return best, hit
}

// dda returns the step direction, the ray parameter of the first cell
// boundary crossing, and the parameter spacing between crossings on one axis.
func dda(pos, dir float64, cell int, size float64) (step int, tMax, tDelta float64) {
	switch {
	case dir > 0:
		return 1, (float64(cell+1)*size - pos) / dir, size / dir
	case dir < 0:
		return -1, (float64(cell)*size - pos) / dir, -size / dir
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}

// raySegmentIntersection checks if a ray intersects a line segment and returns
// the distance along the (unit) ray direction.
func raySegmentIntersection(origin Point, dx, dy float64, seg Segment) (float64, bool) {
	// Ray: P = origin + t * (dx, dy) for t >= 0
	// Segment: Q = seg.A + u * (seg.B - seg.A) for 0 <= u <= 1
	segDX := seg.B.X - seg.A.X
	segDY := seg.B.Y - seg.A.Y

	denominator := dx*segDY - dy*segDX
	if math.Abs(denominator) < parallelEpsilon {
		return 0, false
	}

	diffX := seg.A.X - origin.X
	diffY := seg.A.Y - origin.Y

	u := (dx*diffY - dy*diffX) / denominator
	t := (segDX*diffY - segDY*diffX) / denominator

	if u >= -hitEpsilon && u <= 1+hitEpsilon && t >= 0 {
		return t, true
	}
	return 0, false
}
