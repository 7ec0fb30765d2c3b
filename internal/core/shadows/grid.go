package shadows

import (
	"math"
	"sort"
)

// DefaultBucketSize is the broad-phase cell size used when no tile size is known.
const DefaultBucketSize = 64.0

// bucketTiles is how many tiles wide a broad-phase bucket is.
const bucketTiles = 4

// boundaryEpsilon widens segment bounds when bucketing so edges lying exactly on a
// bucket boundary are indexed by both neighbours.
const boundaryEpsilon = 1e-6

// Grid is an immutable snapshot of the occluders for one level.
// It is safe to share between goroutines; a level change builds a new Grid.
type Grid struct {
	version  uint64
	tileSize float64
	rects    []Rect
	segments []Segment

	cellSize             float64
	minCX, minCY         int
	cols, rows           int
	buckets              [][]int32
	boundsMin, boundsMax Point
}

// NewGrid builds an occluder grid from world rectangles. Empty rectangles are
// skipped. tileSize sizes the broad-phase buckets; values <= 0 fall back to
// DefaultBucketSize.
func NewGrid(rects []Rect, tileSize float64, version uint64) *Grid {
	g := &Grid{
		version:  version,
		tileSize: tileSize,
		cellSize: DefaultBucketSize,
	}
	if tileSize > 0 && finite(tileSize) {
		g.cellSize = tileSize * bucketTiles
	}

	g.rects = make([]Rect, 0, len(rects))
	for _, r := range rects {
		if r.Empty() || !finite(r.X) || !finite(r.Y) || !finite(r.W) || !finite(r.H) {
			continue
		}
		g.rects = append(g.rects, r)
	}

	g.segments = mergeColinearSegments(segmentsFromRects(g.rects))
	g.buildBuckets()
	return g
}

// Replace returns the grid for the next level load. The receiver is left
// untouched; the returned grid carries the next version number. A nil receiver
// yields version 1.
func (g *Grid) Replace(rects []Rect, tileSize float64) *Grid {
	return NewGrid(rects, tileSize, g.Version()+1)
}

// Version identifies this occluder set. It increases every time the set is replaced.
func (g *Grid) Version() uint64 {
	if g == nil {
		return 0
	}
	return g.version
}

// TileSize returns the tile size the occluders were derived from.
func (g *Grid) TileSize() float64 {
	if g == nil {
		return 0
	}
	return g.tileSize
}

// Rects returns the occluder rectangles. The returned slice must not be modified.
func (g *Grid) Rects() []Rect {
	if g == nil {
		return nil
	}
	return g.rects
}

// Segments returns the merged occluder edges. The returned slice must not be modified.
func (g *Grid) Segments() []Segment {
	if g == nil {
		return nil
	}
	return g.segments
}

// Bounds returns the bounding box of all occluder edges.
func (g *Grid) Bounds() (minPt, maxPt Point) {
	if g == nil {
		return Point{}, Point{}
	}
	return g.boundsMin, g.boundsMax
}

// segmentsFromRects emits the four edges of every rectangle, wound clockwise
// in screen space (y down) like the wall perimeter of a tile.
func segmentsFromRects(rects []Rect) []Segment {
	segments := make([]Segment, 0, len(rects)*4)
	for _, r := range rects {
		left, top := r.X, r.Y
		right, bottom := r.X+r.W, r.Y+r.H

		segments = append(segments,
			Segment{A: Point{left, top}, B: Point{right, top}, EdgeType: EdgeTop},
			Segment{A: Point{right, top}, B: Point{right, bottom}, EdgeType: EdgeRight},
			Segment{A: Point{right, bottom}, B: Point{left, bottom}, EdgeType: EdgeBottom},
			Segment{A: Point{left, bottom}, B: Point{left, top}, EdgeType: EdgeLeft},
		)
	}
	return segments
}

// mergeColinearSegments combines touching or overlapping edges of the same type
// that lie on the same line, so a row of wall tiles becomes one long edge.
func mergeColinearSegments(segments []Segment) []Segment {
	if len(segments) < 2 {
		return segments
	}

	type span struct {
		edge   EdgeType
		line   float64 // fixed coordinate
		lo, hi float64 // extent along the line
	}

	spans := make([]span, len(segments))
	for i, seg := range segments {
		s := span{edge: seg.EdgeType}
		if seg.EdgeType.Horizontal() {
			s.line = seg.A.Y
			s.lo, s.hi = math.Min(seg.A.X, seg.B.X), math.Max(seg.A.X, seg.B.X)
		} else {
			s.line = seg.A.X
			s.lo, s.hi = math.Min(seg.A.Y, seg.B.Y), math.Max(seg.A.Y, seg.B.Y)
		}
		spans[i] = s
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].edge != spans[j].edge {
			return spans[i].edge < spans[j].edge
		}
		if spans[i].line != spans[j].line {
			return spans[i].line < spans[j].line
		}
		return spans[i].lo < spans[j].lo
	})

	const epsilon = 0.001
	merged := make([]span, 0, len(spans))
	for _, s := range spans {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.edge == s.edge && math.Abs(last.line-s.line) < epsilon && s.lo <= last.hi+epsilon {
				last.hi = math.Max(last.hi, s.hi)
				continue
			}
		}
		merged = append(merged, s)
	}

	result := make([]Segment, len(merged))
	for i, s := range merged {
		var seg Segment
		seg.EdgeType = s.edge
		switch s.edge {
		case EdgeTop:
			seg.A, seg.B = Point{s.lo, s.line}, Point{s.hi, s.line}
		case EdgeBottom:
			seg.A, seg.B = Point{s.hi, s.line}, Point{s.lo, s.line}
		case EdgeRight:
			seg.A, seg.B = Point{s.line, s.lo}, Point{s.line, s.hi}
		case EdgeLeft:
			seg.A, seg.B = Point{s.line, s.hi}, Point{s.line, s.lo}
		}
		result[i] = seg
	}
	return result
}

// maxBuckets caps the broad-phase index size.
const maxBuckets = 1 << 16

// buildBuckets indexes every segment into the uniform cells its bounds touch.
func (g *Grid) buildBuckets() {
	if len(g.segments) == 0 {
		return
	}

	g.boundsMin = Point{math.Inf(1), math.Inf(1)}
	g.boundsMax = Point{math.Inf(-1), math.Inf(-1)}
	for _, seg := range g.segments {
		g.boundsMin.X = math.Min(g.boundsMin.X, math.Min(seg.A.X, seg.B.X))
		g.boundsMin.Y = math.Min(g.boundsMin.Y, math.Min(seg.A.Y, seg.B.Y))
		g.boundsMax.X = math.Max(g.boundsMax.X, math.Max(seg.A.X, seg.B.X))
		g.boundsMax.Y = math.Max(g.boundsMax.Y, math.Max(seg.A.Y, seg.B.Y))
	}

	// Occluders spread over a huge area get coarser cells.
	for bucketSpan(g.boundsMin.X, g.boundsMax.X, g.cellSize)*bucketSpan(g.boundsMin.Y, g.boundsMax.Y, g.cellSize) > maxBuckets {
		g.cellSize *= 2
	}

	g.minCX = g.cellOf(g.boundsMin.X - boundaryEpsilon)
	g.minCY = g.cellOf(g.boundsMin.Y - boundaryEpsilon)
	g.cols = g.cellOf(g.boundsMax.X+boundaryEpsilon) - g.minCX + 1
	g.rows = g.cellOf(g.boundsMax.Y+boundaryEpsilon) - g.minCY + 1
	g.buckets = make([][]int32, g.cols*g.rows)

	for i, seg := range g.segments {
		x0 := g.cellOf(math.Min(seg.A.X, seg.B.X) - boundaryEpsilon)
		x1 := g.cellOf(math.Max(seg.A.X, seg.B.X) + boundaryEpsilon)
		y0 := g.cellOf(math.Min(seg.A.Y, seg.B.Y) - boundaryEpsilon)
		y1 := g.cellOf(math.Max(seg.A.Y, seg.B.Y) + boundaryEpsilon)
		for cy := y0; cy <= y1; cy++ {
			for cx := x0; cx <= x1; cx++ {
				idx := g.bucketIndex(cx, cy)
				g.buckets[idx] = append(g.buckets[idx], int32(i))
			}
		}
	}
}

// bucketSpan counts the cells of the given size that [lo, hi] touches.
func bucketSpan(lo, hi, size float64) float64 {
	return math.Floor((hi+boundaryEpsilon)/size) - math.Floor((lo-boundaryEpsilon)/size) + 1
}

func (g *Grid) cellOf(v float64) int {
	return int(math.Floor(v / g.cellSize))
}

// bucketIndex returns the flat index of a cell, or -1 outside the indexed area.
func (g *Grid) bucketIndex(cx, cy int) int {
	x := cx - g.minCX
	y := cy - g.minCY
	if x < 0 || y < 0 || x >= g.cols || y >= g.rows {
		return -1
	}
	return y*g.cols + x
}
