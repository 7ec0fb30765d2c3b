package maploader

import (
	"cmp"
	"slices"

	"github.com/zyedidia/generic/mapset"

	"chosenoffset.com/lightcone/internal/core/shadows"
)

// Regions returns the 4-connected groups of sight-blocking tiles, each in
// row-major order. Regions are ordered by their first tile.
func (m *Map) Regions() [][]shadows.Coord {
	visited := mapset.New[shadows.Coord]()
	var regions [][]shadows.Coord

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			start := shadows.Coord{X: x, Y: y}
			if !m.BlocksSight(x, y) || visited.Has(start) {
				continue
			}
			regions = append(regions, m.floodFill(start, visited))
		}
	}
	return regions
}

func (m *Map) floodFill(start shadows.Coord, visited mapset.Set[shadows.Coord]) []shadows.Coord {
	var region []shadows.Coord
	queue := []shadows.Coord{start}
	visited.Put(start)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		region = append(region, current)

		for _, n := range [4]shadows.Coord{
			{X: current.X, Y: current.Y - 1},
			{X: current.X + 1, Y: current.Y},
			{X: current.X, Y: current.Y + 1},
			{X: current.X - 1, Y: current.Y},
		} {
			if m.BlocksSight(n.X, n.Y) && !visited.Has(n) {
				visited.Put(n)
				queue = append(queue, n)
			}
		}
	}

	slices.SortFunc(region, compareCoords)
	return region
}

// Occluders covers every wall region with as few rectangles as a greedy
// row-then-column sweep finds, in world pixels. Rectangles never span two
// regions.
func (m *Map) Occluders() []shadows.Rect {
	ts := m.TileSize()
	var rects []shadows.Rect

	for _, region := range m.Regions() {
		remaining := mapset.New[shadows.Coord]()
		for _, c := range region {
			remaining.Put(c)
		}

		for _, c := range region {
			if !remaining.Has(c) {
				continue
			}

			w := 1
			for remaining.Has(shadows.Coord{X: c.X + w, Y: c.Y}) {
				w++
			}
			h := 1
			for rowFree(remaining, c.X, c.Y+h, w) {
				h++
			}

			for y := c.Y; y < c.Y+h; y++ {
				for x := c.X; x < c.X+w; x++ {
					remaining.Remove(shadows.Coord{X: x, Y: y})
				}
			}
			rects = append(rects, shadows.Rect{
				X: float64(c.X) * ts,
				Y: float64(c.Y) * ts,
				W: float64(w) * ts,
				H: float64(h) * ts,
			})
		}
	}
	return rects
}

func rowFree(set mapset.Set[shadows.Coord], x, y, w int) bool {
	for i := 0; i < w; i++ {
		if !set.Has(shadows.Coord{X: x + i, Y: y}) {
			return false
		}
	}
	return true
}

func compareCoords(a, b shadows.Coord) int {
	if a.Y != b.Y {
		return cmp.Compare(a.Y, b.Y)
	}
	return cmp.Compare(a.X, b.X)
}
