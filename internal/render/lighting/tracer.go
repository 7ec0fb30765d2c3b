package lighting

import (
	"time"

	"golang.org/x/sync/errgroup"

	"chosenoffset.com/lightcone/internal/core/shadows"
)

// DefaultRays is the fan size used when a tracer has no ray count.
const DefaultRays = 90

// minRaysPerWorker keeps tiny fans on one goroutine.
const minRaysPerWorker = 32

// Tracer casts ray fans against an occluder grid.
type Tracer struct {
	Rays    int // fidelity knob, clamped to MinRays
	Workers int // > 1 splits large fans across goroutines

	raysCast uint64
	elapsed  time.Duration
}

// Trace builds the visibility polygon for a light at its current pose.
// A non-finite anchor yields an empty polygon.
func (t *Tracer) Trace(l *Light, grid *shadows.Grid) Polygon {
	if !finite(l.X) || !finite(l.Y) {
		return Polygon{}
	}
	start := time.Now()

	rays := t.rayCount()
	facing := l.Facing
	if !finite(facing) {
		facing = 0
	}
	origin := l.Anchor()
	reach := l.Shape.Reach()
	angles := l.Shape.Angles(make([]float64, 0, rays), facing, rays)

	hits := make([]shadows.RayHit, len(angles))
	if err := t.castAll(grid, origin, angles, reach, hits); err != nil {
		return Polygon{}
	}

	poly := Polygon{Origin: origin, Closed: l.Shape.Closed()}
	if poly.Closed {
		poly.Points = make([]shadows.Point, 0, len(hits))
	} else {
		poly.Points = make([]shadows.Point, 0, len(hits)+1)
		poly.Points = append(poly.Points, origin)
	}
	for _, h := range hits {
		poly.Points = append(poly.Points, h.Point)
	}

	t.raysCast += uint64(len(angles))
	t.elapsed += time.Since(start)
	return poly
}

func (t *Tracer) castAll(grid *shadows.Grid, origin shadows.Point, angles []float64, reach float64, hits []shadows.RayHit) error {
	n := len(angles)
	workers := t.Workers
	if limit := n / minRaysPerWorker; workers > limit {
		workers = limit
	}

	if workers <= 1 {
		for i, a := range angles {
			hits[i] = grid.Cast(origin, a, reach)
		}
		return nil
	}

	// Rays in a fan are independent and the grid is immutable, so each chunk
	// writes its own slice range.
	chunk := (n + workers - 1) / workers
	var eg errgroup.Group
	eg.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		eg.Go(func() error {
			for i := lo; i < hi; i++ {
				hits[i] = grid.Cast(origin, angles[i], reach)
			}
			return nil
		})
	}
	return eg.Wait()
}

func (t *Tracer) rayCount() int {
	if t.Rays == 0 {
		return DefaultRays
	}
	return clampRays(t.Rays)
}

// RaysCast returns the total number of rays traced.
func (t *Tracer) RaysCast() uint64 { return t.raysCast }

// Elapsed returns the cumulative time spent tracing.
func (t *Tracer) Elapsed() time.Duration { return t.elapsed }
