package lighting

import (
	"math"
	"testing"

	"chosenoffset.com/lightcone/internal/core/shadows"
)

func scenarioGrid() *shadows.Grid {
	return shadows.NewGrid([]shadows.Rect{{X: 100, Y: 100, W: 50, H: 50}}, 32, 1)
}

func TestTraceSectorAgainstSingleOccluder(t *testing.T) {
	l := NewSectorLight("player", 1000, math.Pi/4)
	l.Facing = math.Atan2(125, 125)

	tr := &Tracer{Rays: 91}
	poly := tr.Trace(l, scenarioGrid())

	if len(poly.Points) != 92 {
		t.Fatalf("Expected anchor plus 91 hits, got %d points", len(poly.Points))
	}
	if poly.Points[0] != (shadows.Point{}) {
		t.Fatalf("Expected the anchor first, got %+v", poly.Points[0])
	}

	central := poly.Points[1+45]
	if d := shadows.Distance(shadows.Point{}, central); math.Abs(d-math.Hypot(100, 100)) > 1e-6 {
		t.Errorf("Expected central ray to stop at the near corner (%.6f), got %.6f", math.Hypot(100, 100), d)
	}

	// The occluder shadows bearings between atan2(100,150) and atan2(150,100).
	lo, hi := math.Atan2(100, 150), math.Atan2(150, 100)
	angles := l.Shape.Angles(nil, l.Facing, 91)
	for i, a := range angles {
		if a > lo-0.01 && a < hi+0.01 {
			continue
		}
		if d := shadows.Distance(shadows.Point{}, poly.Points[i+1]); math.Abs(d-1000) > 1e-6 {
			t.Errorf("Ray %d at %.4f rad: expected full radius, got %.4f", i, a, d)
		}
	}
}

func TestTraceCircleIsClosedLoop(t *testing.T) {
	l := NewCircleLight("halo", 80)
	l.X, l.Y = 10, 10

	poly := (&Tracer{Rays: 36}).Trace(l, nil)
	if !poly.Closed {
		t.Error("Expected a closed polygon")
	}
	if len(poly.Points) != 36 {
		t.Fatalf("Expected 36 points, got %d", len(poly.Points))
	}
	for i, p := range poly.Points {
		if d := shadows.Distance(poly.Origin, p); math.Abs(d-80) > 1e-9 {
			t.Errorf("Point %d: expected distance 80, got %.6f", i, d)
		}
	}
	if !shadows.PointInPolygon(shadows.Point{X: 10, Y: 10}, poly.Points) {
		t.Error("Expected the circle polygon to contain its anchor")
	}
}

func TestParallelTraceMatchesSequential(t *testing.T) {
	grid := shadows.NewGrid([]shadows.Rect{
		{X: 60, Y: -40, W: 20, H: 80},
		{X: -120, Y: 30, W: 40, H: 40},
		{X: 0, Y: -200, W: 300, H: 16},
	}, 16, 1)
	l := NewCircleLight("halo", 400)
	l.X, l.Y = 3.5, -7.25

	seq := (&Tracer{Rays: 720, Workers: 1}).Trace(l, grid)
	par := (&Tracer{Rays: 720, Workers: 4}).Trace(l, grid)

	if len(seq.Points) != len(par.Points) {
		t.Fatalf("Expected %d points, got %d", len(seq.Points), len(par.Points))
	}
	for i := range seq.Points {
		if seq.Points[i] != par.Points[i] {
			t.Fatalf("Point %d differs: sequential %+v, parallel %+v", i, seq.Points[i], par.Points[i])
		}
	}
}

func TestTracerCountsRays(t *testing.T) {
	tr := &Tracer{}
	tr.Trace(NewSectorLight("a", 100, 0.5), nil)
	tr.Trace(NewCircleLight("b", 100), nil)

	if tr.RaysCast() != 2*DefaultRays {
		t.Errorf("Expected %d rays, got %d", 2*DefaultRays, tr.RaysCast())
	}
}

func BenchmarkTraceSector(b *testing.B) {
	var rects []shadows.Rect
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if (x*7+y*13)%5 == 0 {
				rects = append(rects, shadows.Rect{X: float64(x * 32), Y: float64(y * 32), W: 32, H: 32})
			}
		}
	}
	grid := shadows.NewGrid(rects, 32, 1)
	l := NewSectorLight("player", 600, math.Pi/6)
	l.X, l.Y = 640, 640
	tr := &Tracer{Rays: 180}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Facing = float64(i) * 0.01
		tr.Trace(l, grid)
	}
}

func TestTraceNonFiniteAnchorIsEmpty(t *testing.T) {
	l := NewCircleLight("lamp", 100)
	l.X = math.NaN()
	if poly := (&Tracer{Rays: 36}).Trace(l, nil); !poly.Empty() {
		t.Errorf("Expected an empty polygon, got %d points", len(poly.Points))
	}
}
