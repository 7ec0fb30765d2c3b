package shadows

import (
	"math"
	"testing"
)

const testEpsilon = 1e-6

func TestCastHitsNearEdgeOfOccluder(t *testing.T) {
	grid := NewGrid([]Rect{{X: 100, Y: 100, W: 50, H: 50}}, 32, 1)

	tests := []struct {
		name   string
		origin Point
		want   float64
	}{
		{"from left", Point{0, 125}, 100},
		{"from above", Point{125, 0}, 100},
		{"from right", Point{400, 125}, 250},
		{"from below", Point{125, 300}, 150},
		{"diagonal to centre", Point{0, 0}, math.Hypot(100, 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			centre := Point{125, 125}
			angle := math.Atan2(centre.Y-tt.origin.Y, centre.X-tt.origin.X)
			hit := grid.Cast(tt.origin, angle, 1000)
			if !hit.Hit {
				t.Fatalf("Expected a hit, got none")
			}
			if math.Abs(hit.Distance-tt.want) > testEpsilon {
				t.Errorf("Expected distance %.6f, got %.6f", tt.want, hit.Distance)
			}
		})
	}
}

func TestCastMissReturnsMaxLength(t *testing.T) {
	grid := NewGrid([]Rect{{X: 100, Y: 100, W: 50, H: 50}}, 32, 1)

	hit := grid.Cast(Point{0, 0}, 0, 1000)
	if hit.Hit {
		t.Fatalf("Expected no hit, got hit at %.2f", hit.Distance)
	}
	if hit.Distance != 1000 {
		t.Errorf("Expected distance 1000, got %.2f", hit.Distance)
	}
	if math.Abs(hit.Point.X-1000) > testEpsilon || math.Abs(hit.Point.Y) > testEpsilon {
		t.Errorf("Expected end point (1000, 0), got (%.2f, %.2f)", hit.Point.X, hit.Point.Y)
	}
}

func TestCastStopsAtMaxLength(t *testing.T) {
	grid := NewGrid([]Rect{{X: 500, Y: -10, W: 20, H: 20}}, 32, 1)

	if hit := grid.Cast(Point{0, 0}, 0, 100); hit.Hit {
		t.Errorf("Occluder beyond max length should not be hit, got %.2f", hit.Distance)
	}
	if hit := grid.Cast(Point{0, 0}, 0, 600); !hit.Hit || math.Abs(hit.Distance-500) > testEpsilon {
		t.Errorf("Expected hit at 500, got hit=%v distance=%.2f", hit.Hit, hit.Distance)
	}
}

func TestCastPicksNearestOccluder(t *testing.T) {
	grid := NewGrid([]Rect{
		{X: 300, Y: -5, W: 10, H: 10},
		{X: 100, Y: -5, W: 10, H: 10},
		{X: 200, Y: -5, W: 10, H: 10},
	}, 16, 1)

	hit := grid.Cast(Point{0, 0}, 0, 1000)
	if !hit.Hit || math.Abs(hit.Distance-100) > testEpsilon {
		t.Errorf("Expected nearest hit at 100, got hit=%v distance=%.2f", hit.Hit, hit.Distance)
	}

	back := grid.Cast(Point{1000, 0}, math.Pi, 2000)
	if !back.Hit || math.Abs(back.Distance-690) > testEpsilon {
		t.Errorf("Expected nearest hit at 690 casting backwards, got hit=%v distance=%.2f", back.Hit, back.Distance)
	}
}

func TestCastDegenerateInput(t *testing.T) {
	grid := NewGrid([]Rect{{X: 10, Y: 10, W: 10, H: 10}}, 8, 1)

	if hit := grid.Cast(Point{0, 0}, 0, 0); !hit.Hit || hit.Distance != 0 {
		t.Errorf("Zero-length ray: expected hit at 0, got hit=%v distance=%.2f", hit.Hit, hit.Distance)
	}
	if hit := grid.Cast(Point{0, 0}, 0, math.NaN()); !hit.Hit || hit.Distance != 0 {
		t.Errorf("NaN length: expected hit at 0, got hit=%v distance=%.2f", hit.Hit, hit.Distance)
	}
	if hit := grid.Cast(Point{math.NaN(), 0}, 0, 100); !hit.Hit || hit.Distance != 0 {
		t.Errorf("NaN origin: expected hit at 0, got hit=%v distance=%.2f", hit.Hit, hit.Distance)
	}
	// NaN angle behaves like angle 0
	if hit := grid.Cast(Point{0, 15}, math.NaN(), 100); !hit.Hit || math.Abs(hit.Distance-10) > testEpsilon {
		t.Errorf("NaN angle: expected hit at 10, got hit=%v distance=%.2f", hit.Hit, hit.Distance)
	}
}

func TestCastThroughSharedCornerDoesNotLeak(t *testing.T) {
	// Two tiles touching at a corner; the diagonal passes exactly through it.
	grid := NewGrid([]Rect{
		{X: 32, Y: 0, W: 32, H: 32},
		{X: 0, Y: 32, W: 32, H: 32},
	}, 32, 1)

	hit := grid.Cast(Point{0, 0}, math.Pi/4, 500)
	if !hit.Hit {
		t.Fatalf("Expected the diagonal to stop at the shared corner")
	}
	if math.Abs(hit.Distance-math.Hypot(32, 32)) > testEpsilon {
		t.Errorf("Expected distance %.4f, got %.4f", math.Hypot(32, 32), hit.Distance)
	}
}

func TestCastOnEmptyGrid(t *testing.T) {
	var nilGrid *Grid
	if hit := nilGrid.Cast(Point{1, 1}, 1, 50); hit.Hit || hit.Distance != 50 {
		t.Errorf("Nil grid: expected miss at 50, got hit=%v distance=%.2f", hit.Hit, hit.Distance)
	}

	empty := NewGrid(nil, 32, 1)
	if hit := empty.Cast(Point{1, 1}, 1, 50); hit.Hit || hit.Distance != 50 {
		t.Errorf("Empty grid: expected miss at 50, got hit=%v distance=%.2f", hit.Hit, hit.Distance)
	}
}

func TestCastMatchesBruteForce(t *testing.T) {
	var rects []Rect
	for i := 0; i < 12; i++ {
		for j := 0; j < 12; j++ {
			if (i*7+j*3)%5 == 0 {
				rects = append(rects, Rect{X: float64(i * 32), Y: float64(j * 32), W: 32, H: 32})
			}
		}
	}
	grid := NewGrid(rects, 32, 1)
	origin := Point{X: 208, Y: 176}

	for i := 0; i < 360; i++ {
		angle := float64(i) * math.Pi / 180
		got := grid.Cast(origin, angle, 600)

		want := 600.0
		dx, dy := math.Cos(angle), math.Sin(angle)
		for _, seg := range grid.Segments() {
			if d, ok := raySegmentIntersection(origin, dx, dy, seg); ok && d < want {
				want = d
			}
		}
		if math.Abs(got.Distance-want) > testEpsilon {
			t.Fatalf("Angle %d: expected %.6f, got %.6f", i, want, got.Distance)
		}
	}
}

func TestCastTo(t *testing.T) {
	grid := NewGrid([]Rect{{X: 40, Y: 0, W: 20, H: 200}}, 20, 1)

	if clear, _ := grid.CastTo(Point{0, 100}, Point{30, 100}); !clear {
		t.Error("Expected clear line of sight in front of the wall")
	}
	if clear, _ := grid.CastTo(Point{0, 100}, Point{200, 100}); clear {
		t.Error("Expected line of sight blocked by the wall")
	}
	if clear, _ := grid.CastTo(Point{5, 5}, Point{5, 5}); !clear {
		t.Error("Zero-length line of sight should be clear")
	}
}

func TestFarApartOccludersKeepIndexBounded(t *testing.T) {
	grid := NewGrid([]Rect{
		{X: 0, Y: 0, W: 32, H: 32},
		{X: 1e9, Y: 1e9, W: 32, H: 32},
	}, 32, 1)

	if len(grid.buckets) > maxBuckets {
		t.Fatalf("Expected at most %d buckets, got %d", maxBuckets, len(grid.buckets))
	}

	tests := []struct {
		origin Point
		want   float64
	}{
		{Point{-100, 16}, 100},
		{Point{1e9 - 100, 1e9 + 16}, 100},
	}
	for _, tt := range tests {
		res := grid.Cast(tt.origin, 0, 1000)
		if !res.Hit || math.Abs(res.Distance-tt.want) > testEpsilon {
			t.Errorf("From %+v: expected hit at %.1f, got hit=%v distance %.6f", tt.origin, tt.want, res.Hit, res.Distance)
		}
	}
}

func TestMergeColinearSegments(t *testing.T) {
	// A row of three tiles becomes one top and one bottom edge.
	grid := NewGrid([]Rect{
		{X: 0, Y: 0, W: 32, H: 32},
		{X: 32, Y: 0, W: 32, H: 32},
		{X: 64, Y: 0, W: 32, H: 32},
	}, 32, 1)

	var tops []Segment
	for _, seg := range grid.Segments() {
		if seg.EdgeType == EdgeTop {
			tops = append(tops, seg)
		}
	}
	if len(tops) != 1 {
		t.Fatalf("Expected 1 merged top edge, got %d", len(tops))
	}
	if tops[0].A.X != 0 || tops[0].B.X != 96 {
		t.Errorf("Expected top edge from x=0 to x=96, got %.0f to %.0f", tops[0].A.X, tops[0].B.X)
	}
	// 1 top + 1 bottom + 3 lefts + 3 rights
	if len(grid.Segments()) != 8 {
		t.Errorf("Expected 8 segments, got %d", len(grid.Segments()))
	}
}

func TestReplaceBumpsVersion(t *testing.T) {
	var g *Grid
	first := g.Replace([]Rect{{X: 0, Y: 0, W: 10, H: 10}}, 10)
	if first.Version() != 1 {
		t.Fatalf("Expected version 1, got %d", first.Version())
	}
	second := first.Replace(nil, 10)
	if second.Version() != 2 {
		t.Errorf("Expected version 2, got %d", second.Version())
	}
	if len(first.Rects()) != 1 {
		t.Errorf("Replace must not mutate the previous grid, got %d rects", len(first.Rects()))
	}
}

func TestNewGridSkipsEmptyRects(t *testing.T) {
	grid := NewGrid([]Rect{{X: 0, Y: 0, W: 0, H: 10}, {X: 0, Y: 0, W: 10, H: 10}, {X: math.NaN(), W: 5, H: 5}}, 10, 1)
	if len(grid.Rects()) != 1 {
		t.Errorf("Expected 1 rect, got %d", len(grid.Rects()))
	}
}

func TestIsFacingPoint(t *testing.T) {
	grid := NewGrid([]Rect{{X: 10, Y: 10, W: 10, H: 10}}, 10, 1)
	above := Point{15, 0}
	for _, seg := range grid.Segments() {
		want := seg.EdgeType == EdgeTop
		if got := IsFacingPoint(seg, above); got != want {
			t.Errorf("Edge %s: expected facing=%v, got %v", seg.EdgeType, want, got)
		}
	}
}

func TestAngleHelpers(t *testing.T) {
	if got := NormalizeAngle(-math.Pi / 2); math.Abs(got-3*math.Pi/2) > testEpsilon {
		t.Errorf("Expected 3π/2, got %.6f", got)
	}
	if got := AngleDiff(0.1, 2*math.Pi-0.1); math.Abs(got+0.2) > testEpsilon {
		t.Errorf("Expected -0.2, got %.6f", got)
	}
}

func BenchmarkCast(b *testing.B) {
	var rects []Rect
	for i := 0; i < 40; i++ {
		for j := 0; j < 40; j++ {
			if (i+j)%7 == 0 {
				rects = append(rects, Rect{X: float64(i * 32), Y: float64(j * 32), W: 32, H: 32})
			}
		}
	}
	grid := NewGrid(rects, 32, 1)
	origin := Point{X: 640, Y: 640}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		grid.Cast(origin, float64(i%360)*math.Pi/180, 800)
	}
}
