package lighting

import (
	"math"

	"github.com/tanema/gween/ease"
)

// MinRays is the smallest fan that still encloses a visible region.
const MinRays = 3

// MinRadius is what non-positive or non-finite radii are clamped to.
const MinRadius = 1.0

// Kind tags the geometry family of a Shape.
type Kind uint8

const (
	KindSector Kind = iota + 1
	KindCircle
)

func (k Kind) String() string {
	switch k {
	case KindSector:
		return "sector"
	case KindCircle:
		return "circle"
	}
	return "unknown"
}

// Shape describes how a light samples its ray fan. Implementations must be
// deterministic: the same facing and ray count always yield the same angles.
type Shape interface {
	// Kind reports the geometry family, used for cache keys.
	Kind() Kind
	// Reach is the ray length.
	Reach() float64
	// Spread is the half-angle of the fan in radians (π for a full circle).
	Spread() float64
	// Angles appends the sample angles for a fan facing the given direction.
	Angles(dst []float64, facing float64, rays int) []float64
	// Closed reports whether the fan forms a loop without the anchor as a vertex.
	Closed() bool
	// Conform copies the geometry this shape takes from a preset.
	Conform(p Preset)
}

// Expiring is implemented by shapes with their own lifetime.
type Expiring interface {
	Advance(dt float64)
	Active() bool
	// Fade scales the light's intensity, 1 when fresh and 0 when expired.
	Fade() float64
}

// Sector is a cone of light centred on the light's facing.
type Sector struct {
	Radius    float64
	HalfAngle float64 // radians; the cone spans twice this
}

func (s *Sector) Kind() Kind      { return KindSector }
func (s *Sector) Reach() float64  { return clampRadius(s.Radius) }
func (s *Sector) Spread() float64 { return clampHalfAngle(s.HalfAngle) }
func (s *Sector) Closed() bool    { return false }

// Angles samples rays evenly from facing-half to facing+half, both edges included.
func (s *Sector) Angles(dst []float64, facing float64, rays int) []float64 {
	if !finite(facing) {
		facing = 0
	}
	rays = clampRays(rays)
	half := s.Spread()
	start := facing - half
	step := 2 * half / float64(rays-1)
	for i := 0; i < rays-1; i++ {
		dst = append(dst, start+step*float64(i))
	}
	return append(dst, facing+half)
}

func (s *Sector) Conform(p Preset) {
	s.Radius = p.SectorRadius
	s.HalfAngle = p.HalfAngle()
}

// Circle lights everything around the anchor out to Radius.
type Circle struct {
	Radius float64
}

func (c *Circle) Kind() Kind      { return KindCircle }
func (c *Circle) Reach() float64  { return clampRadius(c.Radius) }
func (c *Circle) Spread() float64 { return math.Pi }
func (c *Circle) Closed() bool    { return true }

// Angles samples rays evenly over a full turn starting at angle 0; facing is ignored.
func (c *Circle) Angles(dst []float64, _ float64, rays int) []float64 {
	rays = clampRays(rays)
	step := 2 * math.Pi / float64(rays)
	for i := 0; i < rays; i++ {
		dst = append(dst, step*float64(i))
	}
	return dst
}

func (c *Circle) Conform(p Preset) {
	c.Radius = p.CircleRadius
}

// expirySlack absorbs rounding in accumulated frame steps.
const expirySlack = 1e-9

// TimerState is the lifecycle of a Temporary shape.
type TimerState uint8

const (
	TimerExpired TimerState = iota
	TimerActive
	TimerCountingDown
)

func (s TimerState) String() string {
	switch s {
	case TimerActive:
		return "active"
	case TimerCountingDown:
		return "counting down"
	}
	return "expired"
}

// Temporary wraps another shape with a countdown. It starts active, counts
// down as it is advanced and expires once the advanced time reaches the
// duration.
// Trigger re-arms it so an attack flash can be reused.
type Temporary struct {
	Shape    Shape
	Duration float64        // seconds
	Ease     ease.TweenFunc // intensity falloff over the countdown; nil means ease.InQuad

	elapsed float64
	state   TimerState
}

// NewTemporary wraps a shape with a countdown that is already running.
func NewTemporary(inner Shape, duration float64) *Temporary {
	t := &Temporary{Shape: inner, Duration: duration}
	t.Trigger()
	return t
}

// Trigger restarts the countdown from the full duration.
func (t *Temporary) Trigger() {
	t.elapsed = 0
	t.state = TimerActive
}

// Advance counts down by dt seconds.
func (t *Temporary) Advance(dt float64) {
	if t.state == TimerExpired {
		return
	}
	if !(dt > 0) {
		return
	}
	t.elapsed += dt
	// Frame steps like 1/60 do not sum exactly to the duration.
	if t.elapsed >= t.Duration-expirySlack {
		t.elapsed = t.Duration
		t.state = TimerExpired
		return
	}
	t.state = TimerCountingDown
}

// Active reports whether the countdown is still running.
func (t *Temporary) Active() bool { return t.state != TimerExpired }

// State returns the current lifecycle state.
func (t *Temporary) State() TimerState { return t.state }

// Remaining returns the seconds left on the countdown.
func (t *Temporary) Remaining() float64 { return math.Max(0, t.Duration-t.elapsed) }

func (t *Temporary) Fade() float64 {
	if t.state == TimerExpired {
		return 0
	}
	if !(t.Duration > 0) {
		return 1
	}
	fn := t.Ease
	if fn == nil {
		fn = ease.InQuad
	}
	v := float64(fn(float32(t.elapsed), 1, -1, float32(t.Duration)))
	return math.Max(0, math.Min(1, v))
}

func (t *Temporary) Kind() Kind      { return t.Shape.Kind() }
func (t *Temporary) Reach() float64  { return t.Shape.Reach() }
func (t *Temporary) Spread() float64 { return t.Shape.Spread() }
func (t *Temporary) Closed() bool    { return t.Shape.Closed() }
func (t *Temporary) Conform(p Preset) {
	t.Shape.Conform(p)
}

func (t *Temporary) Angles(dst []float64, facing float64, rays int) []float64 {
	return t.Shape.Angles(dst, facing, rays)
}

func clampRays(rays int) int {
	if rays < MinRays {
		return MinRays
	}
	return rays
}

func clampRadius(r float64) float64 {
	if !(r > 0) || math.IsInf(r, 1) {
		return MinRadius
	}
	return r
}

func clampHalfAngle(a float64) float64 {
	switch {
	case !(a > 0):
		return 0
	case a > math.Pi:
		return math.Pi
	}
	return a
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
