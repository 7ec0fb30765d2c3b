package lighting

import "chosenoffset.com/lightcone/internal/core/shadows"

// Light is a registered light source. Its anchor and facing are in world
// space and are updated by whatever entity owns the light.
type Light struct {
	ID     string
	Shape  Shape
	X, Y   float64 // anchor, world pixels
	Facing float64 // radians, world space

	// Intensity scales the preset intensity (0..1).
	Intensity float64
	Enabled   bool
	// Custom lights keep their own geometry when the preset changes.
	Custom bool
}

// NewSectorLight creates an enabled cone light.
func NewSectorLight(id string, radius, halfAngle float64) *Light {
	return &Light{
		ID:        id,
		Shape:     &Sector{Radius: radius, HalfAngle: halfAngle},
		Intensity: 1,
		Enabled:   true,
	}
}

// NewCircleLight creates an enabled omnidirectional light.
func NewCircleLight(id string, radius float64) *Light {
	return &Light{
		ID:        id,
		Shape:     &Circle{Radius: radius},
		Intensity: 1,
		Enabled:   true,
	}
}

// NewFlashLight wraps inner in a running countdown of duration seconds.
func NewFlashLight(id string, inner Shape, duration float64) *Light {
	return &Light{
		ID:        id,
		Shape:     NewTemporary(inner, duration),
		Intensity: 1,
		Enabled:   true,
	}
}

// Anchor returns the light position.
func (l *Light) Anchor() shadows.Point {
	return shadows.Point{X: l.X, Y: l.Y}
}

// Active reports whether the light takes part in compositing.
func (l *Light) Active() bool {
	if l == nil || !l.Enabled || l.Shape == nil {
		return false
	}
	if exp, ok := l.Shape.(Expiring); ok {
		return exp.Active()
	}
	return true
}

// Strength returns the intensity scale including any fade, clamped to 0..1.
func (l *Light) Strength() float64 {
	s := l.Intensity
	if exp, ok := l.Shape.(Expiring); ok {
		s *= exp.Fade()
	}
	switch {
	case !(s > 0):
		return 0
	case s > 1:
		return 1
	}
	return s
}

// Polygon is a traced visibility fan. Origin is the anchor the rays were
// cast from; for open fans it is also the first point.
type Polygon struct {
	Origin shadows.Point
	Points []shadows.Point
	Closed bool
}

// Empty reports whether the polygon encloses no area.
func (p Polygon) Empty() bool {
	return len(p.Points) < 3
}
