package lighting

import (
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"chosenoffset.com/lightcone/internal/core/shadows"
)

// Overlay is the full-viewport darkness buffer. It is allocated once per
// viewport size and only changes through BeginFrame, Carve and FinishFrame.
// Alpha 0 is fully lit, the darkness level is fully dark.
type Overlay struct {
	img      *image.Alpha
	coverage *image.Alpha // per-carve polygon coverage scratch
	raster   *vector.Rasterizer

	darkness uint8
	softness float64 // edge band in pixels, 0 for hard edges
	framing  bool

	edges []softEdge // soft band candidates, reused per carve
	near  []int      // edges within the band of the current row
}

// softEdge is a polygon edge with its bounds grown by the softness band.
type softEdge struct {
	a, b                   shadows.Point
	minX, maxX, minY, maxY float64
}

// NewOverlay allocates a w×h darkness buffer.
func NewOverlay(w, h int, darkness uint8) *Overlay {
	o := &Overlay{
		raster:   vector.NewRasterizer(1, 1),
		darkness: darkness,
	}
	o.Resize(w, h)
	return o
}

// Resize reallocates the buffer if the viewport size changed and reports
// whether it did. Negative sizes are treated as zero.
func (o *Overlay) Resize(w, h int) bool {
	w, h = max(w, 0), max(h, 0)
	if o.img != nil && o.img.Rect.Dx() == w && o.img.Rect.Dy() == h {
		return false
	}
	o.img = image.NewAlpha(image.Rect(0, 0, w, h))
	o.coverage = image.NewAlpha(image.Rect(0, 0, w, h))
	o.framing = false
	return true
}

// Size returns the buffer dimensions.
func (o *Overlay) Size() (int, int) {
	return o.img.Rect.Dx(), o.img.Rect.Dy()
}

// Darkness returns the alpha every frame starts from.
func (o *Overlay) Darkness() uint8 { return o.darkness }

// SetDarkness changes the alpha used from the next BeginFrame.
func (o *Overlay) SetDarkness(a uint8) { o.darkness = a }

// Softness returns the edge band width in pixels.
func (o *Overlay) Softness() float64 { return o.softness }

// SetSoftness sets the width of the band inside a polygon edge over which the
// alpha ramps from darkness to lit. Negative or NaN values disable softening.
func (o *Overlay) SetSoftness(px float64) {
	if !(px > 0) {
		px = 0
	}
	o.softness = px
}

// BeginFrame resets the whole buffer to the darkness level.
func (o *Overlay) BeginFrame() {
	pix := o.img.Pix
	if len(pix) > 0 {
		pix[0] = o.darkness
		for filled := 1; filled < len(pix); filled *= 2 {
			copy(pix[filled:], pix[:filled])
		}
	}
	o.framing = true
}

// Carve lights the screen-space polygon. Covered pixels take
// max(0, darkness-intensity) scaled by coverage, and a pixel already lit more
// brightly by another carve keeps the brighter value. Calls outside
// BeginFrame/FinishFrame are ignored.
func (o *Overlay) Carve(points []shadows.Point, intensity float64) {
	o.carve(points, intensity, false)
}

// CarveFan is Carve for an open fan whose first point is the light anchor.
// The two edges meeting at the anchor stay hard so the soft band only
// follows the lit boundary.
func (o *Overlay) CarveFan(points []shadows.Point, intensity float64) {
	o.carve(points, intensity, true)
}

func (o *Overlay) carve(points []shadows.Point, intensity float64, fan bool) {
	if !o.framing || len(points) < 3 || !(intensity > 0) {
		return
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		if !finite(p.X) || !finite(p.Y) {
			return
		}
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}

	r := image.Rect(
		int(math.Floor(math.Max(minX, -1))), int(math.Floor(math.Max(minY, -1))),
		int(math.Ceil(math.Min(maxX, float64(o.img.Rect.Max.X+1)))), int(math.Ceil(math.Min(maxY, float64(o.img.Rect.Max.Y+1)))),
	).Intersect(o.img.Rect)
	if r.Empty() {
		return
	}

	ox, oy := float64(r.Min.X), float64(r.Min.Y)
	o.raster.Reset(r.Dx(), r.Dy())
	o.raster.DrawOp = draw.Src
	o.raster.MoveTo(float32(points[0].X-ox), float32(points[0].Y-oy))
	for _, p := range points[1:] {
		o.raster.LineTo(float32(p.X-ox), float32(p.Y-oy))
	}
	o.raster.ClosePath()
	o.raster.Draw(o.coverage, r, image.Opaque, image.Point{})

	soft := o.softness
	if soft > 0 {
		o.collectEdges(points, fan)
	}

	dark := float64(o.darkness)
	lit := math.Max(0, dark-intensity)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		py := float64(y) + 0.5
		if soft > 0 {
			o.rowEdges(py)
		}
		row := o.img.PixOffset(r.Min.X, y)
		crow := o.coverage.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			i := row + (x - r.Min.X)
			cov := o.coverage.Pix[crow+(x-r.Min.X)]
			if cov == 0 {
				continue
			}
			c := float64(cov) / 255
			if soft > 0 && len(o.near) > 0 {
				c *= o.bandDistance(float64(x)+0.5, py) / soft
			}
			a := uint8(math.Round(dark - (dark-lit)*c))
			if a < o.img.Pix[i] {
				o.img.Pix[i] = a
			}
		}
	}
}

// collectEdges gathers the closed polygon's edges for the soft band. A fan
// leaves out the two edges touching its anchor, points[0].
func (o *Overlay) collectEdges(points []shadows.Point, fan bool) {
	s := o.softness
	o.edges = o.edges[:0]
	j := len(points) - 1
	for i := range points {
		a, b := points[j], points[i]
		j = i
		if fan && (i == 0 || i == 1) {
			continue
		}
		o.edges = append(o.edges, softEdge{
			a: a, b: b,
			minX: math.Min(a.X, b.X) - s, maxX: math.Max(a.X, b.X) + s,
			minY: math.Min(a.Y, b.Y) - s, maxY: math.Max(a.Y, b.Y) + s,
		})
	}
}

// rowEdges keeps the edges whose band reaches the row at py.
func (o *Overlay) rowEdges(py float64) {
	o.near = o.near[:0]
	for i, e := range o.edges {
		if py >= e.minY && py <= e.maxY {
			o.near = append(o.near, i)
		}
	}
}

// bandDistance returns the distance to the nearest row edge, capped at the
// softness width.
func (o *Overlay) bandDistance(px, py float64) float64 {
	best := o.softness
	for _, i := range o.near {
		e := &o.edges[i]
		if px < e.minX || px > e.maxX {
			continue
		}
		best = math.Min(best, segmentDistance(e.a, e.b, px, py))
	}
	return best
}

// FinishFrame ends the frame and returns the composited buffer. The image is
// owned by the overlay and must not be modified.
func (o *Overlay) FinishFrame() *image.Alpha {
	o.framing = false
	return o.img
}

func segmentDistance(a, b shadows.Point, px, py float64) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	t := 0.0
	if lenSq > 0 {
		t = math.Max(0, math.Min(1, ((px-a.X)*dx+(py-a.Y)*dy)/lenSq))
	}
	return math.Hypot(px-(a.X+t*dx), py-(a.Y+t*dy))
}
