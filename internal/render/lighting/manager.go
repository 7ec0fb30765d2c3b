package lighting

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"chosenoffset.com/lightcone/internal/core/shadows"
	"chosenoffset.com/lightcone/internal/render"
)

// ErrInvalidLight is returned when registering a light without an ID or shape.
var ErrInvalidLight = errors.New("invalid light")

// Stats is a snapshot of the lighting performance counters.
type Stats struct {
	Cache        CacheStats
	RaysCast     uint64
	TraceTime    time.Duration
	Frames       uint64
	Lights       int           // registered
	ActiveLights int           // carved in the last frame
	ComposeTime  time.Duration // last frame
	GridVersion  uint64
	Preset       string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithRenderer sets the backend used to allocate the overlay image drawn by Render.
func WithRenderer(r render.Renderer) Option {
	return func(m *Manager) { m.renderer = r }
}

// Manager owns the lights, presets, occluder grid, visibility cache and the
// dark overlay, and drives them through one update/render cycle per frame.
// It is not safe for concurrent use.
type Manager struct {
	log      logrus.FieldLogger
	renderer render.Renderer

	presets     map[string]Preset
	presetOrder []string
	preset      Preset

	grid    *shadows.Grid
	tracer  *Tracer
	cache   *Cache
	overlay *Overlay

	lights map[string]*Light
	order  []string // registration order, so compositing is deterministic

	scratch []shadows.Point

	// presentation
	overlayImg       render.Image
	rgba             []byte
	warnedNoRenderer bool

	frames      uint64
	active      int
	composeTime time.Duration
	composed    bool
}

// NewManager builds a manager for a w×h viewport. A nil config uses
// DefaultConfig. The config is validated before anything is allocated.
func NewManager(cfg *Config, w, h int, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		log:    logrus.StandardLogger().WithField("component", "lighting"),
		lights: make(map[string]*Light),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.setPresets(cfg.Presets)
	name := cfg.DefaultPreset
	if name == "" {
		name = m.presetOrder[0]
	}
	m.preset = m.presets[name]

	m.tracer = &Tracer{Rays: m.preset.RayCount, Workers: cfg.Workers}
	m.cache = NewCache(cfg.Cache, m.tracer)
	m.overlay = NewOverlay(w, h, uint8(m.preset.DarknessAlpha))
	m.overlay.SetSoftness(m.preset.EdgeSoftness)

	m.log.WithFields(logrus.Fields{
		"preset":  m.preset.Name,
		"presets": len(m.presetOrder),
		"cache":   cfg.Cache.Enabled,
		"workers": cfg.Workers,
	}).Info("Lighting manager ready")
	return m, nil
}

// Register adds a light. Unless the light is Custom its geometry is conformed
// to the active preset. Registering an ID twice replaces the earlier light.
func (m *Manager) Register(l *Light) error {
	if l == nil || l.ID == "" || l.Shape == nil {
		return fmt.Errorf("%w: a light needs an id and a shape", ErrInvalidLight)
	}
	if _, exists := m.lights[l.ID]; exists {
		m.log.WithField("light", l.ID).Warn("Light registered twice, replacing")
		m.cache.Forget(l.ID)
	} else {
		m.order = append(m.order, l.ID)
	}
	if !l.Custom {
		l.Shape.Conform(m.preset)
	}
	m.lights[l.ID] = l
	m.log.WithFields(logrus.Fields{"light": l.ID, "shape": l.Shape.Kind()}).Debug("Light registered")
	return nil
}

// Unregister removes a light. It reports false for unknown IDs.
func (m *Manager) Unregister(id string) bool {
	if _, ok := m.lights[id]; !ok {
		return false
	}
	delete(m.lights, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.cache.Forget(id)
	m.log.WithField("light", id).Debug("Light unregistered")
	return true
}

// Light returns a registered light, or nil.
func (m *Manager) Light(id string) *Light {
	return m.lights[id]
}

// UpdateAnchor moves a light to a world position and facing. Unknown IDs are
// ignored and report false.
func (m *Manager) UpdateAnchor(id string, x, y, facing float64) bool {
	l, ok := m.lights[id]
	if !ok {
		return false
	}
	l.X, l.Y, l.Facing = x, y, facing
	return true
}

// Trigger re-arms a temporary light. It reports false if the light is unknown
// or has no countdown.
func (m *Manager) Trigger(id string) bool {
	l, ok := m.lights[id]
	if !ok {
		return false
	}
	t, ok := l.Shape.(interface{ Trigger() })
	if !ok {
		return false
	}
	t.Trigger()
	return true
}

// Update advances every countdown by dt seconds. Expired lights stay
// registered and are skipped by Compose until triggered again.
func (m *Manager) Update(dt float64) {
	for _, id := range m.order {
		if exp, ok := m.lights[id].Shape.(Expiring); ok {
			exp.Advance(dt)
		}
	}
}

// Compose rebuilds the dark overlay for a camera at (cameraX, cameraY) in
// world pixels and returns it. The image is owned by the manager and stays
// valid until the next Compose.
func (m *Manager) Compose(cameraX, cameraY float64) *image.Alpha {
	start := time.Now()
	if !finite(cameraX) {
		cameraX = 0
	}
	if !finite(cameraY) {
		cameraY = 0
	}

	m.cache.Tick()
	m.overlay.BeginFrame()
	m.active = 0
	for _, id := range m.order {
		l := m.lights[id]
		if !l.Active() {
			continue
		}
		intensity := float64(m.preset.LightIntensity) * l.Strength()
		if !(intensity > 0) {
			continue
		}
		poly := m.cache.GetOrCompute(l, m.grid)
		if poly.Empty() {
			continue
		}
		pts := m.toScreen(poly, l, cameraX, cameraY)
		if poly.Closed {
			m.overlay.Carve(pts, intensity)
		} else {
			m.overlay.CarveFan(pts, intensity)
		}
		m.active++
	}
	img := m.overlay.FinishFrame()

	m.frames++
	m.composed = true
	m.composeTime = time.Since(start)
	return img
}

// toScreen moves a polygon traced at poly.Origin onto the light's current
// anchor and into screen space.
func (m *Manager) toScreen(poly Polygon, l *Light, cameraX, cameraY float64) []shadows.Point {
	dx := l.X - poly.Origin.X - cameraX
	dy := l.Y - poly.Origin.Y - cameraY
	m.scratch = m.scratch[:0]
	for _, p := range poly.Points {
		m.scratch = append(m.scratch, shadows.Point{X: p.X + dx, Y: p.Y + dy})
	}
	return m.scratch
}

// Render composes the overlay for the camera and draws it over screen. The
// viewport follows the screen size. Without a renderer it only composes.
func (m *Manager) Render(screen render.Image, cameraX, cameraY float64) {
	if screen == nil {
		return
	}
	w, h := screen.Size()
	m.Resize(w, h)
	alpha := m.Compose(cameraX, cameraY)

	if m.renderer == nil {
		if !m.warnedNoRenderer {
			m.log.Warn("Render called without a renderer, overlay not drawn")
			m.warnedNoRenderer = true
		}
		return
	}
	if m.overlayImg == nil {
		m.overlayImg = m.renderer.NewImage(w, h)
	}
	m.rgba = tint(m.rgba, alpha, uint8(m.preset.DarknessAlpha), m.preset.LightColor)
	m.overlayImg.WritePixels(m.rgba)
	screen.DrawImage(m.overlayImg, nil)
}

// tint converts the darkness buffer to premultiplied RGBA. Full darkness is
// black and partially lit pixels shade toward the light colour.
func tint(dst []byte, alpha *image.Alpha, darkness uint8, c HexColor) []byte {
	n := len(alpha.Pix) * 4
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]

	for i, a := range alpha.Pix {
		o := i * 4
		if a == 0 || darkness == 0 {
			dst[o], dst[o+1], dst[o+2], dst[o+3] = 0, 0, 0, a
			continue
		}
		r, g, b := tintPixel(a, darkness, c)
		dst[o], dst[o+1], dst[o+2], dst[o+3] = uint8(r), uint8(g), uint8(b), a
	}
	return dst
}

// tintPixel returns the premultiplied colour of one overlay pixel.
func tintPixel(a, darkness uint8, c HexColor) (r, g, b float64) {
	if a == 0 || darkness == 0 {
		return 0, 0, 0
	}
	warm := 1 - math.Min(1, float64(a)/float64(darkness))
	scale := warm * float64(a) / 255
	return float64(c.R) * scale, float64(c.G) * scale, float64(c.B) * scale
}

// Shade blends an overlay pixel of alpha a over base, matching what Render
// produces on screen. Backends without an image pipeline use it per cell.
func Shade(base color.NRGBA, a, darkness uint8, c HexColor) color.NRGBA {
	r, g, b := tintPixel(a, darkness, c)
	keep := 1 - float64(a)/255
	return color.NRGBA{
		R: uint8(math.Min(255, float64(base.R)*keep+r)),
		G: uint8(math.Min(255, float64(base.G)*keep+g)),
		B: uint8(math.Min(255, float64(base.B)*keep+b)),
		A: 255,
	}
}

// Resize changes the viewport size, reallocating the overlay only when it differs.
func (m *Manager) Resize(w, h int) {
	if !m.overlay.Resize(w, h) {
		return
	}
	m.composed = false
	if m.overlayImg != nil {
		m.overlayImg.Dispose()
		m.overlayImg = nil
	}
	m.log.WithFields(logrus.Fields{"width": w, "height": h}).Debug("Overlay resized")
}

// Size returns the viewport size.
func (m *Manager) Size() (int, int) { return m.overlay.Size() }

// LoadPresets validates and replaces the preset set. The active preset is kept
// if a preset with the same name is still present, otherwise the first one is
// used. Nothing changes if validation fails.
func (m *Manager) LoadPresets(presets []Preset) error {
	if err := ValidatePresets(presets); err != nil {
		return err
	}
	m.setPresets(presets)
	next, ok := m.presets[m.preset.Name]
	if !ok {
		next = m.presets[m.presetOrder[0]]
	}
	m.applyPreset(next)
	return nil
}

func (m *Manager) setPresets(presets []Preset) {
	m.presets = make(map[string]Preset, len(presets))
	m.presetOrder = m.presetOrder[:0]
	for _, p := range presets {
		m.presets[p.Name] = p
		m.presetOrder = append(m.presetOrder, p.Name)
	}
}

// UsePreset switches the active preset. The grid and cache are kept; cached
// polygons are dropped only if the preset changes light geometry.
func (m *Manager) UsePreset(name string) error {
	p, ok := m.presets[name]
	if !ok {
		return fmt.Errorf("use preset %q: %w", name, ErrUnknownPreset)
	}
	m.applyPreset(p)
	return nil
}

// NextPreset switches to the preset after the active one, wrapping around,
// and returns its name.
func (m *Manager) NextPreset() string {
	next := m.presetOrder[0]
	for i, name := range m.presetOrder {
		if name == m.preset.Name {
			next = m.presetOrder[(i+1)%len(m.presetOrder)]
			break
		}
	}
	m.applyPreset(m.presets[next])
	return next
}

func (m *Manager) applyPreset(p Preset) {
	geometry := !p.sameGeometry(m.preset)
	m.preset = p
	m.overlay.SetDarkness(uint8(p.DarknessAlpha))
	m.overlay.SetSoftness(p.EdgeSoftness)
	if geometry {
		m.tracer.Rays = p.RayCount
		for _, id := range m.order {
			if l := m.lights[id]; !l.Custom {
				l.Shape.Conform(p)
			}
		}
		m.cache.Invalidate()
	}
	m.log.WithFields(logrus.Fields{"preset": p.Name, "geometry_changed": geometry}).Info("Lighting preset applied")
}

// Preset returns the active preset.
func (m *Manager) Preset() Preset { return m.preset }

// Presets returns the preset names in load order.
func (m *Manager) Presets() []string {
	return append([]string(nil), m.presetOrder...)
}

// SetOccluders replaces the occluder grid for a new level. Cached polygons
// from the previous grid stop matching because the version changes.
func (m *Manager) SetOccluders(rects []shadows.Rect, tileSize float64) {
	m.grid = m.grid.Replace(rects, tileSize)
	m.log.WithFields(logrus.Fields{
		"rects":    len(m.grid.Rects()),
		"segments": len(m.grid.Segments()),
		"version":  m.grid.Version(),
	}).Info("Occluder grid rebuilt")
}

// Grid returns the current occluder grid, nil before the first SetOccluders.
func (m *Manager) Grid() *shadows.Grid { return m.grid }

// Cache exposes the visibility cache for toggling and inspection.
func (m *Manager) Cache() *Cache { return m.cache }

// IsLit reports whether the world point was lit in the last composed frame
// for a camera at (cameraX, cameraY). Points off screen are never lit.
func (m *Manager) IsLit(worldX, worldY, cameraX, cameraY float64) bool {
	if !m.composed {
		return false
	}
	sx, sy := worldX-cameraX, worldY-cameraY
	if !finite(sx) || !finite(sy) {
		return false
	}
	img := m.overlay.img
	p := image.Point{X: int(math.Floor(sx)), Y: int(math.Floor(sy))}
	if !p.In(img.Rect) {
		return false
	}
	return img.AlphaAt(p.X, p.Y).A < m.overlay.Darkness()
}

// Stats returns the merged cache, tracer and frame counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Cache:        m.cache.Stats(),
		RaysCast:     m.tracer.RaysCast(),
		TraceTime:    m.tracer.Elapsed(),
		Frames:       m.frames,
		Lights:       len(m.lights),
		ActiveLights: m.active,
		ComposeTime:  m.composeTime,
		GridVersion:  m.grid.Version(),
		Preset:       m.preset.Name,
	}
}
