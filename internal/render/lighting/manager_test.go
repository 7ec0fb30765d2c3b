package lighting

import (
	"errors"
	"image"
	"image/color"
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"

	"chosenoffset.com/lightcone/internal/core/shadows"
	"chosenoffset.com/lightcone/internal/render"
)

func testPreset() Preset {
	return Preset{
		Name:               "test",
		SectorRadius:       1000,
		SectorAngleDegrees: 90,
		CircleRadius:       100,
		LightColor:         HexColor{R: 255, G: 255, B: 255, A: 255},
		DarknessAlpha:      200,
		LightIntensity:     150,
		RayCount:           91,
	}
}

func testConfig() *Config {
	return &Config{
		DefaultPreset: "test",
		Presets:       []Preset{testPreset()},
		Cache:         CacheConfig{Enabled: true},
		Workers:       1,
	}
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestManager(t *testing.T, w, h int, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	m, err := NewManager(testConfig(), w, h, opts...)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return m
}

type fakeImage struct {
	w, h   int
	pix    []byte
	drawn  []render.Image
	freed  bool
	writes int
}

func (f *fakeImage) Bounds() image.Rectangle { return image.Rect(0, 0, f.w, f.h) }

func (f *fakeImage) Size() (int, int) { return f.w, f.h }

func (f *fakeImage) Fill(color.Color) {}

func (f *fakeImage) Clear() {}

func (f *fakeImage) Dispose() { f.freed = true }

func (f *fakeImage) WritePixels(pix []byte) {
	f.pix = append(f.pix[:0], pix...)
	f.writes++
}

func (f *fakeImage) DrawImage(src render.Image, _ *render.DrawImageOptions) {
	f.drawn = append(f.drawn, src)
}

type fakeRenderer struct {
	images []*fakeImage
}

func (r *fakeRenderer) NewImage(w, h int) render.Image {
	img := &fakeImage{w: w, h: h}
	r.images = append(r.images, img)
	return img
}

func (r *fakeRenderer) FillRect(render.Image, float32, float32, float32, float32, color.Color) {}

func (r *fakeRenderer) FillCircle(render.Image, float32, float32, float32, color.Color) {}

func (r *fakeRenderer) StrokeCircle(render.Image, float32, float32, float32, float32, color.Color) {}

func (r *fakeRenderer) StrokeLine(render.Image, float32, float32, float32, float32, float32, color.Color) {}

func (r *fakeRenderer) DrawText(render.Image, string, int, int) {}

func (r *fakeRenderer) MeasureText(s string) (int, int) { return len(s) * 6, 16 }

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Presets[0].DarknessAlpha = 999
	if _, err := NewManager(cfg, 10, 10, WithLogger(quietLogger())); !errors.Is(err, ErrInvalidPreset) {
		t.Errorf("Expected ErrInvalidPreset, got %v", err)
	}
}

func TestTwoCirclesTakeBrighterContribution(t *testing.T) {
	m := newTestManager(t, 300, 200)

	weak := NewCircleLight("weak", 100)
	weak.Intensity = 0.5
	strong := NewCircleLight("strong", 100)
	strong.X = 150
	for _, l := range []*Light{weak, strong} {
		if err := m.Register(l); err != nil {
			t.Fatal(err)
		}
	}

	img := m.Compose(0, 0)

	if got := img.AlphaAt(75, 0).A; got != 50 {
		t.Errorf("Overlap midpoint expected alpha 50 (strong light alone), got %d", got)
	}
	if got := img.AlphaAt(20, 50).A; got != 125 {
		t.Errorf("Weak light only expected alpha 125, got %d", got)
	}
	if got := img.AlphaAt(290, 190).A; got != 200 {
		t.Errorf("Unlit pixel expected alpha 200, got %d", got)
	}
	if m.Stats().ActiveLights != 2 {
		t.Errorf("Expected 2 active lights, got %d", m.Stats().ActiveLights)
	}
}

func TestSectorSpanIgnoresViewportPosition(t *testing.T) {
	m := newTestManager(t, 320, 240)
	m.SetOccluders([]shadows.Rect{{X: 2000, Y: 2000, W: 32, H: 32}}, 32)
	l := NewSectorLight("player", 0, 0)
	if err := m.Register(l); err != nil {
		t.Fatal(err)
	}

	anchors := []shadows.Point{{X: 160, Y: 120}, {X: 1, Y: 1}, {X: 319, Y: 239}, {X: -400, Y: 120}, {X: 900, Y: -700}}
	for _, a := range anchors {
		m.UpdateAnchor("player", a.X, a.Y, 0.4)
		m.Compose(0, 0)

		poly := m.Cache().GetOrCompute(l, m.Grid())
		first, last := poly.Points[1], poly.Points[len(poly.Points)-1]
		start := math.Atan2(first.Y-poly.Origin.Y, first.X-poly.Origin.X)
		end := math.Atan2(last.Y-poly.Origin.Y, last.X-poly.Origin.X)
		if span := shadows.AngleDiff(start, end); math.Abs(span-math.Pi/2) > 1e-9 {
			t.Errorf("Anchor %+v: expected span %.6f, got %.6f", a, math.Pi/2, span)
		}
	}
}

func TestSectorFromOffscreenAnchorLightsViewport(t *testing.T) {
	m := newTestManager(t, 800, 600)
	l := NewSectorLight("player", 0, 0)
	if err := m.Register(l); err != nil {
		t.Fatal(err)
	}
	m.UpdateAnchor("player", -100, 300, 0)

	img := m.Compose(0, 0)
	if got := img.AlphaAt(400, 100).A; got != 50 {
		t.Errorf("Pixel inside the cone expected alpha 50, got %d", got)
	}
	if got := img.AlphaAt(100, 0).A; got != 200 {
		t.Errorf("Pixel outside the cone expected alpha 200, got %d", got)
	}
}

func TestComposeAppliesCameraOffset(t *testing.T) {
	m := newTestManager(t, 200, 200)
	l := NewCircleLight("halo", 0)
	l.X, l.Y = 1050, 1050
	if err := m.Register(l); err != nil {
		t.Fatal(err)
	}

	img := m.Compose(1000, 1000)
	if got := img.AlphaAt(50, 50).A; got != 50 {
		t.Errorf("Expected the halo at screen (50,50), got alpha %d", got)
	}
	if !m.IsLit(1050, 1050, 1000, 1000) {
		t.Error("Expected the anchor to be lit")
	}
	if m.IsLit(1190, 1190, 1000, 1000) {
		t.Error("Expected a point outside the halo to be dark")
	}
	if m.IsLit(0, 0, 1000, 1000) {
		t.Error("Expected off-screen points to report unlit")
	}
}

func TestOccludersCastShadowsInOverlay(t *testing.T) {
	m := newTestManager(t, 400, 200)
	m.SetOccluders([]shadows.Rect{{X: 150, Y: 0, W: 20, H: 200}}, 10)
	l := NewCircleLight("halo", 0)
	l.X, l.Y = 100, 100
	if err := m.Register(l); err != nil {
		t.Fatal(err)
	}
	img := m.Compose(0, 0)
	if got := img.AlphaAt(120, 100).A; got != 50 {
		t.Errorf("Expected the near side lit, got alpha %d", got)
	}
	if got := img.AlphaAt(180, 100).A; got != 200 {
		t.Errorf("Expected the far side of the wall dark, got alpha %d", got)
	}
	if m.Stats().GridVersion != 1 {
		t.Errorf("Expected grid version 1, got %d", m.Stats().GridVersion)
	}
}

func TestTemporaryLightExpiresWithoutUnregistering(t *testing.T) {
	m := newTestManager(t, 100, 100)
	flash := NewFlashLight("flash", &Circle{}, 0.5)
	flash.X, flash.Y = 50, 50
	if err := m.Register(flash); err != nil {
		t.Fatal(err)
	}

	if got := m.Compose(0, 0).AlphaAt(50, 50).A; got != 50 {
		t.Fatalf("Fresh flash expected alpha 50, got %d", got)
	}

	m.Update(0.3)
	if got := m.Compose(0, 0).AlphaAt(50, 50).A; got != 104 {
		t.Errorf("Fading flash expected alpha 104, got %d", got)
	}

	m.Update(0.3)
	if flash.Active() {
		t.Fatal("Expected the flash to be inactive after its countdown")
	}
	if got := m.Compose(0, 0).AlphaAt(50, 50).A; got != 200 {
		t.Errorf("Expired flash should not be composited, got alpha %d", got)
	}
	if m.Light("flash") == nil {
		t.Fatal("Expected the expired flash to stay registered")
	}

	if !m.Trigger("flash") {
		t.Fatal("Expected trigger to succeed")
	}
	if got := m.Compose(0, 0).AlphaAt(50, 50).A; got != 50 {
		t.Errorf("Re-triggered flash expected alpha 50, got %d", got)
	}
}

func TestLightRecoversFromNonFiniteAnchor(t *testing.T) {
	m := newTestManager(t, 100, 100)
	lamp := NewCircleLight("lamp", 50)
	if err := m.Register(lamp); err != nil {
		t.Fatal(err)
	}

	m.UpdateAnchor("lamp", math.NaN(), math.NaN(), 0)
	if got := m.Compose(0, 0).AlphaAt(1, 1).A; got != 200 {
		t.Errorf("Light without a position expected alpha 200, got %d", got)
	}

	m.UpdateAnchor("lamp", 1, 1, 0)
	if got := m.Compose(0, 0).AlphaAt(1, 1).A; got != 50 {
		t.Errorf("Light moved to (1,1) expected alpha 50, got %d", got)
	}
	if got := m.Compose(0, 0).AlphaAt(40, 1).A; got != 50 {
		t.Errorf("Pixel inside the moved light expected alpha 50, got %d", got)
	}
}

func TestUnknownLightsAreNoOps(t *testing.T) {
	m := newTestManager(t, 50, 50)

	if m.UpdateAnchor("ghost", 1, 2, 3) {
		t.Error("Expected UpdateAnchor on an unknown light to report false")
	}
	if m.Trigger("ghost") || m.Unregister("ghost") {
		t.Error("Expected Trigger and Unregister on an unknown light to report false")
	}
	if m.Light("ghost") != nil {
		t.Error("Expected no light")
	}

	halo := NewCircleLight("halo", 10)
	if err := m.Register(halo); err != nil {
		t.Fatal(err)
	}
	if m.Trigger("halo") {
		t.Error("Expected Trigger on a light without a countdown to report false")
	}

	if err := m.Register(&Light{ID: "", Shape: &Circle{}}); !errors.Is(err, ErrInvalidLight) {
		t.Errorf("Expected ErrInvalidLight, got %v", err)
	}
	if err := m.Register(nil); !errors.Is(err, ErrInvalidLight) {
		t.Errorf("Expected ErrInvalidLight, got %v", err)
	}
}

func TestUnregisterRemovesFromCompositing(t *testing.T) {
	m := newTestManager(t, 100, 100)
	l := NewCircleLight("halo", 0)
	l.X, l.Y = 50, 50
	if err := m.Register(l); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(l); err != nil { // replacing keeps a single entry
		t.Fatal(err)
	}

	if m.Stats().Lights != 1 {
		t.Fatalf("Expected 1 light, got %d", m.Stats().Lights)
	}
	if !m.Unregister("halo") {
		t.Fatal("Expected unregister to succeed")
	}
	if got := m.Compose(0, 0).AlphaAt(50, 50).A; got != 200 {
		t.Errorf("Expected no light after unregistering, got alpha %d", got)
	}
}

func TestDisabledLightIsSkipped(t *testing.T) {
	m := newTestManager(t, 100, 100)
	l := NewCircleLight("halo", 0)
	l.X, l.Y = 50, 50
	l.Enabled = false
	if err := m.Register(l); err != nil {
		t.Fatal(err)
	}

	if got := m.Compose(0, 0).AlphaAt(50, 50).A; got != 200 {
		t.Errorf("Expected a disabled light to be skipped, got alpha %d", got)
	}
}

func TestPresetSwitching(t *testing.T) {
	m := newTestManager(t, 100, 100)

	dim := testPreset()
	dim.Name = "dim"
	dim.DarknessAlpha = 120
	wide := testPreset()
	wide.Name = "wide"
	wide.CircleRadius = 40
	if err := m.LoadPresets([]Preset{testPreset(), dim, wide}); err != nil {
		t.Fatal(err)
	}

	halo := NewCircleLight("halo", 0)
	halo.X, halo.Y = 10, 10
	custom := NewCircleLight("custom", 7)
	custom.Custom = true
	for _, l := range []*Light{halo, custom} {
		if err := m.Register(l); err != nil {
			t.Fatal(err)
		}
	}
	m.Compose(0, 0)
	before := m.Cache().Stats().Invalidations

	if err := m.UsePreset("dim"); err != nil {
		t.Fatal(err)
	}
	if got := m.Cache().Stats().Invalidations; got != before {
		t.Errorf("Darkness-only switch should keep the cache, got %d invalidations", got-before)
	}
	if got := m.Compose(0, 0).AlphaAt(99, 99).A; got != 120 {
		t.Errorf("Expected new darkness 120, got %d", got)
	}

	if err := m.UsePreset("wide"); err != nil {
		t.Fatal(err)
	}
	if got := m.Cache().Stats().Invalidations; got != before+1 {
		t.Errorf("Geometry switch should invalidate once, got %d", got-before)
	}
	if r := halo.Shape.Reach(); r != 40 {
		t.Errorf("Expected halo radius 40, got %v", r)
	}
	if r := custom.Shape.Reach(); r != 7 {
		t.Errorf("Expected custom light to keep radius 7, got %v", r)
	}

	if err := m.UsePreset("nope"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("Expected ErrUnknownPreset, got %v", err)
	}
	if m.Preset().Name != "wide" {
		t.Errorf("Failed switch should keep the active preset, got %q", m.Preset().Name)
	}

	if next := m.NextPreset(); next != "test" {
		t.Errorf("Expected cycling to wrap to test, got %q", next)
	}
}

func TestLoadPresetsFailsFast(t *testing.T) {
	m := newTestManager(t, 10, 10)
	bad := testPreset()
	bad.SectorAngleDegrees = 720

	if err := m.LoadPresets([]Preset{bad}); !errors.Is(err, ErrInvalidPreset) {
		t.Errorf("Expected ErrInvalidPreset, got %v", err)
	}
	if got := m.Presets(); len(got) != 1 || got[0] != "test" {
		t.Errorf("Expected the old presets to stay loaded, got %v", got)
	}
}

func TestRenderDrawsTintedOverlay(t *testing.T) {
	r := &fakeRenderer{}
	m := newTestManager(t, 10, 10, WithRenderer(r))
	l := NewCircleLight("halo", 5)
	l.Custom = true
	l.X, l.Y = 10, 10
	if err := m.Register(l); err != nil {
		t.Fatal(err)
	}

	screen := &fakeImage{w: 40, h: 30}
	m.Render(screen, 0, 0)

	if len(r.images) != 1 {
		t.Fatalf("Expected one overlay image, got %d", len(r.images))
	}
	overlay := r.images[0]
	if overlay.w != 40 || overlay.h != 30 {
		t.Errorf("Expected the overlay to follow the screen size, got %dx%d", overlay.w, overlay.h)
	}
	if len(screen.drawn) != 1 || screen.drawn[0] != overlay {
		t.Fatalf("Expected the overlay drawn onto the screen once, got %d draws", len(screen.drawn))
	}
	if len(overlay.pix) != 40*30*4 {
		t.Fatalf("Expected %d bytes, got %d", 40*30*4, len(overlay.pix))
	}

	lit := overlay.pix[(10*40+10)*4:]
	if lit[3] != 50 || lit[0] == 0 {
		t.Errorf("Expected a tinted lit pixel with alpha 50, got %v", lit[:4])
	}
	dark := overlay.pix[(29*40+39)*4:]
	if dark[0] != 0 || dark[1] != 0 || dark[2] != 0 || dark[3] != 200 {
		t.Errorf("Expected an opaque black dark pixel, got %v", dark[:4])
	}

	m.Render(&fakeImage{w: 20, h: 20}, 0, 0)
	if !overlay.freed || len(r.images) != 2 {
		t.Errorf("Expected a resize to replace the overlay image")
	}
}

func TestRenderWithoutRendererStillComposes(t *testing.T) {
	m := newTestManager(t, 10, 10)
	m.Render(&fakeImage{w: 10, h: 10}, 0, 0)
	m.Render(nil, 0, 0)

	if m.Stats().Frames != 1 {
		t.Errorf("Expected one composed frame, got %d", m.Stats().Frames)
	}
}

func BenchmarkCompose(b *testing.B) {
	m, err := NewManager(nil, 1280, 720, WithLogger(quietLogger()))
	if err != nil {
		b.Fatal(err)
	}
	var rects []shadows.Rect
	for i := 0; i < 30; i++ {
		rects = append(rects, shadows.Rect{X: float64(i * 64), Y: float64((i * 97) % 700), W: 32, H: 32})
	}
	m.SetOccluders(rects, 32)

	player := NewSectorLight("player", 0, 0)
	halo := NewCircleLight("halo", 0)
	_ = m.Register(player)
	_ = m.Register(halo)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.UpdateAnchor("player", 640+float64(i%50), 360, float64(i)*0.01)
		m.UpdateAnchor("halo", 500, 300, 0)
		m.Compose(0, 0)
	}
}

func TestShadeMatchesOverlayBlend(t *testing.T) {
	base := color.NRGBA{100, 100, 100, 255}
	warm := HexColor{R: 200, G: 100, B: 0, A: 255}

	if got := Shade(base, 0, 200, warm); got != base {
		t.Errorf("Expected an unlit pixel to keep the base colour, got %v", got)
	}
	if got := Shade(base, 255, 255, warm); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("Expected full darkness to be black, got %v", got)
	}

	// half way to darkness: 61% of the base plus a fifth of the light colour
	got := Shade(base, 100, 200, warm)
	near := func(v uint8, want float64) bool { return math.Abs(float64(v)-want) <= 1 }
	if !near(got.R, 100) || !near(got.G, 80.4) || !near(got.B, 60.8) {
		t.Errorf("Expected about (100, 80, 61), got %v", got)
	}
}
