// Package bench drives the lighting manager through scripted frames without a
// window, for comparing presets and cache settings.
package bench

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"chosenoffset.com/lightcone/internal/core/shadows"
	"chosenoffset.com/lightcone/internal/game"
	"chosenoffset.com/lightcone/internal/render/lighting"
	"chosenoffset.com/lightcone/internal/world/maploader"
)

// Options controls a scripted run.
type Options struct {
	Frames      int
	Width       int
	Height      int
	ExtraLights int // static halos spread over floor tiles
	FlashEvery  int // frames between flashes, 0 disables
}

// DefaultOptions returns a ten second run at 60 Hz on a 1280x800 viewport.
func DefaultOptions() Options {
	return Options{Frames: 600, Width: 1280, Height: 800, ExtraLights: 4, FlashEvery: 90}
}

// Result summarizes one level's run.
type Result struct {
	Level       string
	Frames      int
	Elapsed     time.Duration
	Stats       lighting.Stats
	LitFraction float64 // mean share of viewport pixels lit per frame
}

// FrameTime returns the mean wall time per frame.
func (r Result) FrameTime() time.Duration {
	if r.Frames == 0 {
		return 0
	}
	return r.Elapsed / time.Duration(r.Frames)
}

// Run plays the script on one level with a fresh manager built from cfg. The
// level's own lights are registered alongside the player cone and flash.
// The player walks a loop around the spawn for half a second, then stands
// still for half a second, so both cache misses and hits are exercised.
func Run(level *maploader.Map, cfg *lighting.Config, opts Options, log logrus.FieldLogger) (Result, error) {
	if opts.Frames <= 0 || opts.Width <= 0 || opts.Height <= 0 {
		return Result{}, fmt.Errorf("invalid bench options: %+v", opts)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	m, err := lighting.NewManager(cfg, opts.Width, opts.Height, lighting.WithLogger(log))
	if err != nil {
		return Result{}, err
	}
	m.SetOccluders(level.Occluders(), level.TileSize())

	player := lighting.NewSectorLight(game.PlayerLightID, 0, 0)
	flash := lighting.NewFlashLight(game.FlashLightID, &lighting.Circle{}, 0.3)
	for _, l := range []*lighting.Light{player, flash} {
		if err := m.Register(l); err != nil {
			return Result{}, err
		}
	}
	spawned, err := game.SpawnLights(level)
	if err != nil {
		return Result{}, err
	}
	for _, l := range spawned {
		if err := m.Register(l); err != nil {
			return Result{}, err
		}
	}
	for i, pos := range haloPositions(level, opts.ExtraLights) {
		halo := lighting.NewCircleLight(fmt.Sprintf("halo-%d", i), 0)
		halo.X, halo.Y = pos.X, pos.Y
		if err := m.Register(halo); err != nil {
			return Result{}, err
		}
	}

	spawn := level.Spawn()
	orbit := 3 * level.TileSize()
	const dt = 1.0 / 60

	var lit float64
	start := time.Now()
	for frame := 0; frame < opts.Frames; frame++ {
		// 30 frames moving, 30 frames standing
		phase := float64(frame/60*30 + min(frame%60, 30))
		angle := phase * dt * 2
		x := spawn.X + orbit*math.Cos(angle)
		y := spawn.Y + orbit*math.Sin(angle)
		facing := angle + math.Pi/2

		m.UpdateAnchor(game.PlayerLightID, x, y, facing)
		m.UpdateAnchor(game.FlashLightID, x, y, facing)
		if opts.FlashEvery > 0 && frame%opts.FlashEvery == 0 {
			m.Trigger(game.FlashLightID)
		}
		m.Update(dt)

		img := m.Compose(x-float64(opts.Width)/2, y-float64(opts.Height)/2)
		lit += litShare(img.Pix, uint8(m.Preset().DarknessAlpha))
	}

	return Result{
		Level:       level.Data.Name,
		Frames:      opts.Frames,
		Elapsed:     time.Since(start),
		Stats:       m.Stats(),
		LitFraction: lit / float64(opts.Frames),
	}, nil
}

// haloPositions picks n floor tiles spread evenly through the level, in world pixels.
func haloPositions(level *maploader.Map, n int) []shadows.Point {
	var floors []shadows.Point
	for y := 0; y < level.Height; y++ {
		for x := 0; x < level.Width; x++ {
			if level.IsWalkable(x, y) {
				p := level.ToWorld(float64(x)+0.5, float64(y)+0.5)
				floors = append(floors, p)
			}
		}
	}
	if n <= 0 || len(floors) == 0 {
		return nil
	}
	n = min(n, len(floors))
	out := make([]shadows.Point, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, floors[(i*len(floors))/n])
	}
	return out
}

func litShare(pix []uint8, darkness uint8) float64 {
	if len(pix) == 0 {
		return 0
	}
	lit := 0
	for _, a := range pix {
		if a < darkness {
			lit++
		}
	}
	return float64(lit) / float64(len(pix))
}
