package main

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"

	"chosenoffset.com/lightcone/internal/core/shadows"
	"chosenoffset.com/lightcone/internal/game"
	"chosenoffset.com/lightcone/internal/render/lighting"
	"chosenoffset.com/lightcone/internal/world/maploader"
)

const (
	cellW = 8  // world pixels per terminal column
	cellH = 16 // terminal rows are about twice as tall as they are wide

	flashDuration = 0.35
)

var (
	wallColor  = color.NRGBA{170, 170, 180, 255}
	floorColor = color.NRGBA{120, 110, 95, 255}
	waterColor = color.NRGBA{70, 110, 190, 255}
	voidColor  = color.NRGBA{0, 0, 0, 255}
)

// cells is the part of tcell.Screen the preview draws through.
type cells interface {
	Clear()
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	Show()
}

// view is the terminal preview: one level, a player cone and flash, and the
// lighting overlay sampled once per cell.
type view struct {
	levels      []*maploader.Map
	index       int
	level       *maploader.Map
	lights      *lighting.Manager
	levelLights []string
	log         logrus.FieldLogger

	pos    shadows.Point
	facing float64

	cols, rows int
	camX, camY float64
	alpha      *image.Alpha
}

func newView(levels []*maploader.Map, lights *lighting.Manager, cols, rows int, log logrus.FieldLogger) (*view, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("no levels to show")
	}
	v := &view{levels: levels, lights: lights, log: log}

	if err := lights.Register(lighting.NewSectorLight(game.PlayerLightID, 0, 0)); err != nil {
		return nil, err
	}
	flash := &lighting.Light{
		ID:        game.FlashLightID,
		Shape:     &lighting.Temporary{Shape: &lighting.Circle{}, Duration: flashDuration},
		Intensity: 1,
		Enabled:   true,
	}
	if err := lights.Register(flash); err != nil {
		return nil, err
	}

	v.resize(cols, rows)
	if err := v.load(0); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *view) load(index int) error {
	level := v.levels[index]
	lights, err := game.SpawnLights(level)
	if err != nil {
		return err
	}
	for _, id := range v.levelLights {
		v.lights.Unregister(id)
	}
	v.levelLights = v.levelLights[:0]

	v.lights.SetOccluders(level.Occluders(), level.TileSize())
	for _, l := range lights {
		if err := v.lights.Register(l); err != nil {
			return fmt.Errorf("level %s: %w", level.Data.Name, err)
		}
		v.levelLights = append(v.levelLights, l.ID)
	}

	v.index = index
	v.level = level
	v.pos = level.Spawn()
	v.log.WithField("level", level.Data.Name).Info("Level loaded")
	return nil
}

// resize keeps the bottom row for the status line.
func (v *view) resize(cols, rows int) {
	v.cols = max(1, cols)
	v.rows = max(2, rows)
	v.lights.Resize(v.cols*cellW, (v.rows-1)*cellH)
}

// move steps the player one cell, turning the cone to face the step.
func (v *view) move(dx, dy int) {
	step := shadows.Point{X: float64(dx * cellW), Y: float64(dy * cellH)}
	v.facing = math.Atan2(step.Y, step.X)

	next := shadows.Point{X: v.pos.X + step.X, Y: v.pos.Y + step.Y}
	if c := v.level.ToTile(next); v.level.IsWalkable(c.X, c.Y) {
		v.pos = next
	}
}

// handleKey applies one key press and reports whether the preview keeps running.
func (v *view) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		v.move(0, -1)
	case tcell.KeyDown:
		v.move(0, 1)
	case tcell.KeyLeft:
		v.move(-1, 0)
	case tcell.KeyRight:
		v.move(1, 0)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return false
		case 'f', ' ':
			v.lights.Trigger(game.FlashLightID)
		case 'p':
			v.lights.NextPreset()
		case 'c':
			c := v.lights.Cache()
			c.SetEnabled(!c.Enabled())
		case 'n':
			if err := v.load((v.index + 1) % len(v.levels)); err != nil {
				v.log.WithError(err).Error("Failed to switch level")
			}
		}
	}
	return true
}

// step advances the lights by dt seconds and composes the overlay centred on the player.
func (v *view) step(dt float64) {
	v.lights.UpdateAnchor(game.PlayerLightID, v.pos.X, v.pos.Y, v.facing)
	v.lights.UpdateAnchor(game.FlashLightID, v.pos.X, v.pos.Y, v.facing)
	v.lights.Update(dt)

	w, h := v.lights.Size()
	v.camX = v.pos.X - float64(w)/2
	v.camY = v.pos.Y - float64(h)/2
	v.alpha = v.lights.Compose(v.camX, v.camY)
}

func (v *view) draw(s cells) {
	s.Clear()
	preset := v.lights.Preset()
	darkness := uint8(preset.DarknessAlpha)

	px := int((v.pos.X - v.camX) / cellW)
	py := int((v.pos.Y - v.camY) / cellH)

	for cy := 0; cy < v.rows-1; cy++ {
		for cx := 0; cx < v.cols; cx++ {
			world := shadows.Point{
				X: v.camX + (float64(cx)+0.5)*cellW,
				Y: v.camY + (float64(cy)+0.5)*cellH,
			}
			r, base := v.glyph(world)
			if cx == px && cy == py {
				r, base = '@', color.NRGBA{255, 240, 120, 255}
			}

			a := darkness
			if v.alpha != nil {
				a = v.alpha.AlphaAt(cx*cellW+cellW/2, cy*cellH+cellH/2).A
			}
			c := lighting.Shade(base, a, darkness, preset.LightColor)
			style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))
			s.SetContent(cx, cy, r, nil, style)
		}
	}

	v.drawStatus(s)
	s.Show()
}

func (v *view) glyph(p shadows.Point) (rune, color.NRGBA) {
	c := v.level.ToTile(p)
	tile, err := v.level.TileAt(c.X, c.Y)
	if err != nil {
		return ' ', voidColor
	}
	switch tile {
	case maploader.TileWall:
		return '#', wallColor
	case maploader.TileWater:
		return '~', waterColor
	}
	return '.', floorColor
}

func (v *view) drawStatus(s cells) {
	stats := v.lights.Stats()
	line := fmt.Sprintf(" %s | preset %s | cache %.0f%% | lights %d/%d | arrows move, f flash, p preset, n level, q quit",
		v.level.Data.Name, stats.Preset, stats.Cache.HitRate()*100, stats.ActiveLights, stats.Lights)

	style := tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver)
	y := v.rows - 1
	for x := 0; x < v.cols; x++ {
		r := ' '
		if x < len(line) {
			r = rune(line[x])
		}
		s.SetContent(x, y, r, nil, style)
	}
}
