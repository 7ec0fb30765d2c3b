package game

import (
	"fmt"
	"image/color"
	"math"

	"chosenoffset.com/lightcone/internal/core/shadows"
	"chosenoffset.com/lightcone/internal/render"
	"chosenoffset.com/lightcone/internal/world/maploader"
)

var (
	floorColor  = color.RGBA{70, 64, 58, 255}
	wallColor   = color.RGBA{120, 110, 100, 255}
	waterColor  = color.RGBA{40, 70, 110, 255}
	playerColor = color.RGBA{255, 255, 100, 255}
	haloColor   = color.RGBA{120, 200, 255, 255}
	edgeColor   = color.RGBA{255, 80, 80, 160}
)

// Draw renders the scene, then the darkness overlay, then the UI on top.
func (g *Game) Draw(screen render.Image) {
	screen.Fill(color.Black)

	g.drawTiles(screen)
	g.drawLevelLights(screen)
	g.drawPlayer(screen)

	g.Lighting.Render(screen, g.Camera.X, g.Camera.Y)

	// UI elements are unaffected by lighting
	if g.ShowStats {
		g.drawFacingEdges(screen)
	}
	g.drawUI(screen)
}

func (g *Game) drawTiles(screen render.Image) {
	if g.Level == nil {
		return
	}

	ts := g.Level.TileSize()
	// Only the tiles under the viewport
	x0 := max(0, int(math.Floor(g.Camera.X/ts)))
	y0 := max(0, int(math.Floor(g.Camera.Y/ts)))
	x1 := min(g.Level.Width, int(math.Ceil((g.Camera.X+float64(g.ScreenWidth))/ts)))
	y1 := min(g.Level.Height, int(math.Ceil((g.Camera.Y+float64(g.ScreenHeight))/ts)))

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			tile, err := g.Level.TileAt(x, y)
			if err != nil {
				continue
			}

			clr := floorColor
			switch tile {
			case maploader.TileWall:
				clr = wallColor
			case maploader.TileWater:
				clr = waterColor
			}
			screenX := float32(float64(x)*ts - g.Camera.X)
			screenY := float32(float64(y)*ts - g.Camera.Y)
			g.Renderer.FillRect(screen, screenX, screenY, float32(ts), float32(ts), clr)
		}
	}
}

func (g *Game) drawLevelLights(screen render.Image) {
	for _, id := range g.levelLight {
		l := g.Lighting.Light(id)
		if l == nil {
			continue
		}
		x, y := float32(l.X-g.Camera.X), float32(l.Y-g.Camera.Y)
		g.Renderer.StrokeCircle(screen, x, y, 8, 2, haloColor)
	}
}

func (g *Game) drawPlayer(screen render.Image) {
	px := g.Player.Pos.X - g.Camera.X
	py := g.Player.Pos.Y - g.Camera.Y
	r := g.Player.Radius

	g.Renderer.FillCircle(screen, float32(px), float32(py), float32(r), playerColor)
	g.Renderer.StrokeLine(screen, float32(px), float32(py),
		float32(px+math.Cos(g.Player.Facing)*r*1.8), float32(py+math.Sin(g.Player.Facing)*r*1.8),
		2, playerColor)
}

// drawFacingEdges outlines the occluder edges whose outside faces the player,
// the ones that can cast the player's shadows.
func (g *Game) drawFacingEdges(screen render.Image) {
	for _, seg := range g.Lighting.Grid().Segments() {
		if !shadows.IsFacingPoint(seg, g.Player.Pos) {
			continue
		}
		g.Renderer.StrokeLine(screen,
			float32(seg.A.X-g.Camera.X), float32(seg.A.Y-g.Camera.Y),
			float32(seg.B.X-g.Camera.X), float32(seg.B.Y-g.Camera.Y),
			1, edgeColor)
	}
}

func (g *Game) drawUI(screen render.Image) {
	y := 8
	if g.ShowStats {
		for _, line := range g.statsLines() {
			g.Renderer.DrawText(screen, line, 8, y)
			y += 16
		}
		y += 8
	}

	// On-screen messages
	for _, msg := range g.Messages {
		g.Renderer.DrawText(screen, msg.Text, 8, y)
		y += 16
	}
}

func (g *Game) statsLines() []string {
	s := g.Lighting.Stats()
	cache := "off"
	if g.Lighting.Cache().Enabled() {
		cache = fmt.Sprintf("%.0f%% hit, %d entries", s.Cache.HitRate()*100, s.Cache.Entries)
	}
	lit, inSight := g.CursorReport()
	return []string{
		fmt.Sprintf("preset %s | lights %d/%d | grid v%d", s.Preset, s.ActiveLights, s.Lights, s.GridVersion),
		fmt.Sprintf("cache %s | rays %d | compose %s", cache, s.RaysCast, s.ComposeTime),
		fmt.Sprintf("cursor (%.0f,%.0f) lit %s | in sight %s", g.Cursor.X, g.Cursor.Y, yesNo(lit), yesNo(inSight)),
		"WASD move  mouse aim  space flash  P preset  C cache  T halos  N level  F3 stats",
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
