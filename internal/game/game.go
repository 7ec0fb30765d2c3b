package game

import (
	"errors"
	"math"

	"github.com/sirupsen/logrus"

	"chosenoffset.com/lightcone/internal/core/shadows"
	"chosenoffset.com/lightcone/internal/render"
	"chosenoffset.com/lightcone/internal/render/lighting"
	"chosenoffset.com/lightcone/internal/world/maploader"
)

// Light IDs owned by the game itself. Level lights use the IDs from the level file.
const (
	PlayerLightID = "player"
	FlashLightID  = "flash"
)

const (
	tickRate      = 60
	flashDuration = 0.35 // seconds
	playerSpeed   = 180
	playerRadius  = 10
	messageTime   = 3.0
)

// Game holds the demo state: a player with a forward cone, level lights and
// an attack flash, all lit by one lighting manager.
type Game struct {
	ScreenWidth  int
	ScreenHeight int
	Player       Player
	Camera       Camera
	Renderer     render.Renderer
	InputMgr     render.InputManager
	Lighting     *lighting.Manager
	Log          logrus.FieldLogger

	levels     []*maploader.Map
	levelIndex int
	Level      *maploader.Map
	levelLight []string // IDs registered by the current level

	Cursor shadows.Point // world position under the mouse

	// UI state
	Messages  []Message
	ShowStats bool
	HalosOn   bool

	// Debug
	FrameCount int
}

// New creates the game and loads the first level. The lighting manager must
// already be configured; the game registers its own lights with it.
func New(levels []*maploader.Map, lm *lighting.Manager, r render.Renderer, input render.InputManager, width, height int, log logrus.FieldLogger) (*Game, error) {
	if len(levels) == 0 {
		return nil, errors.New("at least one level is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	g := &Game{
		ScreenWidth:  width,
		ScreenHeight: height,
		Player:       Player{Speed: playerSpeed, Radius: playerRadius},
		Renderer:     r,
		InputMgr:     input,
		Lighting:     lm,
		Log:          log.WithField("component", "game"),
		levels:       levels,
		ShowStats:    true,
		HalosOn:      true,
	}

	if err := lm.Register(lighting.NewSectorLight(PlayerLightID, 0, 0)); err != nil {
		return nil, err
	}
	// A zero Temporary starts expired; Space triggers it.
	flash := &lighting.Light{
		ID:        FlashLightID,
		Shape:     &lighting.Temporary{Shape: &lighting.Circle{}, Duration: flashDuration},
		Intensity: 1,
		Enabled:   true,
	}
	if err := lm.Register(flash); err != nil {
		return nil, err
	}

	if err := g.LoadLevel(0); err != nil {
		return nil, err
	}
	return g, nil
}

// Update handles game logic updates.
func (g *Game) Update() error {
	// Delta time for timers (fixed tick)
	dt := 1.0 / tickRate

	if g.InputMgr.IsKeyJustPressed(render.KeyEscape) {
		return render.ErrQuit
	}

	g.handleToggles()
	g.movePlayer(dt)

	// Aim the cone at the cursor
	cx, cy := g.InputMgr.GetCursorPosition()
	target := shadows.Point{X: float64(cx) + g.Camera.X, Y: float64(cy) + g.Camera.Y}
	g.Cursor = target
	if target != g.Player.Pos {
		g.Player.Facing = math.Atan2(target.Y-g.Player.Pos.Y, target.X-g.Player.Pos.X)
	}

	if g.InputMgr.IsKeyJustPressed(render.KeySpace) || g.InputMgr.IsMouseButtonPressed(render.MouseButtonLeft) {
		g.Lighting.Trigger(FlashLightID)
	}

	g.Lighting.UpdateAnchor(PlayerLightID, g.Player.Pos.X, g.Player.Pos.Y, g.Player.Facing)
	g.Lighting.UpdateAnchor(FlashLightID, g.Player.Pos.X, g.Player.Pos.Y, g.Player.Facing)
	g.Lighting.Update(dt)

	g.updateMessages(dt)
	g.UpdateCamera()
	g.FrameCount++
	return nil
}

// CursorReport tells whether the cursor's world position was lit in the last
// drawn frame and whether the player has a clear line of sight to it.
func (g *Game) CursorReport() (lit, inSight bool) {
	lit = g.Lighting.IsLit(g.Cursor.X, g.Cursor.Y, g.Camera.X, g.Camera.Y)
	inSight, _ = g.Lighting.Grid().CastTo(g.Player.Pos, g.Cursor)
	return lit, inSight
}

func (g *Game) handleToggles() {
	in := g.InputMgr
	switch {
	case in.IsKeyJustPressed(render.KeyP):
		g.ShowMessage("Preset: " + g.Lighting.NextPreset())
	case in.IsKeyJustPressed(render.KeyC):
		c := g.Lighting.Cache()
		c.SetEnabled(!c.Enabled())
		if c.Enabled() {
			g.ShowMessage("Visibility cache on")
		} else {
			g.ShowMessage("Visibility cache off")
		}
	case in.IsKeyJustPressed(render.KeyT):
		g.HalosOn = !g.HalosOn
		for _, id := range g.levelLight {
			if l := g.Lighting.Light(id); l != nil {
				l.Enabled = g.HalosOn
			}
		}
	case in.IsKeyJustPressed(render.KeyN):
		if err := g.LoadLevel((g.levelIndex + 1) % len(g.levels)); err != nil {
			g.Log.WithError(err).Error("Failed to switch level")
		}
	case in.IsKeyJustPressed(render.KeyF3):
		g.ShowStats = !g.ShowStats
	}
}

// movePlayer applies WASD / arrow movement, sliding along walls one axis at a time.
func (g *Game) movePlayer(dt float64) {
	var dx, dy float64
	if g.pressed(render.KeyW, render.KeyUp) {
		dy--
	}
	if g.pressed(render.KeyS, render.KeyDown) {
		dy++
	}
	if g.pressed(render.KeyA, render.KeyLeft) {
		dx--
	}
	if g.pressed(render.KeyD, render.KeyRight) {
		dx++
	}
	if dx == 0 && dy == 0 {
		return
	}

	step := g.Player.Speed * dt / math.Hypot(dx, dy)
	if next := (shadows.Point{X: g.Player.Pos.X + dx*step, Y: g.Player.Pos.Y}); g.canStand(next) {
		g.Player.Pos = next
	}
	if next := (shadows.Point{X: g.Player.Pos.X, Y: g.Player.Pos.Y + dy*step}); g.canStand(next) {
		g.Player.Pos = next
	}
}

func (g *Game) pressed(keys ...render.Key) bool {
	for _, k := range keys {
		if g.InputMgr.IsKeyPressed(k) {
			return true
		}
	}
	return false
}

// canStand reports whether every tile under the player's bounding box is walkable.
func (g *Game) canStand(p shadows.Point) bool {
	r := g.Player.Radius
	lo := g.Level.ToTile(shadows.Point{X: p.X - r, Y: p.Y - r})
	hi := g.Level.ToTile(shadows.Point{X: p.X + r, Y: p.Y + r})
	for y := lo.Y; y <= hi.Y; y++ {
		for x := lo.X; x <= hi.X; x++ {
			if !g.Level.IsWalkable(x, y) {
				return false
			}
		}
	}
	return true
}

// Layout returns the game's logical screen size.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.ScreenWidth, g.ScreenHeight
}

func (g *Game) updateMessages(dt float64) {
	var active []Message
	for _, msg := range g.Messages {
		msg.TimeLeft -= dt
		if msg.TimeLeft > 0 {
			active = append(active, msg)
		}
	}
	g.Messages = active
}

// ShowMessage adds a new message to be displayed on screen.
func (g *Game) ShowMessage(text string) {
	g.Messages = append(g.Messages, Message{
		Text:     text,
		TimeLeft: messageTime,
		MaxTime:  messageTime,
	})
	g.Log.WithField("message", text).Info("Message")
}

// UpdateCamera updates the camera to follow the player. Levels smaller than
// the screen are centred.
func (g *Game) UpdateCamera() {
	if g.Level == nil {
		return
	}
	mapWidth, mapHeight := g.Level.WorldSize()
	g.Camera.X = follow(g.Player.Pos.X, float64(g.ScreenWidth), mapWidth)
	g.Camera.Y = follow(g.Player.Pos.Y, float64(g.ScreenHeight), mapHeight)
}

func follow(pos, view, world float64) float64 {
	if world <= view {
		return (world - view) / 2
	}
	return math.Max(0, math.Min(pos-view/2, world-view))
}
