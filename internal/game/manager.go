package game

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"chosenoffset.com/lightcone/internal/render/lighting"
	"chosenoffset.com/lightcone/internal/world/maploader"
)

// ErrReservedLightID is returned for a level light that reuses the ID of
// one of the game's own lights.
var ErrReservedLightID = errors.New("light id is reserved")

// LoadLevel switches to levels[index]: the occluder grid is rebuilt, the
// previous level's lights are unregistered and the player moves to the spawn.
// A level whose lights cannot be registered leaves the current level loaded.
func (g *Game) LoadLevel(index int) error {
	if index < 0 || index >= len(g.levels) {
		return fmt.Errorf("level index %d out of range [0,%d)", index, len(g.levels))
	}
	level := g.levels[index]
	lights, err := SpawnLights(level)
	if err != nil {
		return err
	}

	for _, id := range g.levelLight {
		g.Lighting.Unregister(id)
	}
	g.levelLight = g.levelLight[:0]

	var registered []string
	for _, l := range lights {
		l.Enabled = g.HalosOn
		if err := g.Lighting.Register(l); err != nil {
			for _, id := range registered {
				g.Lighting.Unregister(id)
			}
			g.restoreLevelLights()
			return fmt.Errorf("level %s: %w", level.Data.Name, err)
		}
		registered = append(registered, l.ID)
	}
	g.levelLight = append(g.levelLight, registered...)
	g.Lighting.SetOccluders(level.Occluders(), level.TileSize())

	g.Level = level
	g.levelIndex = index
	g.Player.Pos = level.Spawn()
	g.UpdateCamera()

	g.Log.WithFields(logrus.Fields{
		"level":  level.Data.Name,
		"lights": len(g.levelLight),
	}).Info("Level loaded")
	g.ShowMessage("Level: " + level.Data.Name)
	return nil
}

// LevelIndex returns the index of the current level.
func (g *Game) LevelIndex() int { return g.levelIndex }

// restoreLevelLights re-registers the current level's lights after a failed
// switch.
func (g *Game) restoreLevelLights() {
	if g.Level == nil {
		return
	}
	lights, err := SpawnLights(g.Level)
	if err != nil {
		return
	}
	for _, l := range lights {
		l.Enabled = g.HalosOn
		if err := g.Lighting.Register(l); err != nil {
			g.Log.WithError(err).WithField("light", l.ID).Warn("Failed to restore level light")
			continue
		}
		g.levelLight = append(g.levelLight, l.ID)
	}
}

// SpawnLights builds the static lights placed in a level file, positioned in
// world pixels. Geometry is left to the active preset. Level lights may not
// take the player or flash IDs.
func SpawnLights(level *maploader.Map) ([]*lighting.Light, error) {
	lights := make([]*lighting.Light, 0, len(level.Data.Lights))
	for _, spawn := range level.Data.Lights {
		if spawn.ID == PlayerLightID || spawn.ID == FlashLightID {
			return nil, fmt.Errorf("level %s: %w: %q", level.Data.Name, ErrReservedLightID, spawn.ID)
		}
		var l *lighting.Light
		switch spawn.Shape {
		case "sector":
			l = lighting.NewSectorLight(spawn.ID, 0, 0)
		default:
			l = lighting.NewCircleLight(spawn.ID, 0)
		}
		pos := level.ToWorld(spawn.X, spawn.Y)
		l.X, l.Y = pos.X, pos.Y
		l.Facing = spawn.FacingDegrees * math.Pi / 180
		if spawn.Intensity > 0 {
			l.Intensity = spawn.Intensity
		}
		lights = append(lights, l)
	}
	return lights, nil
}
