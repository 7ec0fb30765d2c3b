package maploader

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zyedidia/generic/mapset"

	"chosenoffset.com/lightcone/internal/core/shadows"
)

// Tile characters used in level rows.
const (
	TileWall  = '#' // blocks sight and movement
	TileFloor = '.'
	TileWater = '~' // blocks movement, not sight
)

// SpawnPoint is a tile coordinate in the level.
type SpawnPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LightSpawn places a static light when the level loads.
type LightSpawn struct {
	ID            string  `json:"id"`
	Shape         string  `json:"shape"` // "circle" or "sector"
	X             float64 `json:"x"`     // tiles
	Y             float64 `json:"y"`     // tiles
	FacingDegrees float64 `json:"facing_degrees"`
	Intensity     float64 `json:"intensity"` // 0 means full
}

// MapData represents the loaded level file
type MapData struct {
	Name        string       `json:"name"`
	TileSize    int          `json:"tile_size"` // world pixels per tile
	PlayerSpawn SpawnPoint   `json:"player_spawn"`
	Lights      []LightSpawn `json:"lights"`
	Rows        []string     `json:"rows"` // one string per tile row, see Tile* constants
}

// Map is a validated level.
type Map struct {
	Data   *MapData
	Width  int
	Height int
}

// LoadMap loads a level from a JSON file
func LoadMap(mapPath string) (*Map, error) {
	data, err := os.ReadFile(mapPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read map file %s: %w", mapPath, err)
	}

	m, err := ParseMap(data)
	if err != nil {
		return nil, fmt.Errorf("map file %s: %w", mapPath, err)
	}
	return m, nil
}

// LoadDir loads every *.json level in dir, sorted by file name.
func LoadDir(dir string) ([]*Map, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list levels in %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no levels found in %s", dir)
	}
	sort.Strings(paths)

	levels := make([]*Map, 0, len(paths))
	for _, path := range paths {
		m, err := LoadMap(path)
		if err != nil {
			return nil, err
		}
		levels = append(levels, m)
	}
	return levels, nil
}

// ParseMap decodes and validates level JSON.
func ParseMap(data []byte) (*Map, error) {
	var mapData MapData
	if err := json.Unmarshal(data, &mapData); err != nil {
		return nil, fmt.Errorf("failed to parse map: %w", err)
	}
	if err := validateMapData(&mapData); err != nil {
		return nil, fmt.Errorf("invalid map data: %w", err)
	}
	return &Map{
		Data:   &mapData,
		Width:  len(mapData.Rows[0]),
		Height: len(mapData.Rows),
	}, nil
}

// validateMapData checks if the map data is valid
func validateMapData(data *MapData) error {
	if data.TileSize <= 0 {
		return fmt.Errorf("invalid tile size: %d", data.TileSize)
	}
	if len(data.Rows) == 0 || len(data.Rows[0]) == 0 {
		return fmt.Errorf("map has no tiles")
	}

	width := len(data.Rows[0])
	for y, row := range data.Rows {
		if len(row) != width {
			return fmt.Errorf("row width mismatch at row %d: expected %d, got %d", y, width, len(row))
		}
		if i := strings.IndexFunc(row, func(r rune) bool {
			return r != TileWall && r != TileFloor && r != TileWater
		}); i >= 0 {
			return fmt.Errorf("unknown tile %q at (%d, %d)", row[i], i, y)
		}
	}

	sx, sy := int(math.Floor(data.PlayerSpawn.X)), int(math.Floor(data.PlayerSpawn.Y))
	if sx < 0 || sx >= width || sy < 0 || sy >= len(data.Rows) {
		return fmt.Errorf("player spawn (%v, %v) is outside the map", data.PlayerSpawn.X, data.PlayerSpawn.Y)
	}
	if data.Rows[sy][sx] != TileFloor {
		return fmt.Errorf("player spawn (%v, %v) is not on a floor tile", data.PlayerSpawn.X, data.PlayerSpawn.Y)
	}

	ids := mapset.New[string]()
	for _, l := range data.Lights {
		if l.ID == "" {
			return fmt.Errorf("light without an id")
		}
		if ids.Has(l.ID) {
			return fmt.Errorf("duplicate light id %q", l.ID)
		}
		ids.Put(l.ID)
		if l.Shape != "circle" && l.Shape != "sector" {
			return fmt.Errorf("light %q: unknown shape %q", l.ID, l.Shape)
		}
	}
	return nil
}

// TileAt returns the tile character at the given grid coordinates
func (m *Map) TileAt(x, y int) (byte, error) {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return 0, fmt.Errorf("coordinates out of bounds: (%d, %d)", x, y)
	}
	return m.Data.Rows[y][x], nil
}

// BlocksSight returns whether the tile at the given coordinates blocks line of sight
func (m *Map) BlocksSight(x, y int) bool {
	tile, err := m.TileAt(x, y)
	return err == nil && tile == TileWall
}

// IsWalkable returns whether the tile at the given coordinates is walkable
func (m *Map) IsWalkable(x, y int) bool {
	tile, err := m.TileAt(x, y)
	return err == nil && tile == TileFloor
}

// TileSize returns the tile size in world pixels.
func (m *Map) TileSize() float64 {
	return float64(m.Data.TileSize)
}

// WorldSize returns the level size in world pixels.
func (m *Map) WorldSize() (float64, float64) {
	ts := m.TileSize()
	return float64(m.Width) * ts, float64(m.Height) * ts
}

// ToWorld converts tile coordinates to world pixels.
func (m *Map) ToWorld(tx, ty float64) shadows.Point {
	ts := m.TileSize()
	return shadows.Point{X: tx * ts, Y: ty * ts}
}

// ToTile returns the tile containing a world position.
func (m *Map) ToTile(p shadows.Point) shadows.Coord {
	ts := m.TileSize()
	return shadows.Coord{X: int(math.Floor(p.X / ts)), Y: int(math.Floor(p.Y / ts))}
}

// Spawn returns the player spawn in world pixels.
func (m *Map) Spawn() shadows.Point {
	return m.ToWorld(m.Data.PlayerSpawn.X, m.Data.PlayerSpawn.Y)
}
