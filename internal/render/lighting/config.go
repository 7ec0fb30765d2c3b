package lighting

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"strings"
)

var (
	// ErrInvalidPreset is wrapped by every preset validation failure.
	ErrInvalidPreset = errors.New("invalid lighting preset")
	// ErrUnknownPreset is returned when switching to a preset that was never loaded.
	ErrUnknownPreset = errors.New("unknown lighting preset")
)

// Config holds the lighting presets and performance tuning.
type Config struct {
	DefaultPreset string      `json:"default_preset"`
	Presets       []Preset    `json:"presets"`
	Cache         CacheConfig `json:"cache"`
	Workers       int         `json:"workers"` // ray fan goroutines, <= 1 traces inline
}

// Preset is a named look for the lighting system.
type Preset struct {
	Name               string   `json:"name"`
	SectorRadius       float64  `json:"sector_radius"`        // cone reach in pixels
	SectorAngleDegrees float64  `json:"sector_angle_degrees"` // full cone width
	CircleRadius       float64  `json:"circle_radius"`        // halo reach in pixels
	LightColor         HexColor `json:"light_color"`          // tint of partially lit pixels
	DarknessAlpha      int      `json:"darkness_alpha"`       // 0 = no darkness, 255 = black
	LightIntensity     int      `json:"light_intensity"`      // alpha removed by a light at full strength
	RayCount           int      `json:"ray_count"`
	EdgeSoftness       float64  `json:"edge_softness"` // pixels
}

// HalfAngle returns half the cone width in radians.
func (p Preset) HalfAngle() float64 {
	return p.SectorAngleDegrees * math.Pi / 360
}

// sameGeometry reports whether switching between the presets leaves every
// traced polygon unchanged.
func (p Preset) sameGeometry(o Preset) bool {
	return p.SectorRadius == o.SectorRadius &&
		p.SectorAngleDegrees == o.SectorAngleDegrees &&
		p.CircleRadius == o.CircleRadius &&
		p.RayCount == o.RayCount
}

// Validate checks the preset ranges.
func (p Preset) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPreset)
	}
	if !(p.SectorRadius > 0) || math.IsInf(p.SectorRadius, 1) {
		return fmt.Errorf("%w %q: sector_radius must be positive, got %v", ErrInvalidPreset, p.Name, p.SectorRadius)
	}
	if !(p.SectorAngleDegrees >= 0 && p.SectorAngleDegrees <= 360) {
		return fmt.Errorf("%w %q: sector_angle_degrees %v outside [0,360]", ErrInvalidPreset, p.Name, p.SectorAngleDegrees)
	}
	if !(p.CircleRadius > 0) || math.IsInf(p.CircleRadius, 1) {
		return fmt.Errorf("%w %q: circle_radius must be positive, got %v", ErrInvalidPreset, p.Name, p.CircleRadius)
	}
	if p.DarknessAlpha < 0 || p.DarknessAlpha > 255 {
		return fmt.Errorf("%w %q: darkness_alpha %d outside [0,255]", ErrInvalidPreset, p.Name, p.DarknessAlpha)
	}
	if p.LightIntensity < 0 || p.LightIntensity > 255 {
		return fmt.Errorf("%w %q: light_intensity %d outside [0,255]", ErrInvalidPreset, p.Name, p.LightIntensity)
	}
	if p.RayCount < MinRays {
		return fmt.Errorf("%w %q: ray_count must be at least %d, got %d", ErrInvalidPreset, p.Name, MinRays, p.RayCount)
	}
	if !(p.EdgeSoftness >= 0) || math.IsInf(p.EdgeSoftness, 1) {
		return fmt.Errorf("%w %q: edge_softness must be >= 0, got %v", ErrInvalidPreset, p.Name, p.EdgeSoftness)
	}
	return nil
}

// ValidatePresets checks every preset and that names are unique.
func ValidatePresets(presets []Preset) error {
	if len(presets) == 0 {
		return fmt.Errorf("%w: at least one preset is required", ErrInvalidPreset)
	}
	seen := make(map[string]bool, len(presets))
	for _, p := range presets {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("%w %q: duplicate name", ErrInvalidPreset, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Validate checks the presets and the tuning values.
func (c *Config) Validate() error {
	if err := ValidatePresets(c.Presets); err != nil {
		return err
	}
	if c.DefaultPreset != "" {
		found := false
		for _, p := range c.Presets {
			if p.Name == c.DefaultPreset {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("default_preset %q: %w", c.DefaultPreset, ErrUnknownPreset)
		}
	}
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache capacity must be >= 0, got %d", c.Cache.Capacity)
	}
	if c.Cache.PositionStep < 0 || c.Cache.AngleStepDegrees < 0 {
		return fmt.Errorf("cache quantization steps must be >= 0, got %v px / %v deg", c.Cache.PositionStep, c.Cache.AngleStepDegrees)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	return nil
}

// DefaultConfig returns the built-in presets: a flashlight cone, a wider
// lantern and a near-black blackout.
func DefaultConfig() *Config {
	return &Config{
		DefaultPreset: "flashlight",
		Presets: []Preset{
			{
				Name:               "flashlight",
				SectorRadius:       360,
				SectorAngleDegrees: 60,
				CircleRadius:       48,
				LightColor:         HexColor{255, 220, 160, 255},
				DarknessAlpha:      235,
				LightIntensity:     235,
				RayCount:           90,
				EdgeSoftness:       4,
			},
			{
				Name:               "lantern",
				SectorRadius:       220,
				SectorAngleDegrees: 100,
				CircleRadius:       96,
				LightColor:         HexColor{255, 200, 100, 255},
				DarknessAlpha:      220,
				LightIntensity:     200,
				RayCount:           120,
				EdgeSoftness:       8,
			},
			{
				Name:               "blackout",
				SectorRadius:       420,
				SectorAngleDegrees: 40,
				CircleRadius:       32,
				LightColor:         HexColor{200, 220, 255, 255},
				DarknessAlpha:      250,
				LightIntensity:     250,
				RayCount:           72,
			},
		},
		Cache: CacheConfig{
			Enabled:          true,
			Capacity:         DefaultCacheCapacity,
			PositionStep:     DefaultPositionStep,
			AngleStepDegrees: DefaultAngleStepDegrees,
		},
		Workers: 1,
	}
}

// LoadConfig loads lighting config from a JSON file. A missing file yields the
// defaults; a present file is overlaid on the defaults and validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read lighting config: %w", err)
	}

	config := DefaultConfig()
	defaults := config.Presets
	// Presets in the file replace the built-in set rather than merging into it.
	config.Presets = nil
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse lighting config %s: %w", path, err)
	}
	if config.Presets == nil {
		config.Presets = defaults
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lighting config %s: %w", path, err)
	}
	return config, nil
}

// HexColor is a colour written as "RRGGBB" (or "#RRGGBB") in config files.
type HexColor color.NRGBA

// NRGBA returns the colour as an opaque color.NRGBA.
func (c HexColor) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

func (c HexColor) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B))
}

func (c *HexColor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("light colour must be a string: %w", err)
	}
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return fmt.Errorf("light colour %q must be RRGGBB", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return fmt.Errorf("light colour %q: %w", s, err)
	}
	*c = HexColor{R: r, G: g, B: b, A: 255}
	return nil
}
