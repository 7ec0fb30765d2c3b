package lighting

import (
	"math"

	"github.com/zyedidia/generic/cache"

	"chosenoffset.com/lightcone/internal/core/shadows"
)

// Default quantization and capacity. A 2px / 0.5° bucket is below what is
// visible at 60 Hz for the radii the presets use.
const (
	DefaultCacheCapacity    = 256
	DefaultPositionStep     = 2.0
	DefaultAngleStepDegrees = 0.5
)

// CacheConfig tunes the visibility cache.
type CacheConfig struct {
	Enabled          bool    `json:"enabled"`
	Capacity         int     `json:"capacity"`
	PositionStep     float64 `json:"position_step"`      // world pixels per anchor bucket
	AngleStepDegrees float64 `json:"angle_step_degrees"` // degrees per facing bucket
}

// CacheStats are the visibility cache performance counters.
type CacheStats struct {
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Invalidations uint64
	Entries       int
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type cacheKey struct {
	kind    Kind
	qx, qy  int64
	qa      int64
	reach   uint64 // float bits
	spread  uint64 // float bits
	rays    int
	version uint64
}

type cacheEntry struct {
	poly  Polygon
	frame uint64 // last frame the entry was served
}

// Cache memoizes traced polygons by quantized pose, shape geometry and grid
// version. A hit returns the polygon traced from the first anchor seen in the
// bucket; callers rebase it onto the current anchor using Polygon.Origin.
type Cache struct {
	cfg     CacheConfig
	tracer  *Tracer
	lru     *cache.Cache[cacheKey, cacheEntry]
	lastKey map[string]cacheKey
	frame   uint64
	stats   CacheStats
}

// NewCache creates a visibility cache in front of tracer. Zero or negative
// tuning values fall back to the defaults.
func NewCache(cfg CacheConfig, tracer *Tracer) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCacheCapacity
	}
	if !(cfg.PositionStep > 0) {
		cfg.PositionStep = DefaultPositionStep
	}
	if !(cfg.AngleStepDegrees > 0) {
		cfg.AngleStepDegrees = DefaultAngleStepDegrees
	}
	if tracer == nil {
		tracer = &Tracer{}
	}
	return &Cache{
		cfg:     cfg,
		tracer:  tracer,
		lru:     cache.New[cacheKey, cacheEntry](cfg.Capacity),
		lastKey: make(map[string]cacheKey),
	}
}

// Tracer returns the tracer used on misses.
func (c *Cache) Tracer() *Tracer { return c.tracer }

// Enabled reports whether lookups are memoized.
func (c *Cache) Enabled() bool { return c.cfg.Enabled }

// SetEnabled toggles memoization. Disabling drops all entries.
func (c *Cache) SetEnabled(enabled bool) {
	if c.cfg.Enabled && !enabled {
		c.Invalidate()
	}
	c.cfg.Enabled = enabled
}

// Tick marks the start of a new frame.
func (c *Cache) Tick() { c.frame++ }

// GetOrCompute returns the visibility polygon for the light's current pose.
// A light without a finite anchor gets an empty polygon and nothing is stored.
func (c *Cache) GetOrCompute(l *Light, grid *shadows.Grid) Polygon {
	if !finite(l.X) || !finite(l.Y) {
		c.stats.Misses++
		return Polygon{}
	}
	if !c.cfg.Enabled {
		c.stats.Misses++
		return c.tracer.Trace(l, grid)
	}

	key := c.keyFor(l, grid)
	if entry, ok := c.lru.Get(key); ok {
		c.stats.Hits++
		entry.frame = c.frame
		c.lru.Put(key, entry)
		c.lastKey[l.ID] = key
		return entry.poly
	}

	c.stats.Misses++
	c.dropPrevious(l.ID, key)

	poly := c.tracer.Trace(l, grid)
	if c.lru.Size() >= c.cfg.Capacity {
		c.stats.Evictions++
	}
	c.lru.Put(key, cacheEntry{poly: poly, frame: c.frame})
	c.lastKey[l.ID] = key
	return poly
}

// dropPrevious removes the entry a moving light left behind, unless another
// light has already used it this frame.
func (c *Cache) dropPrevious(id string, next cacheKey) {
	prev, ok := c.lastKey[id]
	if !ok || prev == next {
		return
	}
	if entry, ok := c.lru.Get(prev); ok && entry.frame < c.frame {
		c.lru.Remove(prev)
	}
}

// Forget drops the bookkeeping for a light that is no longer registered.
func (c *Cache) Forget(id string) {
	delete(c.lastKey, id)
}

// Invalidate drops every cached polygon.
func (c *Cache) Invalidate() {
	c.lru = cache.New[cacheKey, cacheEntry](c.cfg.Capacity)
	clear(c.lastKey)
	c.stats.Invalidations++
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() CacheStats {
	s := c.stats
	s.Entries = c.lru.Size()
	return s
}

// ResetStats zeroes the counters without touching cached entries.
func (c *Cache) ResetStats() {
	c.stats = CacheStats{}
}

func (c *Cache) keyFor(l *Light, grid *shadows.Grid) cacheKey {
	key := cacheKey{
		kind:    l.Shape.Kind(),
		qx:      quantize(l.X, c.cfg.PositionStep),
		qy:      quantize(l.Y, c.cfg.PositionStep),
		reach:   math.Float64bits(l.Shape.Reach()),
		spread:  math.Float64bits(l.Shape.Spread()),
		rays:    c.tracer.rayCount(),
		version: grid.Version(),
	}
	if !l.Shape.Closed() {
		step := c.cfg.AngleStepDegrees * math.Pi / 180
		facing := l.Facing
		if !finite(facing) {
			facing = 0
		}
		key.qa = quantize(shadows.NormalizeAngle(facing), step)
	}
	return key
}

func quantize(v, step float64) int64 {
	if !finite(v) {
		return 0
	}
	return int64(math.Floor(v / step))
}
