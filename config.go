package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// SimConfig holds the tuning constants of the simulation. Defaults match
// the values the game was balanced with; any of them can be overridden
// from a TOML file.
type SimConfig struct {
	TickIntervalMs int     `toml:"tick_interval_ms"`
	PlayerRadius   float64 `toml:"player_radius"`
	PlayerSpeed    float64 `toml:"player_speed"` // world units per second
	DashDistance   float64 `toml:"dash_distance"`
	DashCooldownMs int     `toml:"dash_cooldown_ms"`
	BulletRadius   float64 `toml:"bullet_radius"`
	BulletSpeed    float64 `toml:"bullet_speed"`
	BulletsMax     int     `toml:"bullets_max"`
	ReloadMs       int     `toml:"reload_ms"`
	WinningScore   int     `toml:"winning_score"`
	SpriteCount    int     `toml:"sprite_count"`
}

// Rect is an axis-aligned rectangle in tile units.
type Rect struct {
	X float64 `toml:"x"`
	Y float64 `toml:"y"`
	W float64 `toml:"w"`
	H float64 `toml:"h"`
}

// Point is a spawn position in world units.
type Point struct {
	X float64 `toml:"x"`
	Y float64 `toml:"y"`
}

// MapConfig describes the arena geometry. Walls are given in tile units
// and scaled by TileSize; the four boundary walls are derived from the
// Top/Left/Bottom/Right extents and BoundaryWidth.
type MapConfig struct {
	TileSize      float64 `toml:"tile_size"`
	Top           float64 `toml:"top"`
	Left          float64 `toml:"left"`
	Bottom        float64 `toml:"bottom"`
	Right         float64 `toml:"right"`
	BoundaryWidth float64 `toml:"boundary_width"`
	Walls         []Rect  `toml:"walls"`
	Spawns        []Point `toml:"spawns"`
}

// Config is the full server configuration.
type Config struct {
	Addr string    `toml:"addr"`
	Sim  SimConfig `toml:"sim"`
	Map  MapConfig `toml:"map"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr: ":4000",
		Sim: SimConfig{
			TickIntervalMs: 50,
			PlayerRadius:   20,
			PlayerSpeed:    200,
			DashDistance:   40,
			DashCooldownMs: 2000,
			BulletRadius:   9,
			BulletSpeed:    1000,
			BulletsMax:     3,
			ReloadMs:       3000,
			WinningScore:   5,
			SpriteCount:    9,
		},
		Map: MapConfig{
			TileSize:      64,
			Top:           0,
			Left:          0,
			Bottom:        34,
			Right:         17,
			BoundaryWidth: 200,
			Walls: []Rect{
				{X: 4, Y: 6, W: 4, H: 1},
				{X: 10, Y: 12, W: 1, H: 5},
				{X: 2, Y: 20, W: 5, H: 1},
				{X: 12, Y: 26, W: 4, H: 1},
				{X: 7, Y: 30, W: 3, H: 1},
			},
			Spawns: []Point{
				{X: 512, Y: 512},
				{X: 24, Y: 256},
				{X: 1001, Y: 750},
				{X: 1044, Y: 1140},
				{X: 120, Y: 820},
				{X: 610, Y: 1050},
				{X: 480, Y: 1100},
				{X: 60, Y: 1250},
				{X: 1002, Y: 256},
				{X: 512, Y: 2048},
				{X: 110, Y: 1875},
				{X: 1000, Y: 1875},
			},
		},
	}
}

// LoadConfig reads a TOML file over the defaults. An empty path returns
// the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configs the simulation cannot run with.
func (c *Config) Validate() error {
	if c.Sim.TickIntervalMs <= 0 {
		return fmt.Errorf("config: tick_interval_ms must be positive")
	}
	if c.Sim.BulletsMax <= 0 {
		return fmt.Errorf("config: bullets_max must be positive")
	}
	if c.Sim.WinningScore <= 0 {
		return fmt.Errorf("config: winning_score must be positive")
	}
	if len(c.Map.Spawns) == 0 {
		return fmt.Errorf("config: map needs at least one spawn point")
	}
	return nil
}

// TickInterval returns the tick period as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Sim.TickIntervalMs) * time.Millisecond
}

// ReloadDuration returns the reload timer length.
func (c *Config) ReloadDuration() time.Duration {
	return time.Duration(c.Sim.ReloadMs) * time.Millisecond
}

// DashCooldown returns the dash cooldown length.
func (c *Config) DashCooldown() time.Duration {
	return time.Duration(c.Sim.DashCooldownMs) * time.Millisecond
}
