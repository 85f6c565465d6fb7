// Package config loads the hexburg process configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/hexburg/internal/economy"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full process configuration, as read from YAML.
type Config struct {
	Server     Server     `yaml:"server"`
	Simulation Simulation `yaml:"simulation"`
	World      World      `yaml:"world"`

	CatalogFile       string                   `yaml:"catalog_file"`  // empty = embedded default
	DatabasePath      string                   `yaml:"database_path"` // empty = no persistence
	SnapshotDir       string                   `yaml:"snapshot_dir"`
	StartingResources map[economy.Resource]int `yaml:"starting_resources"`
	LogLevel          string                   `yaml:"log_level"`
}

// Server configures the HTTP API.
type Server struct {
	Port     int    `yaml:"port"`
	AdminKey string `yaml:"admin_key"` // empty = POST endpoints disabled
}

// Simulation configures the tick engine and the world rules it runs.
type Simulation struct {
	TickInterval       time.Duration `yaml:"tick_interval"`
	StepSeconds        float64       `yaml:"step_seconds"`
	Speed              float64       `yaml:"speed"`
	ReportEveryTicks   uint64        `yaml:"report_every_ticks"`
	AutosaveEveryTicks uint64        `yaml:"autosave_every_ticks"`
	StrictInvariants   bool          `yaml:"strict_invariants"`
	Seed               int64         `yaml:"seed"`
}

// World configures the terrain the city is built on.
type World struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	WaterLevel  float64 `yaml:"water_level"`
	Lakes       bool    `yaml:"lakes"`
	TerrainFile string  `yaml:"terrain_file"` // rows of 0/1; overrides generation
}

// Default returns a configuration that runs a small settlement with no
// persistence.
func Default() Config {
	return Config{
		Server: Server{Port: 8080},
		Simulation: Simulation{
			TickInterval:       100 * time.Millisecond,
			StepSeconds:        0.1,
			Speed:              1,
			ReportEveryTicks:   600,
			AutosaveEveryTicks: 3000,
		},
		World: World{
			Width:      32,
			Height:     32,
			WaterLevel: 0.28,
			Lakes:      true,
		},
		SnapshotDir: "snapshots",
		StartingResources: map[economy.Resource]int{
			"wood":  40,
			"stone": 20,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HEXBURG_ADMIN_KEY"); v != "" {
		c.Server.AdminKey = v
	}
	if v := os.Getenv("HEXBURG_DB"); v != "" {
		c.DatabasePath = v
	}
}

// Validate rejects values the simulation cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d: %w", c.Server.Port, ErrInvalid)
	case c.Simulation.TickInterval <= 0:
		return fmt.Errorf("simulation.tick_interval %v: %w", c.Simulation.TickInterval, ErrInvalid)
	case c.Simulation.StepSeconds <= 0:
		return fmt.Errorf("simulation.step_seconds %v: %w", c.Simulation.StepSeconds, ErrInvalid)
	case c.Simulation.Speed < 0:
		return fmt.Errorf("simulation.speed %v: %w", c.Simulation.Speed, ErrInvalid)
	case c.World.TerrainFile == "" && (c.World.Width <= 0 || c.World.Height <= 0):
		return fmt.Errorf("world size %dx%d: %w", c.World.Width, c.World.Height, ErrInvalid)
	}
	for r, n := range c.StartingResources {
		if n < 0 {
			return fmt.Errorf("starting_resources.%s = %d: %w", r, n, ErrInvalid)
		}
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level %q: %w", c.LogLevel, ErrInvalid)
}
