// Package config handles loading, defaulting, and validation of the coverage
// engine TOML configuration file. Every section maps to a typed struct so the
// rest of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DateLayout is the layout of simulation.date.
const DateLayout = "2006-01-02"

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Data       DataConfig       `toml:"data"       json:"data"`
	Logging    LoggingConfig    `toml:"logging"    json:"logging"`
	Server     ServerConfig     `toml:"server"     json:"server"`
	Catalog    CatalogConfig    `toml:"catalog"    json:"catalog"`
	Simulation SimulationConfig `toml:"simulation" json:"simulation"`
	Grid       GridConfig       `toml:"grid"       json:"grid"`
	Output     OutputConfig     `toml:"output"     json:"output"`
}

type DataConfig struct {
	CacheDir string `toml:"cache_dir" json:"cache_dir"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
}

// ServerConfig controls the optional read-only status server. An empty bind
// address disables it.
type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

type CatalogConfig struct {
	URL          string `toml:"url"           json:"url"`
	Format       string `toml:"format"        json:"format"`  // "tle" or "omm"
	Backend      string `toml:"backend"       json:"backend"` // "sgp4" or "go-satellite"
	NamePrefix   string `toml:"name_prefix"   json:"name_prefix"`
	RefreshHours int    `toml:"refresh_hours" json:"refresh_hours"`
}

type SimulationConfig struct {
	Date          string  `toml:"date"           json:"date"`
	StepSeconds   int     `toml:"step_seconds"   json:"step_seconds"`
	Partitions    int     `toml:"partitions"     json:"partitions"`
	MinElevation  float64 `toml:"min_elevation"  json:"min_elevation"`
	ProgressEvery int     `toml:"progress_every" json:"progress_every"`
}

type GridConfig struct {
	Kind            string `toml:"kind"             json:"kind"` // "h3" or "s2"
	Resolution      int    `toml:"resolution"       json:"resolution"`
	PolygonVertices int    `toml:"polygon_vertices" json:"polygon_vertices"`
}

type OutputConfig struct {
	Dir      string `toml:"dir"      json:"dir"`
	Compress bool   `toml:"compress" json:"compress"`
}

// Default returns a Config populated with the values of the reference run:
// the Starlink group on 2020-06-20, one-minute steps, quarter-day partitions,
// a 35 degree terminal elevation and H3 resolution 4.
func Default() Config {
	return Config{
		Data: DataConfig{
			CacheDir: "./tle_cache",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Catalog: CatalogConfig{
			URL:          "https://celestrak.org/NORAD/elements/gp.php?GROUP=starlink&FORMAT=tle",
			Format:       "tle",
			Backend:      "sgp4",
			RefreshHours: 24,
		},
		Simulation: SimulationConfig{
			Date:          "2020-06-20",
			StepSeconds:   60,
			Partitions:    4,
			MinElevation:  35,
			ProgressEvery: 30,
		},
		Grid: GridConfig{
			Kind:            "h3",
			Resolution:      4,
			PolygonVertices: 20,
		},
		Output: OutputConfig{
			Dir: ".",
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks every constraint the run depends on.
func Validate(cfg Config) error {
	if cfg.Data.CacheDir == "" {
		return errors.New("data.cache_dir must not be empty")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", cfg.Logging.Level)
	}
	if cfg.Catalog.URL == "" {
		return errors.New("catalog.url must not be empty")
	}
	if cfg.Catalog.Format != "tle" && cfg.Catalog.Format != "omm" {
		return fmt.Errorf("catalog.format %q must be tle or omm", cfg.Catalog.Format)
	}
	if cfg.Catalog.Backend != "sgp4" && cfg.Catalog.Backend != "go-satellite" {
		return fmt.Errorf("catalog.backend %q must be sgp4 or go-satellite", cfg.Catalog.Backend)
	}
	if cfg.Catalog.Backend == "go-satellite" && cfg.Catalog.Format != "tle" {
		return errors.New("catalog.backend go-satellite needs catalog.format tle")
	}
	if cfg.Catalog.RefreshHours < 1 {
		return errors.New("catalog.refresh_hours must be >= 1")
	}
	if _, err := time.Parse(DateLayout, cfg.Simulation.Date); err != nil {
		return fmt.Errorf("simulation.date must be YYYY-MM-DD: %w", err)
	}
	if cfg.Simulation.StepSeconds <= 0 || 86400%cfg.Simulation.StepSeconds != 0 {
		return errors.New("simulation.step_seconds must be > 0 and divide a day evenly")
	}
	if cfg.Simulation.Partitions < 1 {
		return errors.New("simulation.partitions must be >= 1")
	}
	if cfg.Simulation.Partitions > cfg.TotalSteps() {
		return errors.New("simulation.partitions must not exceed the number of steps in a day")
	}
	if cfg.Simulation.MinElevation < 0 || cfg.Simulation.MinElevation >= 90 {
		return errors.New("simulation.min_elevation must be in [0, 90)")
	}
	if cfg.Simulation.ProgressEvery < 1 {
		return errors.New("simulation.progress_every must be >= 1")
	}
	switch cfg.Grid.Kind {
	case "h3":
		if cfg.Grid.Resolution < 0 || cfg.Grid.Resolution > 15 {
			return errors.New("grid.resolution must be between 0 and 15 for h3")
		}
		if cfg.Grid.PolygonVertices < 3 {
			return errors.New("grid.polygon_vertices must be >= 3")
		}
	case "s2":
		if cfg.Grid.Resolution < 0 || cfg.Grid.Resolution > 30 {
			return errors.New("grid.resolution must be between 0 and 30 for s2")
		}
	default:
		return fmt.Errorf("grid.kind %q must be h3 or s2", cfg.Grid.Kind)
	}
	if cfg.Output.Dir == "" {
		return errors.New("output.dir must not be empty")
	}
	return nil
}

// SimulationDate returns midnight UTC of simulation.date. The date is assumed
// to have passed Validate.
func (c Config) SimulationDate() time.Time {
	d, _ := time.Parse(DateLayout, c.Simulation.Date)
	return d.UTC()
}

// Step returns the simulation step as a duration.
func (c Config) Step() time.Duration {
	return time.Duration(c.Simulation.StepSeconds) * time.Second
}

// TotalSteps is the number of steps in one simulated day.
func (c Config) TotalSteps() int {
	if c.Simulation.StepSeconds <= 0 {
		return 0
	}
	return 86400 / c.Simulation.StepSeconds
}

// CatalogMaxAge is how long a cached catalog is considered fresh.
func (c Config) CatalogMaxAge() time.Duration {
	return time.Duration(c.Catalog.RefreshHours) * time.Hour
}
