package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestDefaultWindowMath(t *testing.T) {
	cfg := Default()
	if got := cfg.TotalSteps(); got != 1440 {
		t.Errorf("TotalSteps() = %d, want 1440", got)
	}
	if got := cfg.Step(); got != time.Minute {
		t.Errorf("Step() = %v, want 1m", got)
	}
	want := time.Date(2020, 6, 20, 0, 0, 0, 0, time.UTC)
	if got := cfg.SimulationDate(); !got.Equal(want) {
		t.Errorf("SimulationDate() = %v, want %v", got, want)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coverage.toml")
	body := `
[simulation]
date = "2021-01-02"
min_elevation = 25.0

[grid]
kind = "s2"
resolution = 9
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Simulation.Date != "2021-01-02" {
		t.Errorf("date = %q", cfg.Simulation.Date)
	}
	if cfg.Simulation.MinElevation != 25 {
		t.Errorf("min_elevation = %v", cfg.Simulation.MinElevation)
	}
	if cfg.Grid.Kind != "s2" || cfg.Grid.Resolution != 9 {
		t.Errorf("grid = %+v", cfg.Grid)
	}
	// Untouched sections keep their defaults.
	if cfg.Simulation.Partitions != 4 {
		t.Errorf("partitions = %d, want default 4", cfg.Simulation.Partitions)
	}
	if cfg.Catalog.Backend != "sgp4" {
		t.Errorf("backend = %q, want default sgp4", cfg.Catalog.Backend)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad date", func(c *Config) { c.Simulation.Date = "20/06/2020" }, "simulation.date"},
		{"zero step", func(c *Config) { c.Simulation.StepSeconds = 0 }, "step_seconds"},
		{"uneven step", func(c *Config) { c.Simulation.StepSeconds = 7 }, "step_seconds"},
		{"no partitions", func(c *Config) { c.Simulation.Partitions = 0 }, "partitions"},
		{"elevation 90", func(c *Config) { c.Simulation.MinElevation = 90 }, "min_elevation"},
		{"negative elevation", func(c *Config) { c.Simulation.MinElevation = -1 }, "min_elevation"},
		{"unknown grid", func(c *Config) { c.Grid.Kind = "geohash" }, "grid.kind"},
		{"h3 resolution", func(c *Config) { c.Grid.Resolution = 16 }, "grid.resolution"},
		{"s2 level", func(c *Config) { c.Grid.Kind = "s2"; c.Grid.Resolution = 31 }, "grid.resolution"},
		{"polygon", func(c *Config) { c.Grid.PolygonVertices = 2 }, "polygon_vertices"},
		{"backend", func(c *Config) { c.Catalog.Backend = "skyfield" }, "catalog.backend"},
		{"omm with go-satellite", func(c *Config) { c.Catalog.Format = "omm"; c.Catalog.Backend = "go-satellite" }, "go-satellite"},
		{"format", func(c *Config) { c.Catalog.Format = "xml" }, "catalog.format"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"output dir", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestExampleFileMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "coverage.example.toml"))
	if err != nil {
		t.Fatalf("Load example: %v", err)
	}
	if cfg != Default() {
		t.Errorf("example config drifted from defaults:\n got %+v\nwant %+v", cfg, Default())
	}
}
