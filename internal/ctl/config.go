package ctl

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config fetches and displays the process's running configuration.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	// Decode into a generic map to preserve all fields for both display modes.
	var raw json.RawMessage
	if err := getJSON(baseURL, "/api/config", &raw); err != nil {
		return err
	}

	if jsonOutput {
		var v any
		_ = json.Unmarshal(raw, &v)
		return printJSON(v)
	}

	// Decode into ordered sections for human-readable output.
	var cfg struct {
		Data struct {
			CacheDir string `json:"cache_dir"`
		} `json:"data"`
		Logging struct {
			Level string `json:"level"`
		} `json:"logging"`
		Server struct {
			Bind string `json:"bind"`
		} `json:"server"`
		Catalog struct {
			URL          string `json:"url"`
			Format       string `json:"format"`
			Backend      string `json:"backend"`
			NamePrefix   string `json:"name_prefix"`
			RefreshHours int    `json:"refresh_hours"`
		} `json:"catalog"`
		Simulation struct {
			Date          string  `json:"date"`
			StepSeconds   int     `json:"step_seconds"`
			Partitions    int     `json:"partitions"`
			MinElevation  float64 `json:"min_elevation"`
			ProgressEvery int     `json:"progress_every"`
		} `json:"simulation"`
		Grid struct {
			Kind            string `json:"kind"`
			Resolution      int    `json:"resolution"`
			PolygonVertices int    `json:"polygon_vertices"`
		} `json:"grid"`
		Output struct {
			Dir      string `json:"dir"`
			Compress bool   `json:"compress"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  RUNNING CONFIGURATION"))
	fmt.Fprintln(stdout, rule(50))

	section := func(name string) {
		fmt.Fprintf(stdout, "\n  %s\n", colorize(bold, "["+name+"]"))
	}
	field := func(key string, val any) {
		fmt.Fprintf(stdout, "    %-20s %v\n", colorize(dim, key+":"), val)
	}

	section("data")
	field("cache_dir", cfg.Data.CacheDir)

	section("logging")
	field("level", cfg.Logging.Level)

	section("server")
	field("bind", cfg.Server.Bind)

	section("catalog")
	field("url", cfg.Catalog.URL)
	field("format", cfg.Catalog.Format)
	field("backend", cfg.Catalog.Backend)
	field("name_prefix", cfg.Catalog.NamePrefix)
	field("refresh_hours", cfg.Catalog.RefreshHours)

	section("simulation")
	field("date", cfg.Simulation.Date)
	field("step_seconds", cfg.Simulation.StepSeconds)
	field("partitions", cfg.Simulation.Partitions)
	field("min_elevation", cfg.Simulation.MinElevation)
	field("progress_every", cfg.Simulation.ProgressEvery)

	section("grid")
	field("kind", cfg.Grid.Kind)
	field("resolution", cfg.Grid.Resolution)
	field("polygon_vertices", cfg.Grid.PolygonVertices)

	section("output")
	field("dir", cfg.Output.Dir)
	field("compress", cfg.Output.Compress)

	fmt.Fprintln(stdout)

	return nil
}
