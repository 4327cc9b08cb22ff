package ctl

import (
	"fmt"
	"strings"
	"time"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name          string `json:"name"`
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Process       int    `json:"process"`
	Partitions    int    `json:"partitions"`
	WindowStart   string `json:"window_start"`
	WindowEnd     string `json:"window_end"`
	Steps         int    `json:"steps"`
	Satellites    int    `json:"satellites"`
	Grid          string `json:"grid"`
	Resolution    int    `json:"resolution"`
	Progress      *struct {
		Step         int     `json:"step"`
		Steps        int     `json:"steps"`
		SimTime      string  `json:"sim_time"`
		Percent      float64 `json:"percent"`
		CoveredCells int     `json:"covered_cells"`
		Failures     int     `json:"failures"`
	} `json:"progress,omitempty"`
	Summary *struct {
		Output       string `json:"output"`
		CoveredCells int    `json:"covered_cells"`
		MaxCount     int    `json:"max_count"`
	} `json:"summary,omitempty"`
	Error     string `json:"error,omitempty"`
	OutputDir string `json:"output_dir"`
	Disk      *struct {
		AvailableBytes int64 `json:"available_bytes"`
	} `json:"disk,omitempty"`
	WSClients int   `json:"ws_clients"`
	WSDropped int64 `json:"ws_dropped"`
}

// Status fetches the process status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  COVERAGE ENGINE STATUS"))
	fmt.Fprintln(stdout, rule(46))
	fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "State:"), colorize(stateColor(s.State), s.State))
	fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Fprintf(stdout, "  %-12s %d of %d\n", colorize(dim, "Process:"), s.Process, s.Partitions)
	fmt.Fprintf(stdout, "  %-12s %s .. %s (%d steps)\n", colorize(dim, "Window:"), s.WindowStart, s.WindowEnd, s.Steps)
	fmt.Fprintf(stdout, "  %-12s %s res %d\n", colorize(dim, "Grid:"), s.Grid, s.Resolution)
	fmt.Fprintf(stdout, "  %-12s %d\n", colorize(dim, "Satellites:"), s.Satellites)

	if p := s.Progress; p != nil {
		fmt.Fprintf(stdout, "  %-12s [%s] %3.0f%%  step %d/%d  %s\n",
			colorize(dim, "Progress:"), progressBar(int(p.Percent), 20), p.Percent, p.Step, p.Steps, p.SimTime)
		fmt.Fprintf(stdout, "  %-12s %d cells, %d skipped satellite-steps\n",
			colorize(dim, "Covered:"), p.CoveredCells, p.Failures)
	}
	if sum := s.Summary; sum != nil {
		fmt.Fprintf(stdout, "  %-12s %s (%d cells, max count %d)\n",
			colorize(dim, "Output:"), sum.Output, sum.CoveredCells, sum.MaxCount)
	} else {
		fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Output dir:"), s.OutputDir)
	}
	if s.Disk != nil {
		fmt.Fprintf(stdout, "  %-12s %s free\n", colorize(dim, "Disk:"), formatBytes(s.Disk.AvailableBytes))
	}
	if s.Error != "" {
		fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Error:"), colorize(red, s.Error))
	}
	fmt.Fprintf(stdout, "  %-12s %d watching, %d events dropped\n", colorize(dim, "Clients:"), s.WSClients, s.WSDropped)
	fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Host:"), baseURL)
	fmt.Fprintln(stdout)

	return nil
}
