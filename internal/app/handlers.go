package app

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/large-farva/coverage-engine/internal/coverage"
	"github.com/large-farva/coverage-engine/internal/telemetry"
)

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// statusResponse is the body of GET /api/status.
type statusResponse struct {
	Name          string     `json:"name"`
	State         string     `json:"state"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	Process       int        `json:"process"`
	Partitions    int        `json:"partitions"`
	WindowStart   string     `json:"window_start"`
	WindowEnd     string     `json:"window_end"`
	Steps         int        `json:"steps"`
	Satellites    int        `json:"satellites"`
	Grid          string     `json:"grid"`
	Resolution    int        `json:"resolution"`
	Progress      any        `json:"progress,omitempty"`
	Summary       any        `json:"summary,omitempty"`
	Error         string     `json:"error,omitempty"`
	OutputDir     string     `json:"output_dir"`
	Disk          *diskStats `json:"disk,omitempty"`
	WSClients     int        `json:"ws_clients"`
	WSDropped     int64      `json:"ws_dropped"`
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	a.mu.Lock()
	resp := statusResponse{
		Name:          "coverage-engine",
		State:         a.state.Load().(string),
		UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
		Process:       a.window.Process,
		Partitions:    a.window.Partitions,
		WindowStart:   a.window.Start.Format(time.RFC3339),
		WindowEnd:     a.window.End().Format(time.RFC3339),
		Steps:         a.window.Steps,
		Satellites:    a.satellites,
		Grid:          a.cfg.Grid.Kind,
		Resolution:    a.cfg.Grid.Resolution,
		Error:         a.runErr,
		OutputDir:     a.cfg.Output.Dir,
		WSClients:     a.wsHub.Clients(),
		WSDropped:     a.wsHub.Dropped(),
	}
	if a.progress != nil {
		resp.Progress = *a.progress
	}
	if a.summary != nil {
		resp.Summary = *a.summary
	}
	a.mu.Unlock()

	resp.Disk = diskUsage(a.cfg.Output.Dir)

	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, versionInfo())
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.cfg)
}

func (a *App) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	path := a.catalogStore().CachePath()
	a.mu.Lock()
	sats := a.satellites
	a.mu.Unlock()

	resp := map[string]any{
		"path":          path,
		"exists":        false,
		"source_url":    a.cfg.Catalog.URL,
		"format":        a.cfg.Catalog.Format,
		"backend":       a.cfg.Catalog.Backend,
		"name_prefix":   a.cfg.Catalog.NamePrefix,
		"max_age_hours": a.cfg.Catalog.RefreshHours,
		"satellites":    sats,
	}
	if info, err := os.Stat(path); err == nil {
		age := time.Since(info.ModTime())
		resp["exists"] = true
		resp["fresh"] = age < a.cfg.CatalogMaxAge()
		resp["mod_time"] = info.ModTime().UTC().Format(time.RFC3339)
		resp["age_s"] = int(age.Seconds())
		resp["size"] = info.Size()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealthDetailed reports whether the output directory is writable,
// whether the catalog cache exists and is fresh, and whether the run failed.
func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]any{}
	allOK := true

	tmpPath := filepath.Join(a.cfg.Output.Dir, ".healthcheck")
	if err := os.WriteFile(tmpPath, []byte("ok"), 0o644); err != nil {
		checks["output_dir"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		os.Remove(tmpPath)
		checks["output_dir"] = map[string]any{"ok": true, "path": a.cfg.Output.Dir}
	}

	cachePath := a.catalogStore().CachePath()
	if info, err := os.Stat(cachePath); err != nil {
		// Absent until LOADING_CATALOG.
		checks["catalog_cache"] = map[string]any{"ok": false, "error": "cache file not found"}
		if a.state.Load().(string) != telemetry.StateBooting {
			allOK = false
		}
	} else {
		age := time.Since(info.ModTime())
		checks["catalog_cache"] = map[string]any{
			"ok":    true,
			"age_s": int(age.Seconds()),
			"fresh": age < a.cfg.CatalogMaxAge(),
		}
	}

	a.mu.Lock()
	runErr := a.runErr
	a.mu.Unlock()
	if runErr != "" {
		checks["run"] = map[string]any{"ok": false, "error": runErr}
		allOK = false
	} else {
		checks["run"] = map[string]any{"ok": true, "state": a.state.Load().(string)}
	}

	if a.cfg.Output.Dir != "" {
		name := coverage.FileName(a.cfg.Grid.Kind, a.cfg.Grid.Resolution, a.process, a.cfg.Output.Compress)
		checks["output_file"] = map[string]any{"path": filepath.Join(a.cfg.Output.Dir, name)}
	}

	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": a.configPath}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
