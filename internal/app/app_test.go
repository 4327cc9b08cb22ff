package app

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/large-farva/coverage-engine/internal/config"
	"github.com/large-farva/coverage-engine/internal/coverage"
	"github.com/large-farva/coverage-engine/internal/telemetry"
)

const issTLE = `ISS (ZARYA)
1 25544U 98067A   25138.37048074  .00007749  00000+0  14567-3 0  9994
2 25544  51.6369  94.7823 0002558 120.7586  15.7840 15.49587957510533
`

var testLogger = log.New(io.Discard, "", 0)

// testConfig runs six hourly steps over the ISS epoch day at H3 resolution 3.
func testConfig(t *testing.T, catalogURL string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Data.CacheDir = t.TempDir()
	cfg.Catalog.URL = catalogURL
	cfg.Catalog.NamePrefix = "ISS"
	cfg.Simulation.Date = "2025-05-18"
	cfg.Simulation.StepSeconds = 3600
	cfg.Simulation.Partitions = 4
	cfg.Grid.Resolution = 3
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Compress = true
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func catalogServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunWritesPartitionFile(t *testing.T) {
	srv := catalogServer(t, http.StatusOK, issTLE)
	cfg := testConfig(t, srv.URL)

	a := New(Options{Logger: testLogger, Cfg: cfg, Process: 1})
	out, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if want := filepath.Join(cfg.Output.Dir, "h3_3_cov_1.txt.zst"); out != want {
		t.Errorf("output = %s, want %s", out, want)
	}

	cov, err := coverage.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if cov.Len() == 0 {
		t.Fatal("no cells covered")
	}
	st := cov.Stats()
	if st.Min < 1 || st.Max > 6 {
		t.Errorf("counts %d..%d outside [1, 6] for a six-step window", st.Min, st.Max)
	}

	if got := a.state.Load().(string); got != telemetry.StateDone {
		t.Errorf("state = %s, want %s", got, telemetry.StateDone)
	}
	if a.summary == nil || a.summary.Steps != 6 || a.summary.CoveredCells != cov.Len() {
		t.Errorf("summary = %+v", a.summary)
	}
}

func TestRunRefreshCatalogBypassesFreshCache(t *testing.T) {
	srv := catalogServer(t, http.StatusOK, issTLE)
	cfg := testConfig(t, srv.URL)

	// A fresh cache without any satellite matching the name prefix.
	stale := strings.Replace(issTLE, "ISS (ZARYA)", "TIANGONG", 1)
	cachePath := New(Options{Logger: testLogger, Cfg: cfg}).catalogStore().CachePath()
	if err := os.WriteFile(cachePath, []byte(stale), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(Options{Logger: testLogger, Cfg: cfg, Process: 0}).Run(context.Background()); err == nil {
		t.Fatal("expected the fresh cache to be used and yield no satellites")
	}

	a := New(Options{Logger: testLogger, Cfg: cfg, Process: 0, RefreshCatalog: true})
	if _, err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run with refresh: %v", err)
	}
	cached, err := os.ReadFile(cachePath)
	if err != nil || string(cached) != issTLE {
		t.Errorf("cache not rewritten by refresh: %v", err)
	}
}

func TestRunRejectsProcessOutOfRange(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	a := New(Options{Logger: testLogger, Cfg: cfg, Process: 4})
	if _, err := a.Run(context.Background()); err == nil {
		t.Fatal("expected error for process index 4 of 4")
	}
}

func TestRunFailsWhenCatalogUnavailable(t *testing.T) {
	srv := catalogServer(t, http.StatusInternalServerError, "")
	cfg := testConfig(t, srv.URL)

	a := New(Options{Logger: testLogger, Cfg: cfg, Process: 0})
	if _, err := a.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := a.state.Load().(string); got != telemetry.StateFailed {
		t.Errorf("state = %s, want %s", got, telemetry.StateFailed)
	}
	if a.runErr == "" {
		t.Error("run error not recorded")
	}
}

func TestHealthzPlain(t *testing.T) {
	a := New(Options{Logger: testLogger, Cfg: config.Default()})
	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Errorf("GET /healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestHealthzDetailedBeforeRun(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	a := New(Options{Logger: testLogger, Cfg: cfg})

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, req)

	var body struct {
		Healthy bool                      `json:"healthy"`
		Checks  map[string]map[string]any `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK || !body.Healthy {
		t.Errorf("healthy = %v (%d), checks = %v", body.Healthy, rec.Code, body.Checks)
	}
	if body.Checks["output_dir"]["ok"] != true {
		t.Errorf("output_dir check = %v", body.Checks["output_dir"])
	}
}

func TestStatusReportsWindow(t *testing.T) {
	srv := catalogServer(t, http.StatusOK, issTLE)
	cfg := testConfig(t, srv.URL)
	a := New(Options{Logger: testLogger, Cfg: cfg, Process: 2})
	if _, err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))

	var st statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.State != telemetry.StateDone || st.Process != 2 || st.Partitions != 4 {
		t.Errorf("status = %+v", st)
	}
	if st.WindowStart != "2025-05-18T12:00:00Z" || st.WindowEnd != "2025-05-18T18:00:00Z" {
		t.Errorf("window = %s..%s", st.WindowStart, st.WindowEnd)
	}
	if st.Satellites != 1 || st.Steps != 6 {
		t.Errorf("satellites/steps = %d/%d", st.Satellites, st.Steps)
	}
	if st.Summary == nil || st.Progress == nil {
		t.Error("summary and progress should be reported after the run")
	}
}

func TestVersionAndMetricsRoutes(t *testing.T) {
	a := New(Options{Logger: testLogger, Cfg: config.Default()})
	h := a.routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/version", nil))
	var v map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if v["version"] != Version {
		t.Errorf("version = %q, want %q", v["version"], Version)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d", rec.Code)
	}
}

func TestStatusServerBindsAndShutsDown(t *testing.T) {
	srv := catalogServer(t, http.StatusOK, issTLE)
	cfg := testConfig(t, srv.URL)
	a := New(Options{Logger: testLogger, Cfg: cfg, Bind: "127.0.0.1:0"})

	if _, err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.serving.Load() {
		t.Error("status server still marked as serving after Run")
	}
}
