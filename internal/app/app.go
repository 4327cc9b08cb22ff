// Package app wires one coverage process together: catalog loading,
// propagation, grid mapping, the time-window driver, and output. When a bind
// address is configured it also serves a read-only status API, a WebSocket
// event stream, and Prometheus metrics for the duration of the run.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/large-farva/coverage-engine/internal/catalog"
	"github.com/large-farva/coverage-engine/internal/config"
	"github.com/large-farva/coverage-engine/internal/coverage"
	"github.com/large-farva/coverage-engine/internal/grid"
	"github.com/large-farva/coverage-engine/internal/metrics"
	"github.com/large-farva/coverage-engine/internal/propagate"
	"github.com/large-farva/coverage-engine/internal/scheduler"
	"github.com/large-farva/coverage-engine/internal/telemetry"
	"github.com/large-farva/coverage-engine/internal/ws"
)

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     *log.Logger
	Cfg        config.Config
	ConfigPath string
	Bind       string // overrides cfg.Server.Bind when set
	Process    int

	// RefreshCatalog downloads the catalog even when the cache is fresh.
	RefreshCatalog bool
}

// App is a single coverage process. It is the source of truth for the run
// state reported by the status server.
type App struct {
	log        *log.Logger
	cfg        config.Config
	configPath string
	bind       string
	process    int
	refresh    bool

	startedAt time.Time
	state     atomic.Value // current state string (BOOTING, RUNNING, etc.)
	serving   atomic.Bool

	wsHub *ws.Hub

	mu         sync.Mutex
	window     scheduler.Window
	satellites int
	progress   *telemetry.Progress
	summary    *telemetry.Summary
	runErr     string
}

// New creates an App in the BOOTING state. Call Run to start the process.
func New(opts Options) *App {
	bind := opts.Bind
	if bind == "" {
		bind = opts.Cfg.Server.Bind
	}
	a := &App{
		log:        opts.Logger,
		cfg:        opts.Cfg,
		configPath: opts.ConfigPath,
		bind:       bind,
		process:    opts.Process,
		refresh:    opts.RefreshCatalog,
		startedAt:  time.Now(),
		wsHub:      ws.NewHub(),
	}
	a.state.Store(telemetry.StateBooting)
	return a
}

// Run computes the coverage of this process's window and writes it to the
// output directory. It returns the output path. The status server, if
// enabled, lives exactly as long as Run.
func (a *App) Run(ctx context.Context) (string, error) {
	w, err := scheduler.PlanWindow(a.cfg, a.process)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	a.window = w
	a.mu.Unlock()

	if a.bind != "" {
		stop, err := a.serve(ctx)
		if err != nil {
			return "", err
		}
		defer stop()
	}

	out, err := a.run(ctx, w)
	if err != nil {
		a.mu.Lock()
		a.runErr = err.Error()
		a.mu.Unlock()
		a.transition(telemetry.StateFailed)
		a.logEvent("error", err.Error())
		return "", err
	}
	a.transition(telemetry.StateDone)
	return out, nil
}

func (a *App) run(ctx context.Context, w scheduler.Window) (string, error) {
	a.transition(telemetry.StateLoading)

	store := a.catalogStore()
	if a.refresh {
		if body, err := store.ForceRefresh(ctx); err != nil {
			a.log.Printf("catalog: forced refresh failed, falling back: %v", err)
		} else {
			a.log.Printf("catalog: refreshed %d bytes", len(body))
		}
	}
	sats, err := store.Load(ctx, a.cfg.Catalog.NamePrefix)
	if err != nil {
		return "", fmt.Errorf("load catalog: %w", err)
	}

	constellation, err := propagate.New(a.cfg.Catalog.Backend, sats, a.log)
	if err != nil {
		return "", err
	}
	metrics.SetSatellites(constellation.Len())
	a.mu.Lock()
	a.satellites = constellation.Len()
	a.mu.Unlock()
	a.logEvent("info", fmt.Sprintf("%d satellites ready (%s)", constellation.Len(), a.cfg.Catalog.Backend))

	mapper, err := grid.New(a.cfg.Grid.Kind, a.cfg.Grid.Resolution, a.cfg.Grid.PolygonVertices)
	if err != nil {
		return "", err
	}

	a.transition(telemetry.StateRunning)
	runner := scheduler.New(a.cfg, constellation, mapper, a.log)
	runner.OnProgress = a.onProgress

	cov, st, err := runner.Run(ctx, w)
	if err != nil {
		return "", err
	}

	a.transition(telemetry.StateWriting)
	name := coverage.FileName(mapper.Kind(), mapper.Resolution(), w.Process, a.cfg.Output.Compress)
	path := filepath.Join(a.cfg.Output.Dir, name)
	if err := cov.WriteFile(path); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	cs := cov.Stats()
	sum := telemetry.Summary{
		Event:        telemetry.NewEvent(telemetry.EventSummary, "coverage"),
		Process:      w.Process,
		Output:       path,
		Steps:        st.Steps,
		CoveredCells: cs.Cells,
		MaxCount:     cs.Max,
		Failures:     st.Failures(),
	}
	a.mu.Lock()
	a.summary = &sum
	a.mu.Unlock()
	a.publish("summary", sum)

	a.log.Printf("wrote %s: %d cells, counts %d..%d, %d satellite-steps skipped",
		path, cs.Cells, cs.Min, cs.Max, st.Failures())
	return path, nil
}

func (a *App) catalogStore() *catalog.Store {
	return catalog.NewStore(a.cfg.Catalog.URL, a.cfg.Data.CacheDir, a.cfg.Catalog.Format,
		a.cfg.CatalogMaxAge(), a.log)
}

// serve starts the status server and returns a function that shuts it down.
func (a *App) serve(ctx context.Context) (func(), error) {
	ln, err := net.Listen("tcp", a.bind)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	hubCtx, cancel := context.WithCancel(ctx)
	go a.wsHub.Run(hubCtx)
	go a.heartbeatLoop(hubCtx)
	a.serving.Store(true)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Printf("status server: %v", err)
		}
	}()
	a.log.Printf("status server listening on http://%s", ln.Addr())

	return func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
		cancel()
		a.serving.Store(false)
	}, nil
}

// routes builds the status server mux.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/catalog", a.handleCatalog)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/ws", a.wsHub.Handler())
	return mux
}

// transition updates the run state and broadcasts the change to all
// connected WebSocket clients.
func (a *App) transition(newState string) {
	old := a.state.Swap(newState).(string)
	if old == newState {
		return
	}
	a.log.Printf("state %s -> %s", old, newState)
	a.publish("state", telemetry.StateTransition{
		Event: telemetry.NewEvent(telemetry.EventState, "coverage"),
		From:  old,
		To:    newState,
	})
}

func (a *App) onProgress(p telemetry.Progress) {
	a.mu.Lock()
	a.progress = &p
	a.mu.Unlock()
	a.publish("progress", p)
}

func (a *App) logEvent(level, msg string) {
	a.publish("", telemetry.LogLine{
		Event:   telemetry.NewEvent(telemetry.EventLog, "coverage"),
		Level:   level,
		Message: msg,
	})
}

// publish forwards an event to the hub while the status server is up. A
// non-empty key makes the event sticky for clients that connect later.
func (a *App) publish(key string, v any) {
	if !a.serving.Load() {
		return
	}
	if key == "" {
		a.wsHub.Publish(v)
		return
	}
	a.wsHub.PublishSticky(key, v)
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.wsHub.Publish(telemetry.Heartbeat{
				Event:         telemetry.NewEvent(telemetry.EventHeartbeat, "coverage"),
				State:         a.state.Load().(string),
				UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
			})
		}
	}
}
