// Package scheduler drives a coverage run over one partition of the
// simulated day. Each step propagates every satellite, maps its footprint to
// grid cells, unions the cells across satellites, and accumulates the union.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/large-farva/coverage-engine/internal/config"
	"github.com/large-farva/coverage-engine/internal/coverage"
	"github.com/large-farva/coverage-engine/internal/footprint"
	"github.com/large-farva/coverage-engine/internal/grid"
	"github.com/large-farva/coverage-engine/internal/metrics"
	"github.com/large-farva/coverage-engine/internal/propagate"
	"github.com/large-farva/coverage-engine/internal/telemetry"
)

// Window is the contiguous run of steps assigned to one process.
type Window struct {
	Process    int
	Partitions int
	Start      time.Time // instant of the first step
	Step       time.Duration
	Offset     int // steps past midnight of the first step
	Steps      int
}

// End is the instant just after the last step.
func (w Window) End() time.Time {
	return w.Start.Add(time.Duration(w.Steps) * w.Step)
}

// At is the instant of step i.
func (w Window) At(i int) time.Time {
	return w.Start.Add(time.Duration(i) * w.Step)
}

// PlanWindow splits the simulated day into cfg.Simulation.Partitions equal
// windows and returns the one for process. Steps left over by the integer
// division are not simulated by any process.
func PlanWindow(cfg config.Config, process int) (Window, error) {
	parts := cfg.Simulation.Partitions
	if parts < 1 {
		return Window{}, fmt.Errorf("partition count %d must be >= 1", parts)
	}
	if process < 0 || process >= parts {
		return Window{}, fmt.Errorf("process index %d out of range [0, %d)", process, parts)
	}

	perPartition := cfg.TotalSteps() / parts
	offset := process * perPartition
	step := cfg.Step()

	return Window{
		Process:    process,
		Partitions: parts,
		Start:      cfg.SimulationDate().Add(time.Duration(offset) * step),
		Step:       step,
		Offset:     offset,
		Steps:      perPartition,
	}, nil
}

// Positions yields every satellite's sub-satellite point at an instant.
type Positions interface {
	SubPoints(t time.Time) ([]propagate.SubPoint, error)
	Len() int
}

// Stats counts what happened during a run.
type Stats struct {
	Steps           int
	SatelliteSteps  int
	DomainErrors    int
	DegenerateCaps  int
	MaxStepCells    int
	ElapsedWallTime time.Duration
}

// Failures is the number of satellite-steps that were skipped.
func (s Stats) Failures() int {
	return s.DomainErrors + s.DegenerateCaps
}

// Runner owns the step loop. It holds no coverage state between runs; every
// call to Run builds and returns its own map.
type Runner struct {
	Positions     Positions
	Mapper        grid.Mapper
	Log           *log.Logger
	MinElevation  float64
	ProgressEvery int
	Verbose       bool

	// OnProgress, when set, receives a progress event every ProgressEvery
	// steps and after the last step.
	OnProgress func(telemetry.Progress)
}

// New creates a runner for the configured elevation threshold and progress
// cadence.
func New(cfg config.Config, positions Positions, mapper grid.Mapper, logger *log.Logger) *Runner {
	return &Runner{
		Positions:     positions,
		Mapper:        mapper,
		Log:           logger,
		MinElevation:  cfg.Simulation.MinElevation,
		ProgressEvery: cfg.Simulation.ProgressEvery,
		Verbose:       cfg.Logging.Level == "debug",
	}
}

// Run iterates every step of w and returns the accumulated coverage.
//
// A propagation failure or an empty covering aborts the run. Footprint
// domain errors and degenerate caps skip that satellite for that step; they
// are counted in Stats and logged, the first one per satellite at info level.
func (r *Runner) Run(ctx context.Context, w Window) (*coverage.Map, Stats, error) {
	cov := coverage.New()
	var st Stats
	started := time.Now()
	skipped := make(map[string]bool)

	every := r.ProgressEvery
	if every < 1 {
		every = 1
	}

	r.Log.Printf("scheduler: process %d/%d, %d steps of %s from %s, %d satellites, %s res %d",
		w.Process, w.Partitions, w.Steps, w.Step, w.Start.Format(time.RFC3339),
		r.Positions.Len(), r.Mapper.Kind(), r.Mapper.Resolution())

	for i := 0; i < w.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, st, err
		}

		at := w.At(i)
		if i%every == 0 {
			r.Log.Printf("scheduler: %s", at.Format(time.RFC3339))
		}

		stepStart := time.Now()
		set, err := r.step(at, &st, skipped)
		if err != nil {
			return nil, st, fmt.Errorf("step %d (%s): %w", w.Offset+i, at.Format(time.RFC3339), err)
		}
		cov.Accumulate(set)

		st.Steps++
		if set.Len() > st.MaxStepCells {
			st.MaxStepCells = set.Len()
		}
		metrics.ObserveStep(time.Since(stepStart), set.Len(), cov.Len())

		if (i+1)%every == 0 || i == w.Steps-1 {
			r.progress(w, i+1, at, set.Len(), cov.Len(), st.Failures())
		}
	}

	st.ElapsedWallTime = time.Since(started)
	r.Log.Printf("scheduler: done in %s, %d cells covered, %d satellite-steps skipped",
		st.ElapsedWallTime.Truncate(time.Millisecond), cov.Len(), st.Failures())
	return cov, st, nil
}

// step builds the union of every satellite's cells at one instant.
func (r *Runner) step(at time.Time, st *Stats, skipped map[string]bool) (coverage.StepSet, error) {
	points, err := r.Positions.SubPoints(at)
	if err != nil {
		return nil, err
	}

	set := coverage.NewStepSet()
	for _, p := range points {
		st.SatelliteSteps++

		cp, err := footprint.NewCap(p.Lat, p.Lng, p.AltKm, r.MinElevation)
		if err != nil {
			if errors.Is(err, footprint.ErrDomain) {
				st.DomainErrors++
				metrics.SatelliteFailure(metrics.ReasonDomain)
				r.skip(skipped, p, err)
				continue
			}
			return nil, err
		}

		cells, err := r.Mapper.CellsInCap(cp)
		switch {
		case err == nil:
		case errors.Is(err, grid.ErrDegenerateFootprint):
			st.DegenerateCaps++
			metrics.SatelliteFailure(metrics.ReasonDegenerate)
			r.skip(skipped, p, err)
			continue
		default:
			return nil, fmt.Errorf("%s: %w", p.Satellite, err)
		}

		set.Add(cells...)
	}
	return set, nil
}

func (r *Runner) progress(w Window, done int, at time.Time, stepCells, covered, failures int) {
	if r.OnProgress == nil {
		return
	}
	ev := telemetry.Progress{
		Event:        telemetry.NewEvent(telemetry.EventProgress, "scheduler"),
		Process:      w.Process,
		Step:         done,
		Steps:        w.Steps,
		SimTime:      at.Format(time.RFC3339),
		StepCells:    stepCells,
		CoveredCells: covered,
		Failures:     failures,
	}
	if w.Steps > 0 {
		ev.Percent = 100 * float64(done) / float64(w.Steps)
	}
	r.OnProgress(ev)
}

// skip logs a skipped satellite-step. Repeats for the same satellite only
// show up in verbose mode.
func (r *Runner) skip(seen map[string]bool, p propagate.SubPoint, err error) {
	key := p.Satellite.String()
	if !seen[key] {
		seen[key] = true
		r.Log.Printf("scheduler: skipping %s at %s: %v (further skips for it logged at debug)",
			p.Satellite, p.Time.Format(time.RFC3339), err)
		return
	}
	r.debugf("scheduler: skipping %s at %s: %v", p.Satellite, p.Time.Format(time.RFC3339), err)
}

func (r *Runner) debugf(format string, args ...any) {
	if r.Verbose {
		r.Log.Printf(format, args...)
	}
}
