// Package propagate turns catalog element sets into sub-satellite points.
// Two SGP4 implementations are available: akhenakh/sgp4 ("sgp4") and
// joshuaferrara/go-satellite ("go-satellite"). Both report altitude above
// the WGS84 ellipsoid in kilometers.
package propagate

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/large-farva/coverage-engine/internal/catalog"
)

// ErrPropagation marks a failed propagation. It is fatal for a run.
var ErrPropagation = errors.New("propagation failed")

// SubPoint is the geodetic point directly below a satellite at one instant.
type SubPoint struct {
	Satellite catalog.Satellite
	Time      time.Time
	Lat       float64 // degrees North
	Lng       float64 // degrees East, [-180, 180)
	AltKm     float64
}

// Tracker propagates a single satellite.
type Tracker interface {
	Satellite() catalog.Satellite
	SubPoint(t time.Time) (SubPoint, error)
}

// Constellation holds one tracker per usable satellite.
type Constellation struct {
	trackers []Tracker
}

// New builds trackers for sats using the named backend. Satellites whose
// element set cannot initialize the model are logged and left out; an error
// is returned only for an unknown backend or when nothing is usable.
func New(backend string, sats []catalog.Satellite, logger *log.Logger) (*Constellation, error) {
	var build func(catalog.Satellite) (Tracker, error)
	switch backend {
	case "sgp4", "":
		build = newSGP4Tracker
	case "go-satellite":
		build = newGoSatTracker
	default:
		return nil, fmt.Errorf("unknown propagator backend %q", backend)
	}

	c := &Constellation{trackers: make([]Tracker, 0, len(sats))}
	for _, s := range sats {
		tr, err := build(s)
		if err != nil {
			logger.Printf("propagate: dropping %s: %v", s, err)
			continue
		}
		c.trackers = append(c.trackers, tr)
	}
	if len(c.trackers) == 0 {
		return nil, fmt.Errorf("%w: no satellite could be initialized", ErrPropagation)
	}
	return c, nil
}

// FromTrackers wraps existing trackers, mainly for tests and alternate
// sources of positions.
func FromTrackers(trackers ...Tracker) *Constellation {
	return &Constellation{trackers: trackers}
}

// Len is the number of satellites propagated each step.
func (c *Constellation) Len() int {
	return len(c.trackers)
}

// SubPoints propagates every satellite to t, one call per satellite. The
// first failure aborts and is returned wrapped with the satellite identity.
func (c *Constellation) SubPoints(t time.Time) ([]SubPoint, error) {
	out := make([]SubPoint, 0, len(c.trackers))
	for _, tr := range c.trackers {
		sp, err := tr.SubPoint(t)
		if err != nil {
			return nil, fmt.Errorf("%s at %s: %w", tr.Satellite(), t.Format(time.RFC3339), err)
		}
		out = append(out, sp)
	}
	return out, nil
}

// checkFinite rejects NaN/Inf output, which both SGP4 libraries can produce
// instead of an error for decayed or nonsensical element sets.
func checkFinite(vals ...float64) error {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: output is NaN/Inf", ErrPropagation)
		}
	}
	return nil
}

// wrapLng normalizes a longitude in degrees to [-180, 180).
func wrapLng(lng float64) float64 {
	lng = math.Mod(lng+180, 360)
	if lng < 0 {
		lng += 360
	}
	return lng - 180
}
