package propagate

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/large-farva/coverage-engine/internal/catalog"
)

const rad2deg = 180 / math.Pi

type goSatTracker struct {
	sat  catalog.Satellite
	prop satellite.Satellite
}

// newGoSatTracker needs the raw TLE lines. go-satellite calls log.Fatal on
// malformed lines, so only records that already passed sgp4.ParseTLE in the
// catalog reach it.
func newGoSatTracker(sat catalog.Satellite) (Tracker, error) {
	if len(sat.Line1) != 69 || len(sat.Line2) != 69 {
		return nil, fmt.Errorf("%w: go-satellite needs both 69-column TLE lines", ErrPropagation)
	}
	s := satellite.TLEToSat(sat.Line1, sat.Line2, satellite.GravityWGS84)
	if s.Error != 0 {
		return nil, fmt.Errorf("%w: sgp4 init code=%d %s", ErrPropagation, s.Error, s.ErrorStr)
	}
	return &goSatTracker{sat: sat, prop: s}, nil
}

func (t *goSatTracker) Satellite() catalog.Satellite { return t.sat }

func (t *goSatTracker) SubPoint(at time.Time) (SubPoint, error) {
	at = at.UTC()
	year, month, day := at.Date()
	hour, minute, sec := at.Clock()

	pos, _ := satellite.Propagate(t.prop, year, int(month), day, hour, minute, sec)
	if err := checkFinite(pos.X, pos.Y, pos.Z); err != nil {
		return SubPoint{}, err
	}

	gmst := satellite.GSTimeFromDate(year, int(month), day, hour, minute, sec)
	alt, _, ll := satellite.ECIToLLA(pos, gmst)

	lat := ll.Latitude * rad2deg
	lng := ll.Longitude * rad2deg
	if err := checkFinite(lat, lng, alt); err != nil {
		return SubPoint{}, err
	}

	return SubPoint{
		Satellite: t.sat,
		Time:      at,
		Lat:       lat,
		Lng:       wrapLng(lng),
		AltKm:     alt,
	}, nil
}
