package propagate

import (
	"fmt"
	"time"

	"github.com/akhenakh/sgp4"

	"github.com/large-farva/coverage-engine/internal/catalog"
)

type sgp4Tracker struct {
	sat catalog.Satellite
	tle *sgp4.TLE
}

func newSGP4Tracker(sat catalog.Satellite) (Tracker, error) {
	if sat.Elements == nil {
		return nil, fmt.Errorf("%w: no element set", ErrPropagation)
	}
	if _, err := sat.Elements.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPropagation, err)
	}
	return &sgp4Tracker{sat: sat, tle: sat.Elements}, nil
}

func (t *sgp4Tracker) Satellite() catalog.Satellite { return t.sat }

func (t *sgp4Tracker) SubPoint(at time.Time) (SubPoint, error) {
	at = at.UTC()
	eci, err := t.tle.FindPositionAtTime(at)
	if err != nil {
		return SubPoint{}, fmt.Errorf("%w: %v", ErrPropagation, err)
	}
	// FindPositionAtTime stamps the state with whole minutes since epoch;
	// sidereal time has to come from the requested instant.
	eci.DateTime = at

	lat, lng, alt := eci.ToGeodetic()
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
