package grid

import (
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/large-farva/coverage-engine/internal/footprint"
)

// S2Mapper covers the exact spherical cap with S2 cells of a single level.
type S2Mapper struct {
	level   int
	coverer *s2.RegionCoverer
}

// NewS2Mapper returns a mapper at the given S2 level (0-30).
func NewS2Mapper(level int) (*S2Mapper, error) {
	if level < 0 || level > 30 {
		return nil, fmt.Errorf("%w: s2 level %d", ErrUnsupportedResolution, level)
	}
	return &S2Mapper{
		level: level,
		coverer: &s2.RegionCoverer{
			MinLevel: level,
			MaxLevel: level,
			LevelMod: 1,
			// With min == max level the covering is forced to this level;
			// MaxCells must not ask the coverer to coarsen it.
			MaxCells: math.MaxInt32,
		},
	}, nil
}

func (m *S2Mapper) Kind() string    { return "s2" }
func (m *S2Mapper) Resolution() int { return m.level }

// CellsInCap returns the sorted S2 cell tokens covering c.
func (m *S2Mapper) CellsInCap(c footprint.Cap) ([]Cell, error) {
	if err := checkCap(c); err != nil {
		return nil, err
	}

	center := s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lng))
	region := s2.CapFromCenterAngle(center, s1.Angle(c.HalfAngle))

	covering := m.coverer.Covering(region)
	if len(covering) == 0 {
		return nil, empty(c)
	}

	cells := make([]Cell, 0, len(covering))
	for _, id := range covering {
		cells = append(cells, Cell(id.ToToken()))
	}
	return sortCells(cells), nil
}
