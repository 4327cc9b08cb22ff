// Package grid maps coverage caps onto a fixed-resolution global grid. The
// H3 mapper approximates the cap with a polygon and fills it with hexagons;
// the S2 mapper covers the exact spherical cap with cells of one level.
package grid

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/s2"
	"github.com/uber/h3-go/v4"

	"github.com/large-farva/coverage-engine/internal/footprint"
)

var (
	// ErrDegenerateFootprint is returned for caps the mapper cannot
	// represent faithfully, such as a polygon wrapped around a pole.
	ErrDegenerateFootprint = errors.New("degenerate footprint")

	// ErrEmptyCoverage is returned when a cap of positive size maps to no
	// cells at all. It signals a defect, never a valid empty answer.
	ErrEmptyCoverage = errors.New("empty coverage for non-empty cap")

	ErrUnsupportedResolution = errors.New("unsupported grid resolution")
)

// Cell is an opaque cell identifier: an H3 index in hex or an S2 cell token.
type Cell string

// Mapper enumerates the cells a cap covers at the mapper's fixed resolution.
type Mapper interface {
	CellsInCap(c footprint.Cap) ([]Cell, error)
	Kind() string
	Resolution() int
}

// New returns the mapper for kind ("h3" or "s2") at resolution. vertices is
// the polygon size used by the H3 mapper and ignored by S2.
func New(kind string, resolution, vertices int) (Mapper, error) {
	switch kind {
	case "h3":
		return NewH3Mapper(resolution, vertices)
	case "s2":
		return NewS2Mapper(resolution)
	default:
		return nil, fmt.Errorf("unknown grid kind %q", kind)
	}
}

// Center returns the center of a cell of the given kind.
func Center(kind string, c Cell) (s2.LatLng, error) {
	switch kind {
	case "h3":
		cell := h3.Cell(h3.IndexFromString(string(c)))
		if !cell.IsValid() {
			return s2.LatLng{}, fmt.Errorf("invalid h3 cell %q", c)
		}
		ll, err := cell.LatLng()
		if err != nil {
			return s2.LatLng{}, fmt.Errorf("h3 cell %q: %w", c, err)
		}
		return s2.LatLngFromDegrees(ll.Lat, ll.Lng), nil
	case "s2":
		id := s2.CellIDFromToken(string(c))
		if !id.IsValid() {
			return s2.LatLng{}, fmt.Errorf("invalid s2 token %q", c)
		}
		return id.LatLng(), nil
	default:
		return s2.LatLng{}, fmt.Errorf("unknown grid kind %q", kind)
	}
}

// checkCap rejects caps no mapper can handle.
func checkCap(c footprint.Cap) error {
	switch {
	case math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0):
		return degenerate(c, "center is not finite")
	case c.Lat < -90 || c.Lat > 90:
		return degenerate(c, "latitude out of range")
	case math.IsNaN(c.HalfAngle) || !(c.HalfAngle > 0):
		return degenerate(c, "half-angle must be positive")
	case c.HalfAngle >= math.Pi/2:
		return degenerate(c, "half-angle must be below a hemisphere")
	}
	return nil
}

func degenerate(c footprint.Cap, reason string) error {
	return fmt.Errorf("%w: lat:%.6f, lng:%.6f, half-angle %.6f rad: %s",
		ErrDegenerateFootprint, c.Lat, c.Lng, c.HalfAngle, reason)
}

func empty(c footprint.Cap) error {
	return fmt.Errorf("%w: lat:%.6f, lng:%.6f, half-angle %.6f rad",
		ErrEmptyCoverage, c.Lat, c.Lng, c.HalfAngle)
}

func sortCells(cells []Cell) []Cell {
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })
	return cells
}
