package grid

import (
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/uber/h3-go/v4"

	"github.com/large-farva/coverage-engine/internal/footprint"
)

// H3Mapper fills an n-gon approximation of the cap with H3 cells whose
// centers fall inside it.
type H3Mapper struct {
	resolution int
	vertices   int
}

// NewH3Mapper returns a mapper at the given H3 resolution (0-15) using an
// n-gon with the given number of vertices.
func NewH3Mapper(resolution, vertices int) (*H3Mapper, error) {
	if resolution < 0 || resolution > 15 {
		return nil, fmt.Errorf("%w: h3 resolution %d", ErrUnsupportedResolution, resolution)
	}
	if vertices < 3 {
		return nil, fmt.Errorf("h3 polygon needs at least 3 vertices, got %d", vertices)
	}
	return &H3Mapper{resolution: resolution, vertices: vertices}, nil
}

func (m *H3Mapper) Kind() string    { return "h3" }
func (m *H3Mapper) Resolution() int { return m.resolution }

// CellsInCap returns the sorted H3 cells covered by c.
func (m *H3Mapper) CellsInCap(c footprint.Cap) ([]Cell, error) {
	if err := checkCap(c); err != nil {
		return nil, err
	}
	// A lat/lng polygon cannot enclose a pole.
	if math.Abs(c.Lat)+c.HalfAngle*180/math.Pi >= 90 {
		return nil, degenerate(c, "cap contains a pole")
	}

	poly := h3.GeoPolygon{GeoLoop: m.boundary(c)}
	found, err := h3.PolygonToCells(poly, m.resolution)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateFootprint, err)
	}
	if len(found) == 0 {
		return nil, empty(c)
	}

	cells := make([]Cell, 0, len(found))
	for _, h := range found {
		cells = append(cells, Cell(h.String()))
	}
	return sortCells(cells), nil
}

// boundary propagates m.vertices equally spaced bearings from the cap center
// by the cap's ground radius.
func (m *H3Mapper) boundary(c footprint.Cap) h3.GeoLoop {
	center := s2.LatLngFromDegrees(c.Lat, c.Lng)
	dist := s1.Angle(c.RadiusKm() / footprint.EarthRadiusKm)

	loop := make(h3.GeoLoop, 0, m.vertices)
	for i := 0; i < m.vertices; i++ {
		bearing := s1.Angle(2 * math.Pi * float64(i) / float64(m.vertices))
		p := Destination(center, bearing, dist)
		loop = append(loop, h3.NewLatLng(p.Lat.Degrees(), p.Lng.Degrees()))
	}
	return loop
}

// Destination is the spherical forward geodesic: the point reached by
// travelling the central angle dist from start along the initial bearing
// (radians clockwise from north).
func Destination(start s2.LatLng, bearing, dist s1.Angle) s2.LatLng {
	lat1, lng1 := start.Lat.Radians(), start.Lng.Radians()
	b, d := bearing.Radians(), dist.Radians()

	sinLat2 := math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(b)
	lat2 := math.Asin(math.Max(-1, math.Min(1, sinLat2)))
	lng2 := lng1 + math.Atan2(
		math.Sin(b)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*sinLat2,
	)

	return s2.LatLng{Lat: s1.Angle(lat2), Lng: s1.Angle(lng2)}.Normalized()
}
