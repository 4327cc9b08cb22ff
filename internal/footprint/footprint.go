// Package footprint computes the ground coverage cap of a satellite on a
// spherical Earth: the set of surface points that see the satellite at or
// above a minimum elevation angle.
package footprint

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusKm is the mean sphere radius the cap geometry is computed on.
const EarthRadiusKm = 6378.1

const (
	rightAngle   = math.Pi / 2
	minHalfAngle = 1e-12
)

// ErrDomain marks inputs for which the cap is undefined.
var ErrDomain = errors.New("footprint domain error")

// DomainError carries the inputs that produced an undefined cap.
type DomainError struct {
	AltitudeKm   float64
	ElevationDeg float64
	Reason       string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("footprint: altitude %.3f km, elevation %.3f deg: %s", e.AltitudeKm, e.ElevationDeg, e.Reason)
}

func (e *DomainError) Is(target error) bool { return target == ErrDomain }

// Cap is a circular region on the sphere centered on a sub-satellite point.
type Cap struct {
	Lat       float64 // degrees
	Lng       float64 // degrees
	HalfAngle float64 // radians, central angle from center to edge
}

// RadiusKm is the great-circle distance from the center to the cap edge.
func (c Cap) RadiusKm() float64 {
	return EarthRadiusKm * c.HalfAngle
}

// CapHalfAngle returns the central half-angle, in radians, of the region that
// sees a satellite at altitudeKm above the elevation threshold elevationDeg.
//
// With ε the elevation and η the nadir angle at the satellite, the law of
// sines on the Earth-center / ground-point / satellite triangle gives
// sin η = sin(ε + 90°) · R / (R + h), and the angles of that triangle sum to π.
func CapHalfAngle(altitudeKm, elevationDeg float64) (float64, error) {
	if err := checkInputs(altitudeKm, elevationDeg); err != nil {
		return 0, err
	}

	eps := elevationDeg * math.Pi / 180
	arg := math.Sin(eps+rightAngle) * EarthRadiusKm / (EarthRadiusKm + altitudeKm)
	if arg < -1 || arg > 1 || math.IsNaN(arg) {
		return 0, &DomainError{
			AltitudeKm:   altitudeKm,
			ElevationDeg: elevationDeg,
			Reason:       fmt.Sprintf("asin argument %.6f outside [-1, 1]", arg),
		}
	}

	eta := math.Asin(arg)
	half := math.Pi - (eps + rightAngle + eta)
	// Anything below minHalfAngle is rounding noise around a zero-size cap
	// (a satellite on or under the surface).
	if !(half > minHalfAngle) {
		return 0, &DomainError{
			AltitudeKm:   altitudeKm,
			ElevationDeg: elevationDeg,
			Reason:       fmt.Sprintf("non-positive half-angle %.6g", half),
		}
	}
	return half, nil
}

// CapArea returns the surface area in km² of the coverage cap,
// 2πR²(1 − cos λ/2). It is reported for diagnostics only.
func CapArea(altitudeKm, elevationDeg float64) (float64, error) {
	half, err := CapHalfAngle(altitudeKm, elevationDeg)
	if err != nil {
		return 0, err
	}
	return 2 * math.Pi * EarthRadiusKm * EarthRadiusKm * (1 - math.Cos(half)), nil
}

// NewCap builds the cap for a satellite at (lat, lng, altitudeKm).
func NewCap(lat, lng, altitudeKm, elevationDeg float64) (Cap, error) {
	half, err := CapHalfAngle(altitudeKm, elevationDeg)
	if err != nil {
		return Cap{}, err
	}
	return Cap{Lat: lat, Lng: lng, HalfAngle: half}, nil
}

func checkInputs(altitudeKm, elevationDeg float64) error {
	reason := ""
	switch {
	case math.IsNaN(altitudeKm) || math.IsInf(altitudeKm, 0):
		reason = "altitude is not finite"
	case math.IsNaN(elevationDeg) || math.IsInf(elevationDeg, 0):
		reason = "elevation is not finite"
	case altitudeKm <= -EarthRadiusKm:
		reason = "altitude is below the center of the Earth"
	case elevationDeg < 0 || elevationDeg >= 90:
		reason = "elevation must be in [0, 90)"
	default:
		return nil
	}
	return &DomainError{AltitudeKm: altitudeKm, ElevationDeg: elevationDeg, Reason: reason}
}
