// Package geofence computes great-circle distances and radius checks
// between coordinates.
package geofence

import (
	"errors"
	"fmt"
	"math"

	"github.com/spec-kit/field-dispatch/internal/domain"
)

const (
	// EarthRadiusKm is the mean Earth radius used by the haversine formula.
	EarthRadiusKm = 6371.0
	// SiteRadiusMeters is the radius used for arrival and evidence gating.
	SiteRadiusMeters = 300.0
)

// ErrInvalidCoordinate is returned for non-finite or out-of-range coordinates.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Check is the outcome of a radius evaluation.
type Check struct {
	DistanceMeters float64 `json:"distance_meters"`
	RadiusMeters   float64 `json:"radius_meters"`
	Inside         bool    `json:"inside"`
}

// Validate rejects coordinates the distance functions cannot handle.
func Validate(c domain.Coordinate) error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return fmt.Errorf("%w: non-finite value (%v, %v)", ErrInvalidCoordinate, c.Lat, c.Lng)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, c.Lng)
	}
	return nil
}

// DistanceKm returns the haversine distance between a and b in kilometers.
// Inputs are assumed valid.
func DistanceKm(a, b domain.Coordinate) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// DistanceMeters returns the haversine distance between a and b in meters.
func DistanceMeters(a, b domain.Coordinate) float64 {
	return DistanceKm(a, b) * 1000
}

// IsWithin reports whether b lies within radiusMeters of a.
func IsWithin(a, b domain.Coordinate, radiusMeters float64) bool {
	return DistanceMeters(a, b) <= radiusMeters
}

// Evaluate performs the radius check and keeps the measured distance so
// callers can report how far out of range a position was.
func Evaluate(position, center domain.Coordinate, radiusMeters float64) Check {
	distance := DistanceMeters(position, center)
	return Check{
		DistanceMeters: distance,
		RadiusMeters:   radiusMeters,
		Inside:         distance <= radiusMeters,
	}
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
