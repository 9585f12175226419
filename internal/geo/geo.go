// Package geo provides the pure distance and position math used by the
// delivery simulation: great-circle distance, straight-line interpolation and
// flight-time estimates.
package geo

import (
	"fmt"
	"math"
	"time"

	"skybite/internal/domain"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance between two points
// in kilometers. Symmetric in its arguments; zero for identical points.
func DistanceKm(a, b domain.Location) float64 {
	lat1 := degreesToRadians(a.Lat)
	lat2 := degreesToRadians(b.Lat)
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Interpolate returns the point a fraction of the way from a to b. Linear in
// lat/lng, not geodesic, which matches the straight-line flight simulation.
// Progress is clamped to [0, 1].
func Interpolate(a, b domain.Location, progress float64) domain.Location {
	if progress <= 0 {
		return a
	}
	if progress >= 1 {
		return b
	}
	return domain.Location{
		Lat: a.Lat + (b.Lat-a.Lat)*progress,
		Lng: a.Lng + (b.Lng-a.Lng)*progress,
	}
}

// EstimatedMinutes returns the flight time in whole minutes, rounded up.
func EstimatedMinutes(distanceKm, speedKmh float64) (int, error) {
	if speedKmh <= 0 {
		return 0, fmt.Errorf("speed %v km/h: %w", speedKmh, domain.ErrInvalidInput)
	}
	return int(math.Ceil(distanceKm / speedKmh * 60)), nil
}

// FlightDuration returns the exact flight time the orchestrator uses for
// timer deadlines.
func FlightDuration(distanceKm, speedKmh float64) (time.Duration, error) {
	if speedKmh <= 0 {
		return 0, fmt.Errorf("speed %v km/h: %w", speedKmh, domain.ErrInvalidInput)
	}
	hours := distanceKm / speedKmh
	return time.Duration(hours * float64(time.Hour)), nil
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
