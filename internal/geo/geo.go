// Package geo holds the great-circle arithmetic used for distances, bearings
// and the straight-line arrival estimate.
package geo

import (
	"fmt"
	"math"

	"bus_tracker/internal/models"
)

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0

// DefaultSpeedKmh is the assumed average intercity speed for fallback estimates.
const DefaultSpeedKmh = 50.0

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b models.LatLng) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// DistanceMeters is Haversine in metres.
func DistanceMeters(a, b models.LatLng) float64 {
	return Haversine(a, b) * 1000
}

// Bearing calculates the initial bearing from a to b in degrees [0, 360).
func Bearing(a, b models.LatLng) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	deltaLng := toRadians(b.Lng - a.Lng)

	y := math.Sin(deltaLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(deltaLng)

	return math.Mod(toDegrees(math.Atan2(y, x))+360, 360)
}

// TravelMinutes converts a straight-line distance into whole minutes at speedKmh.
func TravelMinutes(a, b models.LatLng, speedKmh float64) int {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	return int(math.Round(Haversine(a, b) / speedKmh * 60))
}

// FormatMinutes renders a duration in minutes for display:
// "< 1 min", "N min" up to an hour inclusive, then "H hr M min".
func FormatMinutes(minutes float64) string {
	m := int(math.Round(minutes))
	switch {
	case m < 1:
		return "< 1 min"
	case m > 60:
		return fmt.Sprintf("%d hr %d min", m/60, m%60)
	default:
		return fmt.Sprintf("%d min", m)
	}
}

// FallbackETA is the straight-line estimate at speedKmh. Pure and deterministic.
func FallbackETA(a, b models.LatLng, speedKmh float64) string {
	return FormatMinutes(float64(TravelMinutes(a, b, speedKmh)))
}

// FormatDistance renders kilometres with one decimal, e.g. "12.3 km".
func FormatDistance(km float64) string {
	return fmt.Sprintf("%.1f km", km)
}

// Interpolate returns the point a fraction f of the way from a to b.
// Linear in degrees, which is adequate over the short legs of a route path.
func Interpolate(a, b models.LatLng, f float64) models.LatLng {
	f = math.Max(0, math.Min(1, f))
	return models.LatLng{
		Lat: a.Lat + (b.Lat-a.Lat)*f,
		Lng: a.Lng + (b.Lng-a.Lng)*f,
	}
}

// PathLength is the sum of leg distances along path in kilometres.
func PathLength(path []models.LatLng) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += Haversine(path[i-1], path[i])
	}
	return total
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
