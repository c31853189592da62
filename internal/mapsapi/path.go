package mapsapi

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/models"
)

// Geocoder resolves a place name to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.LatLng, error)
}

// DefaultPath is used when a route name cannot be resolved (Jalna to Pune).
var DefaultPath = []models.LatLng{
	{Lat: 19.8347, Lng: 75.8816},
	{Lat: 18.5204, Lng: 73.8567},
}

// Region is appended to bare city names before geocoding.
const Region = "Maharashtra, India"

// PathFromName geocodes each " - " separated stop of a route name. Stops that
// fail to resolve are skipped; fewer than two resolved stops yields DefaultPath.
func PathFromName(ctx context.Context, g Geocoder, name string) []models.LatLng {
	stops := models.Route{Name: name}.Waypoints()
	if g == nil || len(stops) < 2 {
		return clonePath(DefaultPath)
	}

	var out []models.LatLng
	for _, stop := range stops {
		addr := stop
		if !strings.Contains(addr, ",") {
			addr = stop + ", " + Region
		}
		p, err := g.Geocode(ctx, addr)
		if err != nil {
			logrus.WithError(err).WithField("stop", stop).Warn("geocoding route stop failed")
			continue
		}
		out = append(out, p)
	}
	if len(out) < 2 {
		return clonePath(DefaultPath)
	}
	return out
}

func clonePath(p []models.LatLng) []models.LatLng {
	return append([]models.LatLng(nil), p...)
}
