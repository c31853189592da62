package gateway

import (
	"context"
	"time"

	"bus_tracker/internal/geo"
	"bus_tracker/internal/models"
	"bus_tracker/internal/store"
)

const (
	minDistanceForSave   = 5.0  // metres
	minTimeDiffForSave   = 10.0 // seconds
	minSpeedForMoving    = 0.5  // m/s
	maxSpeedForStopped   = 1.0  // m/s
	periodicSaveInterval = 60 * time.Second
)

// shouldSaveLocation decides whether a new fix is worth a breadcrumb.
func shouldSaveLocation(distance, speed, timeDiff float64, last *models.LocationHistory, now time.Time) (bool, string) {
	if last == nil {
		return true, "initial"
	}
	if distance >= minDistanceForSave {
		return true, "move"
	}
	if last.IsMoving && speed < maxSpeedForStopped && timeDiff >= minTimeDiffForSave {
		return true, "stopped"
	}
	if !last.IsMoving && speed >= minSpeedForMoving && timeDiff >= minTimeDiffForSave {
		return true, "started"
	}
	if now.Sub(last.Timestamp) >= periodicSaveInterval {
		return true, "periodic"
	}
	return false, "insignificant"
}

// recordBreadcrumb appends to the bus trail when the movement is significant.
// Trail failures are logged; the position itself is already stored.
func (g *Gateway) recordBreadcrumb(ctx context.Context, b models.Bus, now time.Time) {
	cur := b.Location

	var last *models.LocationHistory
	prev, err := g.store.LastLocation(ctx, b.ID)
	switch {
	case err == nil:
		last = &prev
	case !store.IsNotFound(err):
		g.log.WithError(err).WithField("bus_id", b.ID).Warn("Could not read last breadcrumb")
		return
	}

	var distance, speed, timeDiff, bearing float64
	if last != nil {
		from := models.LatLng{Lat: last.Latitude, Lng: last.Longitude}
		distance = geo.DistanceMeters(from, cur)
		timeDiff = now.Sub(last.Timestamp).Seconds()
		if timeDiff > 0 {
			speed = distance / timeDiff
		}
		bearing = geo.Bearing(from, cur)
	}

	ok, event := shouldSaveLocation(distance, speed, timeDiff, last, now)
	if !ok {
		return
	}
	crumb := models.LocationHistory{
		BusID:            b.ID,
		DriverID:         b.DriverID,
		Latitude:         cur.Lat,
		Longitude:        cur.Lng,
		Bearing:          bearing,
		Occupancy:        b.Occupancy,
		IsMoving:         speed >= minSpeedForMoving,
		DistanceFromLast: distance,
		EventType:        event,
		Timestamp:        now,
	}
	if err := g.store.AppendLocation(ctx, &crumb); err != nil {
		g.fail("append_location", err)
		g.log.WithError(err).WithField("bus_id", b.ID).Warn("Failed to save breadcrumb")
	}
}

// Trail returns recent breadcrumbs for a bus, newest first.
func (g *Gateway) Trail(ctx context.Context, busID string, limit int) ([]models.LocationHistory, error) {
	if _, err := g.store.GetBus(ctx, busID); err != nil {
		return nil, g.fail("trail", err)
	}
	t, err := g.store.Trail(ctx, busID, limit)
	return t, g.fail("trail", err)
}
