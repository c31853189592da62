package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/models"
	"bus_tracker/internal/realtime"
	"bus_tracker/internal/store"
)

// NewBus registers a bus. Unset fields take the fleet defaults: parked at the
// depot, Empty, Inactive, 50 seats.
type NewBus struct {
	ID       string
	RouteID  *string
	DriverID *string
	Location *models.LatLng
	Capacity int
}

// BusPatch leaves nil fields unchanged. For RouteID and DriverID a pointer to
// "" clears the reference.
type BusPatch struct {
	RouteID   *string
	DriverID  *string
	Location  *models.LatLng
	Occupancy *models.Occupancy
	Status    *models.BusStatus
	SOS       *bool
	Capacity  *int
}

func (g *Gateway) ListBuses(ctx context.Context, routeID string) ([]models.Bus, error) {
	buses, err := g.store.ListBuses(ctx, store.BusFilter{RouteID: routeID})
	return buses, g.fail("list_buses", err)
}

func (g *Gateway) GetBus(ctx context.Context, id string) (models.Bus, error) {
	b, err := g.store.GetBus(ctx, id)
	return b, g.fail("get_bus", err)
}

// NormalizeBusID canonicalises a registration number.
func NormalizeBusID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func (g *Gateway) checkRoute(ctx context.Context, id *string) error {
	if id == nil {
		return nil
	}
	if _, err := g.store.GetRoute(ctx, *id); err != nil {
		if store.IsNotFound(err) {
			return invalid("unknown route %s", *id)
		}
		return err
	}
	return nil
}

func (g *Gateway) checkDriver(ctx context.Context, id *string) error {
	if id == nil {
		return nil
	}
	if _, err := g.store.GetDriver(ctx, *id); err != nil {
		if store.IsNotFound(err) {
			return invalid("unknown driver %s", *id)
		}
		return err
	}
	return nil
}

func (g *Gateway) CreateBus(ctx context.Context, in NewBus) (models.Bus, error) {
	id := NormalizeBusID(in.ID)
	if id == "" {
		return models.Bus{}, invalid("bus registration is required")
	}
	routeID, driverID := refValue(in.RouteID), refValue(in.DriverID)
	if err := g.checkRoute(ctx, routeID); err != nil {
		return models.Bus{}, err
	}
	if err := g.checkDriver(ctx, driverID); err != nil {
		return models.Bus{}, err
	}

	loc := models.DefaultBusLocation
	if in.Location != nil {
		if !in.Location.Valid() {
			return models.Bus{}, invalid("location out of range")
		}
		loc = *in.Location
	}
	capacity := in.Capacity
	if capacity < 0 {
		return models.Bus{}, invalid("capacity must be positive")
	}
	if capacity == 0 {
		capacity = 50
	}

	b := models.Bus{
		ID:          id,
		RouteID:     routeID,
		DriverID:    driverID,
		Location:    loc,
		Occupancy:   models.OccupancyEmpty,
		Status:      models.StatusInactive,
		Capacity:    capacity,
		LastUpdated: g.now(),
	}
	if err := g.store.CreateBus(ctx, &b); err != nil {
		return models.Bus{}, g.fail("create_bus", err)
	}
	g.emit(ctx, realtime.EventInsert, b, nil)

	if err := g.linkDriver(ctx, b.ID, nil, driverID); err != nil {
		return b, g.fail("create_bus", fmt.Errorf("bus %s created but driver link failed: %w", b.ID, err))
	}
	g.log.WithField("bus_id", b.ID).Info("Bus registered")
	return b, nil
}

// UpdateBus writes the changed columns of a bus. When the driver changes the
// reassignment sequence follows the bus write: the previous driver is
// unassigned, any other bus still held by the new driver is released, and the
// new driver is pointed at this bus. Edits that leave the driver alone do not
// touch any driver row.
func (g *Gateway) UpdateBus(ctx context.Context, id string, p BusPatch) (models.Bus, error) {
	old, err := g.store.GetBus(ctx, id)
	if err != nil {
		return models.Bus{}, g.fail("update_bus", err)
	}

	cols := map[string]any{}
	if p.RouteID != nil {
		r := refValue(p.RouteID)
		if err := g.checkRoute(ctx, r); err != nil {
			return models.Bus{}, err
		}
		if !sameRef(r, old.RouteID) {
			cols["route_id"] = r
		}
	}

	var newDriver *string
	driverChanged := false
	if p.DriverID != nil {
		newDriver = refValue(p.DriverID)
		if err := g.checkDriver(ctx, newDriver); err != nil {
			return models.Bus{}, err
		}
		if !sameRef(newDriver, old.DriverID) {
			cols["driver_id"] = newDriver
			driverChanged = true
		}
	}

	if p.Location != nil {
		if !p.Location.Valid() {
			return models.Bus{}, invalid("location out of range")
		}
		cols["lat"], cols["lng"] = p.Location.Lat, p.Location.Lng
	}
	if p.Occupancy != nil {
		if !p.Occupancy.Valid() {
			return models.Bus{}, invalid("unknown occupancy %q", *p.Occupancy)
		}
		cols["occupancy"] = string(*p.Occupancy)
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return models.Bus{}, invalid("unknown status %q", *p.Status)
		}
		if !old.Status.CanTransition(*p.Status) {
			return models.Bus{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, old.Status, *p.Status)
		}
		if *p.Status != old.Status {
			cols["status"] = string(*p.Status)
		}
	}
	if p.SOS != nil && *p.SOS != old.SOS {
		cols["sos"] = *p.SOS
	}
	if p.Capacity != nil {
		if *p.Capacity <= 0 {
			return models.Bus{}, invalid("capacity must be positive")
		}
		cols["capacity"] = *p.Capacity
	}

	if len(cols) == 0 {
		return old, nil
	}
	cols["last_updated"] = g.now()

	b, err := g.store.UpdateBus(ctx, old.ID, cols)
	if err != nil {
		return models.Bus{}, g.fail("update_bus", err)
	}
	g.emit(ctx, realtime.EventUpdate, b, old.RouteID)

	if driverChanged {
		if err := g.linkDriver(ctx, b.ID, old.DriverID, newDriver); err != nil {
			return b, g.fail("update_bus", fmt.Errorf("bus %s saved but driver link failed: %w", b.ID, err))
		}
	}
	return b, nil
}

// linkDriver brings driver rows in line after bus busID moved from oldDriver
// to newDriver.
func (g *Gateway) linkDriver(ctx context.Context, busID string, oldDriver, newDriver *string) error {
	if sameRef(oldDriver, newDriver) {
		return nil
	}
	if oldDriver != nil {
		if err := ignoreNotFound(g.store.SetDriverBus(ctx, *oldDriver, nil)); err != nil {
			return fmt.Errorf("unassign driver %s: %w", *oldDriver, err)
		}
	}
	if newDriver == nil {
		return nil
	}
	if err := g.releaseDriverBuses(ctx, *newDriver, busID); err != nil {
		return err
	}
	bus := busID
	if err := g.store.SetDriverBus(ctx, *newDriver, &bus); err != nil {
		return fmt.Errorf("assign driver %s: %w", *newDriver, err)
	}
	g.log.WithFields(logrus.Fields{
		"bus_id":     busID,
		"driver_id":  *newDriver,
		"old_driver": deref(oldDriver),
	}).Info("Driver reassigned")
	return nil
}

// releaseDriverBuses clears driverID from every bus except keepBusID.
func (g *Gateway) releaseDriverBuses(ctx context.Context, driverID, keepBusID string) error {
	held, err := g.store.ListBuses(ctx, store.BusFilter{DriverID: driverID})
	if err != nil {
		return err
	}
	var released []models.Bus
	for _, b := range held {
		if b.ID != keepBusID {
			released = append(released, b)
		}
	}
	if len(released) == 0 {
		return nil
	}
	if _, err := g.store.ClearBusDriver(ctx, driverID, keepBusID); err != nil {
		return fmt.Errorf("release buses of driver %s: %w", driverID, err)
	}
	for _, b := range released {
		b.DriverID = nil
		g.emit(ctx, realtime.EventUpdate, b, b.RouteID)
	}
	return nil
}

// UpdateBusLocation records a driver-reported position and, when given, occupancy.
func (g *Gateway) UpdateBusLocation(ctx context.Context, id string, loc models.LatLng, occ *models.Occupancy) (models.Bus, error) {
	return g.UpdateBusLocationAt(ctx, id, loc, occ, time.Time{})
}

// UpdateBusLocationAt is UpdateBusLocation for a fix the device took at
// fixedAt. The bus row is stamped with server time; the breadcrumb keeps the
// fix time, capped at server time. A zero fixedAt means now.
func (g *Gateway) UpdateBusLocationAt(ctx context.Context, id string, loc models.LatLng, occ *models.Occupancy, fixedAt time.Time) (models.Bus, error) {
	if !loc.Valid() {
		return models.Bus{}, invalid("location out of range")
	}
	now := g.now()
	if fixedAt.IsZero() || fixedAt.After(now) {
		fixedAt = now
	}
	cols := map[string]any{"lat": loc.Lat, "lng": loc.Lng, "last_updated": now}
	if occ != nil {
		if !occ.Valid() {
			return models.Bus{}, invalid("unknown occupancy %q", *occ)
		}
		cols["occupancy"] = string(*occ)
	}
	b, err := g.store.UpdateBus(ctx, id, cols)
	if err != nil {
		return models.Bus{}, g.fail("update_location", err)
	}
	if g.metrics != nil {
		g.metrics.ObserveLocationUpdate()
	}
	g.recordBreadcrumb(ctx, b, fixedAt.UTC())
	g.emit(ctx, realtime.EventUpdate, b, b.RouteID)
	return b, nil
}

func (g *Gateway) SetOccupancy(ctx context.Context, id string, occ models.Occupancy) (models.Bus, error) {
	return g.UpdateBus(ctx, id, BusPatch{Occupancy: &occ})
}

func (g *Gateway) SetStatus(ctx context.Context, id string, st models.BusStatus) (models.Bus, error) {
	return g.UpdateBus(ctx, id, BusPatch{Status: &st})
}

// RaiseSOS sets the emergency flag. Only ResolveSOS clears it.
func (g *Gateway) RaiseSOS(ctx context.Context, id string) (models.Bus, error) {
	on := true
	b, err := g.UpdateBus(ctx, id, BusPatch{SOS: &on})
	if err == nil {
		g.log.WithFields(logrus.Fields{"bus_id": id, "location": b.Location.String()}).Warn("SOS raised")
	}
	return b, err
}

func (g *Gateway) ResolveSOS(ctx context.Context, id string) (models.Bus, error) {
	off := false
	b, err := g.UpdateBus(ctx, id, BusPatch{SOS: &off})
	if err == nil {
		g.log.WithField("bus_id", id).Info("SOS resolved")
	}
	return b, err
}

// DeleteBus unassigns the bus's driver, then removes the bus.
func (g *Gateway) DeleteBus(ctx context.Context, id string) error {
	b, err := g.store.GetBus(ctx, id)
	if err != nil {
		return g.fail("delete_bus", err)
	}
	if _, err := g.store.ClearDriverBus(ctx, b.ID); err != nil {
		return g.fail("delete_bus", fmt.Errorf("unassign driver of bus %s: %w", b.ID, err))
	}
	if err := g.store.DeleteBus(ctx, b.ID); err != nil {
		return g.fail("delete_bus", err)
	}
	g.emit(ctx, realtime.EventDelete, b, b.RouteID)
	g.log.WithField("bus_id", b.ID).Info("Bus deleted")
	return nil
}
