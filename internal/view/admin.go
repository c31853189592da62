package view

import (
	"context"
	"fmt"
	"time"

	"github.com/jinzhu/copier"

	"bus_tracker/internal/models"
)

type DriverRow struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id"`
	Name        string              `json:"name"`
	Email       string              `json:"email"`
	Phone       string              `json:"phone"`
	Status      models.DriverStatus `json:"status"`
	AssignedBus string              `json:"assigned_bus"`
}

type AdminBusRow struct {
	ID          string           `json:"id"`
	DriverID    string           `json:"driver_id" copier:"-"`
	Driver      string           `json:"driver"`
	RouteID     string           `json:"route_id" copier:"-"`
	Route       string           `json:"route"`
	Location    models.LatLng    `json:"location"`
	Occupancy   models.Occupancy `json:"occupancy"`
	Status      models.BusStatus `json:"status"`
	SOS         bool             `json:"sos"`
	Capacity    int              `json:"capacity"`
	LastUpdated time.Time        `json:"last_updated"`
}

type Stats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	InTrip int `json:"in_trip"`
	SOS    int `json:"sos"`
}

type AdminView struct {
	Drivers  []DriverRow    `json:"drivers"`
	Buses    []AdminBusRow  `json:"buses"`
	Routes   []models.Route `json:"routes"`
	Stats    Stats          `json:"stats"`
	SOS      []AdminBusRow  `json:"sos"`
	LoadedAt time.Time      `json:"loaded_at"`
}

type AdminBoard struct {
	src  Source
	snap snapshot[AdminView]
}

func NewAdminBoard(src Source) *AdminBoard { return &AdminBoard{src: src} }

func (b *AdminBoard) Current() (AdminView, bool) { return b.snap.load() }

// Reload rebuilds the dashboard. A driver's assigned bus is read from the
// bus side of the link.
func (b *AdminBoard) Reload(ctx context.Context) (AdminView, error) {
	routes, err := b.src.ListRoutes(ctx)
	if err != nil {
		return AdminView{}, fmt.Errorf("list routes: %w", err)
	}
	buses, err := b.src.ListBuses(ctx, "")
	if err != nil {
		return AdminView{}, fmt.Errorf("list buses: %w", err)
	}
	drivers, err := b.src.ListDrivers(ctx)
	if err != nil {
		return AdminView{}, fmt.Errorf("list drivers: %w", err)
	}

	routeNames := make(map[string]string, len(routes))
	for _, r := range routes {
		routeNames[r.ID] = r.Name
	}
	driverNames := make(map[string]string, len(drivers))
	for _, d := range drivers {
		driverNames[d.ID] = d.Name
	}
	busOf := make(map[string]string, len(buses))

	v := AdminView{Routes: routes, LoadedAt: time.Now().UTC()}
	for _, bus := range buses {
		var row AdminBusRow
		if err := copier.Copy(&row, &bus); err != nil {
			return AdminView{}, fmt.Errorf("bus %s row: %w", bus.ID, err)
		}
		row.Driver, row.Route = Unassigned, Unassigned
		if bus.DriverID != nil {
			row.DriverID = *bus.DriverID
			if n, ok := driverNames[row.DriverID]; ok {
				row.Driver = n
			}
			busOf[row.DriverID] = bus.ID
		}
		if bus.RouteID != nil {
			row.RouteID = *bus.RouteID
			if n, ok := routeNames[row.RouteID]; ok {
				row.Route = n
			}
		}

		v.Stats.Total++
		switch bus.Status {
		case models.StatusAvailable:
			v.Stats.Active++
		case models.StatusInTrip:
			v.Stats.Active++
			v.Stats.InTrip++
		}
		if bus.SOS {
			v.Stats.SOS++
			v.SOS = append(v.SOS, row)
		}
		v.Buses = append(v.Buses, row)
	}

	for _, d := range drivers {
		var row DriverRow
		if err := copier.Copy(&row, &d); err != nil {
			return AdminView{}, fmt.Errorf("driver %s row: %w", d.ID, err)
		}
		row.AssignedBus = busOf[d.ID]
		v.Drivers = append(v.Drivers, row)
	}

	b.snap.store(v)
	return v, nil
}

func (b *AdminBoard) Watch(ctx context.Context, sub Subscriber, onChange func(AdminView)) {
	Watch(ctx, sub, "", func(ctx context.Context) error {
		v, err := b.Reload(ctx)
		if err == nil && onChange != nil {
			onChange(v)
		}
		return err
	})
}
