package view

import (
	"context"
	"fmt"
	"time"

	"github.com/jinzhu/copier"
	"github.com/sourcegraph/conc/iter"

	"bus_tracker/internal/geo"
	"bus_tracker/internal/models"
)

type Query struct {
	RouteID string
	// From is the passenger's position; without it ETA and distance are blank.
	From *models.LatLng
}

// BusRow is a bus as shown to passengers.
type BusRow struct {
	ID          string           `json:"id"`
	DriverID    string           `json:"driver_id" copier:"-"`
	Route       string           `json:"route" copier:"-"`
	Location    models.LatLng    `json:"location"`
	Occupancy   models.Occupancy `json:"occupancy"`
	Status      models.BusStatus `json:"status"`
	SOS         bool             `json:"sos"`
	Capacity    int              `json:"capacity"`
	LastUpdated time.Time        `json:"last_updated"`
	ETA         string           `json:"eta"`
	Distance    string           `json:"distance"`
	Address     string           `json:"address"`
}

type PassengerView struct {
	Routes   []models.Route `json:"routes"`
	Selected *models.Route  `json:"selected_route"`
	Buses    []BusRow       `json:"buses"`
	ByID     map[string]int `json:"-"`
	LoadedAt time.Time      `json:"loaded_at"`
}

// Bus returns the row for id, if present.
func (v PassengerView) Bus(id string) (BusRow, bool) {
	i, ok := v.ByID[id]
	if !ok {
		return BusRow{}, false
	}
	return v.Buses[i], true
}

type PassengerBoard struct {
	src  Source
	eta  Estimator
	addr Addresser
	snap snapshot[PassengerView]
}

// NewPassengerBoard builds a board. addr may be nil, leaving addresses as
// the placeholder.
func NewPassengerBoard(src Source, est Estimator, addr Addresser) *PassengerBoard {
	return &PassengerBoard{src: src, eta: est, addr: addr}
}

func (b *PassengerBoard) Current() (PassengerView, bool) { return b.snap.load() }

// Reload fetches routes and the buses of the selected route (the first route
// when q.RouteID is empty or unknown) and replaces the board.
func (b *PassengerBoard) Reload(ctx context.Context, q Query) (PassengerView, error) {
	routes, err := b.src.ListRoutes(ctx)
	if err != nil {
		return PassengerView{}, fmt.Errorf("list routes: %w", err)
	}
	v := PassengerView{Routes: routes, ByID: map[string]int{}, LoadedAt: time.Now().UTC()}
	v.Selected = selectRoute(routes, q.RouteID)
	if v.Selected == nil {
		b.snap.store(v)
		return v, nil
	}

	buses, err := b.src.ListBuses(ctx, v.Selected.ID)
	if err != nil {
		return PassengerView{}, fmt.Errorf("list buses: %w", err)
	}
	v.Buses, err = iter.MapErr(buses, func(bus *models.Bus) (BusRow, error) {
		return b.row(ctx, *bus, v.Selected, q.From)
	})
	if err != nil {
		return PassengerView{}, err
	}
	for i, r := range v.Buses {
		v.ByID[r.ID] = i
	}
	b.snap.store(v)
	return v, nil
}

func selectRoute(routes []models.Route, id string) *models.Route {
	if len(routes) == 0 {
		return nil
	}
	for i := range routes {
		if routes[i].ID == id {
			return &routes[i]
		}
	}
	return &routes[0]
}

func (b *PassengerBoard) row(ctx context.Context, bus models.Bus, route *models.Route, from *models.LatLng) (BusRow, error) {
	var r BusRow
	if err := copier.Copy(&r, &bus); err != nil {
		return BusRow{}, fmt.Errorf("bus %s row: %w", bus.ID, err)
	}
	r.DriverID = ""
	if bus.DriverID != nil {
		r.DriverID = *bus.DriverID
	}
	r.Route = Unassigned
	if route != nil && bus.RouteID != nil && *bus.RouteID == route.ID {
		r.Route = route.Name
	}

	if from != nil && b.eta != nil {
		r.ETA = b.eta.Estimate(ctx, *from, bus.Location).Text
		r.Distance = geo.FormatDistance(geo.Haversine(*from, bus.Location))
	}

	r.Address = Locating
	if b.addr != nil {
		if a, err := b.addr.ReverseGeocode(ctx, bus.Location); err == nil && a != "" {
			r.Address = a
		}
	}
	return r, nil
}

// Watch keeps the board current for q until ctx ends, handing each fresh
// view to onChange when it is not nil.
func (b *PassengerBoard) Watch(ctx context.Context, sub Subscriber, q Query, onChange func(PassengerView)) {
	Watch(ctx, sub, q.RouteID, func(ctx context.Context) error {
		v, err := b.Reload(ctx, q)
		if err == nil && onChange != nil {
			onChange(v)
		}
		return err
	})
}
