package view

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/eta"
	"bus_tracker/internal/models"
	"bus_tracker/internal/realtime"
)

type fakeSource struct {
	routes  []models.Route
	buses   []models.Bus
	drivers []models.Driver
	calls   atomic.Int32
}

func (f *fakeSource) ListRoutes(context.Context) ([]models.Route, error) {
	f.calls.Add(1)
	return f.routes, nil
}

func (f *fakeSource) ListBuses(_ context.Context, routeID string) ([]models.Bus, error) {
	var out []models.Bus
	for _, b := range f.buses {
		if routeID == "" || (b.RouteID != nil && *b.RouteID == routeID) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeSource) ListDrivers(context.Context) ([]models.Driver, error) {
	return f.drivers, nil
}

type fixedAddress string

func (a fixedAddress) ReverseGeocode(context.Context, models.LatLng) (string, error) {
	if a == "" {
		return "", errors.New("quota exceeded")
	}
	return string(a), nil
}

func ptr(s string) *string { return &s }

func fixture() *fakeSource {
	return &fakeSource{
		routes: []models.Route{
			{ID: "r1", Name: "Jalna - Aurangabad"},
			{ID: "r2", Name: "Jalna - Pune"},
		},
		buses: []models.Bus{
			{ID: "A", RouteID: ptr("r1"), DriverID: ptr("d1"), Location: models.LatLng{Lat: 19.8347, Lng: 75.8816}, Status: models.StatusInTrip, Occupancy: models.OccupancyLow},
			{ID: "B", RouteID: ptr("r1"), Location: models.DefaultBusLocation, Status: models.StatusInactive, Occupancy: models.OccupancyEmpty, SOS: true},
			{ID: "C", RouteID: ptr("r2"), DriverID: ptr("d2"), Location: models.LatLng{Lat: 18.5204, Lng: 73.8567}, Status: models.StatusAvailable, Occupancy: models.OccupancyFull},
			{ID: "D", DriverID: ptr("ghost"), Location: models.DefaultBusLocation, Status: models.StatusInactive},
		},
		drivers: []models.Driver{
			{ID: "d1", Name: "Ravi", AssignedBusID: ptr("stale")},
			{ID: "d2", Name: "Sunil"},
			{ID: "d3", Name: "Idle"},
		},
	}
}

func TestPassengerReloadSelectsFirstRoute(t *testing.T) {
	src := fixture()
	b := NewPassengerBoard(src, eta.NewEstimator(nil, 0), nil)

	v, err := b.Reload(context.Background(), Query{})
	require.NoError(t, err)
	require.NotNil(t, v.Selected)
	assert.Equal(t, "r1", v.Selected.ID)
	require.Len(t, v.Buses, 2)

	a, ok := v.Bus("A")
	require.True(t, ok)
	assert.Equal(t, "d1", a.DriverID)
	assert.Equal(t, "Jalna - Aurangabad", a.Route)
	assert.Equal(t, models.OccupancyLow, a.Occupancy)
	assert.Empty(t, a.ETA, "no passenger position")
	assert.Equal(t, Locating, a.Address)

	bb, _ := v.Bus("B")
	assert.Equal(t, "", bb.DriverID)
	assert.True(t, bb.SOS)

	cur, ok := b.Current()
	require.True(t, ok)
	assert.Equal(t, v.LoadedAt, cur.LoadedAt)
}

func TestPassengerReloadComputesETA(t *testing.T) {
	src := fixture()
	b := NewPassengerBoard(src, eta.NewEstimator(nil, 50), fixedAddress("Station Road, Pune"))
	user := models.LatLng{Lat: 19.8347, Lng: 75.8816}

	v, err := b.Reload(context.Background(), Query{RouteID: "r2", From: &user})
	require.NoError(t, err)
	c, ok := v.Bus("C")
	require.True(t, ok)
	assert.Equal(t, "5 hr 10 min", c.ETA)
	assert.Equal(t, "258.0 km", c.Distance)
	assert.Equal(t, "Station Road, Pune", c.Address)

	_, ok = v.Bus("A")
	assert.False(t, ok, "rows are replaced, not merged")
}

func TestPassengerAddressFailureKeepsPlaceholder(t *testing.T) {
	b := NewPassengerBoard(fixture(), nil, fixedAddress(""))
	v, err := b.Reload(context.Background(), Query{RouteID: "r1"})
	require.NoError(t, err)
	a, _ := v.Bus("A")
	assert.Equal(t, Locating, a.Address)
}

func TestPassengerNoRoutes(t *testing.T) {
	b := NewPassengerBoard(&fakeSource{}, nil, nil)
	v, err := b.Reload(context.Background(), Query{RouteID: "r1"})
	require.NoError(t, err)
	assert.Nil(t, v.Selected)
	assert.Empty(t, v.Buses)
}

func TestAdminReload(t *testing.T) {
	b := NewAdminBoard(fixture())
	v, err := b.Reload(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Stats{Total: 4, Active: 2, InTrip: 1, SOS: 1}, v.Stats)
	require.Len(t, v.SOS, 1)
	assert.Equal(t, "B", v.SOS[0].ID)

	rows := map[string]AdminBusRow{}
	for _, r := range v.Buses {
		rows[r.ID] = r
	}
	assert.Equal(t, "Ravi", rows["A"].Driver)
	assert.Equal(t, "Jalna - Aurangabad", rows["A"].Route)
	assert.Equal(t, Unassigned, rows["B"].Driver)
	assert.Equal(t, Unassigned, rows["D"].Route)
	assert.Equal(t, Unassigned, rows["D"].Driver, "unknown driver id")
	assert.Equal(t, models.OccupancyFull, rows["C"].Occupancy)
	assert.Equal(t, models.StatusAvailable, rows["C"].Status)
	assert.Equal(t, models.LatLng{Lat: 18.5204, Lng: 73.8567}, rows["C"].Location)

	drivers := map[string]DriverRow{}
	for _, d := range v.Drivers {
		drivers[d.ID] = d
	}
	assert.Equal(t, "A", drivers["d1"].AssignedBus, "bus side wins over stale driver row")
	assert.Equal(t, "C", drivers["d2"].AssignedBus)
	assert.Equal(t, "", drivers["d3"].AssignedBus)
	assert.Equal(t, "Sunil", drivers["d2"].Name)
}

func TestWatchReloadsOnEvents(t *testing.T) {
	hub := realtime.NewHub(nil)
	defer hub.Close()
	src := fixture()
	b := NewAdminBoard(src)
	var seen atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Watch(ctx, subscriberFunc(func(routeID string, cb func(realtime.ChangeEvent)) *realtime.Subscription {
			return hub.Subscribe(realtime.Filter{RouteID: routeID}, cb)
		}), func(v AdminView) { seen.Store(int32(v.Stats.Total)) })
		close(done)
	}()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(realtime.NewBusEvent(realtime.EventUpdate, models.Bus{ID: "A"}, nil))
	require.Eventually(t, func() bool { return src.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return seen.Load() == 4 }, time.Second, 5*time.Millisecond)
	_, ok := b.Current()
	assert.True(t, ok)

	cancel()
	<-done
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}

type subscriberFunc func(routeID string, cb func(realtime.ChangeEvent)) *realtime.Subscription

func (f subscriberFunc) SubscribeBuses(routeID string, cb func(realtime.ChangeEvent)) *realtime.Subscription {
	return f(routeID, cb)
}
