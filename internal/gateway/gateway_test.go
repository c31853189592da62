package gateway

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/config"
	"bus_tracker/internal/models"
	"bus_tracker/internal/realtime"
	"bus_tracker/internal/store"
)

// spyStore counts writes to driver rows.
type spyStore struct {
	*store.Store
	mu           sync.Mutex
	driverWrites int
}

func (s *spyStore) count() {
	s.mu.Lock()
	s.driverWrites++
	s.mu.Unlock()
}

func (s *spyStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driverWrites
}

func (s *spyStore) UpdateDriver(ctx context.Context, id string, cols map[string]any) (models.Driver, error) {
	s.count()
	return s.Store.UpdateDriver(ctx, id, cols)
}

func (s *spyStore) SetDriverBus(ctx context.Context, driverID string, busID *string) error {
	s.count()
	return s.Store.SetDriverBus(ctx, driverID, busID)
}

func (s *spyStore) ClearDriverBus(ctx context.Context, busID string) (int64, error) {
	s.count()
	return s.Store.ClearDriverBus(ctx, busID)
}

// eventLog records notifications synchronously.
type eventLog struct {
	mu     sync.Mutex
	events []realtime.ChangeEvent
}

func (l *eventLog) Notify(_ context.Context, ev realtime.ChangeEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) forBus(id string) []realtime.ChangeEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []realtime.ChangeEvent
	for _, ev := range l.events {
		if ev.BusID == id {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	gw     *Gateway
	spy    *spyStore
	events *eventLog
	hub    *realtime.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := config.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()), nil)
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	spy := &spyStore{Store: store.New(db)}
	hub := realtime.NewHub(nil)
	t.Cleanup(hub.Close)
	events := &eventLog{}
	return &fixture{gw: New(spy, hub, WithNotifier(events)), spy: spy, events: events, hub: hub}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) driver(t *testing.T, name string) models.Driver {
	t.Helper()
	d, err := f.gw.CreateDriver(context.Background(), NewDriver{Name: name, Email: name + "@bustracker.pro"})
	require.NoError(t, err)
	return d
}

func (f *fixture) bus(t *testing.T, id string, driverID *string) models.Bus {
	t.Helper()
	b, err := f.gw.CreateBus(context.Background(), NewBus{ID: id, DriverID: driverID})
	require.NoError(t, err)
	return b
}

func (f *fixture) assignedBus(t *testing.T, driverID string) *string {
	t.Helper()
	d, err := f.gw.GetDriver(context.Background(), driverID)
	require.NoError(t, err)
	return d.AssignedBusID
}

func TestCreateBusDefaults(t *testing.T) {
	f := newFixture(t)

	b := f.bus(t, " mh-20-bl-1234 ", ptr(""))
	assert.Equal(t, "MH-20-BL-1234", b.ID)
	assert.Nil(t, b.DriverID)
	assert.Equal(t, models.DefaultBusLocation, b.Location)
	assert.Equal(t, models.OccupancyEmpty, b.Occupancy)
	assert.Equal(t, models.StatusInactive, b.Status)

	evs := f.events.forBus("MH-20-BL-1234")
	require.Len(t, evs, 1)
	assert.Equal(t, realtime.EventInsert, evs[0].Type)

	_, err := f.gw.CreateBus(context.Background(), NewBus{ID: "MH-20-BL-1234"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.gw.CreateBus(context.Background(), NewBus{ID: "X", RouteID: ptr("missing")})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEmptyDriverIDStoredAsNull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.driver(t, "ravi")
	f.bus(t, "A", &d.ID)

	b, err := f.gw.UpdateBus(ctx, "A", BusPatch{DriverID: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, b.DriverID)
	assert.Nil(t, f.assignedBus(t, d.ID))
}

func TestReassignmentMovesDriverBetweenBuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d1 := f.driver(t, "ravi")
	d2 := f.driver(t, "sunil")
	f.bus(t, "A", &d1.ID)
	f.bus(t, "B", &d2.ID)
	require.Equal(t, "A", *f.assignedBus(t, d1.ID))

	// give d2 to bus A: d1 loses A, bus B loses d2
	b, err := f.gw.UpdateBus(ctx, "A", BusPatch{DriverID: &d2.ID})
	require.NoError(t, err)
	assert.Equal(t, d2.ID, *b.DriverID)

	assert.Nil(t, f.assignedBus(t, d1.ID))
	assert.Equal(t, "A", *f.assignedBus(t, d2.ID))

	other, err := f.gw.GetBus(ctx, "B")
	require.NoError(t, err)
	assert.Nil(t, other.DriverID)

	evs := f.events.forBus("B")
	require.NotEmpty(t, evs)
	assert.Nil(t, evs[len(evs)-1].Record.DriverID)
}

func TestStatusOnlyEditTouchesNoDriver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.driver(t, "ravi")
	f.bus(t, "A", &d.ID)

	_, err := f.gw.SetStatus(ctx, "A", models.StatusAvailable)
	require.NoError(t, err)

	before := f.spy.writes()
	b, err := f.gw.UpdateBus(ctx, "A", BusPatch{Status: ptr(models.StatusInTrip), DriverID: &d.ID})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInTrip, b.Status)
	assert.Equal(t, before, f.spy.writes())
}

func TestInvalidTransitionRejected(t *testing.T) {
	f := newFixture(t)
	f.bus(t, "A", nil)

	_, err := f.gw.SetStatus(context.Background(), "A", models.StatusInTrip)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	b, err := f.gw.GetBus(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, b.Status)
}

func TestSOSOverlay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.bus(t, "A", nil)
	_, err := f.gw.SetStatus(ctx, "A", models.StatusAvailable)
	require.NoError(t, err)

	b, err := f.gw.RaiseSOS(ctx, "A")
	require.NoError(t, err)
	assert.True(t, b.SOS)
	assert.Equal(t, models.StatusAvailable, b.Status)

	b, err = f.gw.SetStatus(ctx, "A", models.StatusInactive)
	require.NoError(t, err)
	assert.True(t, b.SOS, "status changes never clear SOS")

	b, err = f.gw.ResolveSOS(ctx, "A")
	require.NoError(t, err)
	assert.False(t, b.SOS)
}

func TestDeleteDriverNullsBuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.driver(t, "ravi")
	f.bus(t, "A", &d.ID)

	require.NoError(t, f.gw.DeleteDriver(ctx, d.ID))

	b, err := f.gw.GetBus(ctx, "A")
	require.NoError(t, err)
	assert.Nil(t, b.DriverID)
	_, err = f.gw.GetDriver(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.spy.GetUserByEmail(ctx, "ravi@bustracker.pro")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteRouteNullsBuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.gw.CreateRoute(ctx, RouteInput{Name: "Jalna - Pune", Path: []models.LatLng{{Lat: 19.8347, Lng: 75.8816}, {Lat: 18.5204, Lng: 73.8567}}})
	require.NoError(t, err)
	_, err = f.gw.CreateBus(ctx, NewBus{ID: "A", RouteID: &r.ID})
	require.NoError(t, err)

	require.NoError(t, f.gw.DeleteRoute(ctx, r.ID))

	b, err := f.gw.GetBus(ctx, "A")
	require.NoError(t, err)
	assert.Nil(t, b.RouteID)

	evs := f.events.forBus("A")
	last := evs[len(evs)-1]
	assert.Nil(t, last.RouteID)
	assert.Equal(t, r.ID, *last.OldRouteID)
	assert.ErrorIs(t, f.gw.DeleteRoute(ctx, r.ID), ErrNotFound)
}

func TestDeleteBusUnassignsDriver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.driver(t, "ravi")
	f.bus(t, "A", &d.ID)

	require.NoError(t, f.gw.DeleteBus(ctx, "A"))
	assert.Nil(t, f.assignedBus(t, d.ID))

	evs := f.events.forBus("A")
	assert.Equal(t, realtime.EventDelete, evs[len(evs)-1].Type)
}

func TestUpdateDriverReassignsFromDriverSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d1 := f.driver(t, "ravi")
	d2 := f.driver(t, "sunil")
	f.bus(t, "A", &d1.ID)
	f.bus(t, "B", nil)

	// d2 takes A from d1
	_, err := f.gw.UpdateDriver(ctx, d2.ID, DriverPatch{AssignedBusID: ptr("A")})
	require.NoError(t, err)
	a, _ := f.gw.GetBus(ctx, "A")
	assert.Equal(t, d2.ID, *a.DriverID)
	assert.Nil(t, f.assignedBus(t, d1.ID))

	// d2 moves on to B: A is released
	_, err = f.gw.UpdateDriver(ctx, d2.ID, DriverPatch{AssignedBusID: ptr("B")})
	require.NoError(t, err)
	a, _ = f.gw.GetBus(ctx, "A")
	b, _ := f.gw.GetBus(ctx, "B")
	assert.Nil(t, a.DriverID)
	assert.Equal(t, d2.ID, *b.DriverID)
	assert.Equal(t, "B", *f.assignedBus(t, d2.ID))
}

func TestCreateDriverWithBusTakesItOver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d1 := f.driver(t, "ravi")
	f.bus(t, "A", &d1.ID)

	d2, err := f.gw.CreateDriver(ctx, NewDriver{Name: "Sunil", Email: "SUNIL@bustracker.pro", AssignedBusID: ptr("A")})
	require.NoError(t, err)
	assert.Equal(t, "sunil@bustracker.pro", d2.Email)

	a, _ := f.gw.GetBus(ctx, "A")
	assert.Equal(t, d2.ID, *a.DriverID)
	assert.Nil(t, f.assignedBus(t, d1.ID))

	_, err = f.gw.CreateDriver(ctx, NewDriver{Name: "Dup", Email: "sunil@bustracker.pro"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.gw.CreateDriver(ctx, NewDriver{Name: "Bad", Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDriverBus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.driver(t, "ravi")

	_, _, err := f.gw.DriverBus(ctx, d.UserID)
	assert.ErrorIs(t, err, ErrNoAssignedBus)

	f.bus(t, "A", &d.ID)
	got, b, err := f.gw.DriverBus(ctx, d.UserID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, "A", b.ID)
}

func TestUpdateLocationRecordsTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.gw.now = func() time.Time { return now }
	f.bus(t, "A", nil)

	_, err := f.gw.UpdateBusLocation(ctx, "A", models.LatLng{Lat: 19.8, Lng: 75.8}, ptr(models.OccupancyLow))
	require.NoError(t, err)

	// 2 m later and 5 s on: not significant
	now = now.Add(5 * time.Second)
	_, err = f.gw.UpdateBusLocation(ctx, "A", models.LatLng{Lat: 19.80001, Lng: 75.8}, nil)
	require.NoError(t, err)

	now = now.Add(5 * time.Second)
	b, err := f.gw.UpdateBusLocation(ctx, "A", models.LatLng{Lat: 19.81, Lng: 75.8}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OccupancyLow, b.Occupancy)

	trail, err := f.gw.Trail(ctx, "A", 10)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "move", trail[0].EventType)
	assert.Equal(t, "initial", trail[1].EventType)

	_, err = f.gw.UpdateBusLocation(ctx, "A", models.LatLng{Lat: 91, Lng: 0}, nil)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUpdateLocationKeepsFixTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.gw.now = func() time.Time { return now }
	f.bus(t, "A", nil)

	fix := now.Add(-30 * time.Second)
	b, err := f.gw.UpdateBusLocationAt(ctx, "A", models.LatLng{Lat: 19.8, Lng: 75.8}, nil, fix)
	require.NoError(t, err)
	assert.True(t, now.Equal(b.LastUpdated), "bus row uses server time, got %s", b.LastUpdated)

	// a device clock running ahead is capped at server time
	_, err = f.gw.UpdateBusLocationAt(ctx, "A", models.LatLng{Lat: 19.81, Lng: 75.8}, nil, now.Add(time.Hour))
	require.NoError(t, err)

	trail, err := f.gw.Trail(ctx, "A", 10)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.True(t, now.Equal(trail[0].Timestamp), "got %s", trail[0].Timestamp)
	assert.True(t, fix.Equal(trail[1].Timestamp), "got %s", trail[1].Timestamp)
}

func TestRepairAssignments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d1 := f.driver(t, "ravi")
	d2 := f.driver(t, "sunil")
	f.bus(t, "A", nil)
	f.bus(t, "B", nil)

	// simulate half-applied writes straight on the store
	_, err := f.spy.Store.UpdateBus(ctx, "A", map[string]any{"driver_id": d1.ID, "last_updated": time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	_, err = f.spy.Store.UpdateBus(ctx, "B", map[string]any{"driver_id": d1.ID, "last_updated": time.Now()})
	require.NoError(t, err)
	require.NoError(t, f.spy.Store.SetDriverBus(ctx, d2.ID, ptr("A")))

	rep, err := f.gw.RepairAssignments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Fixed(), rep.Changes)

	assert.Equal(t, "B", *f.assignedBus(t, d1.ID))
	assert.Nil(t, f.assignedBus(t, d2.ID))
	a, _ := f.gw.GetBus(ctx, "A")
	assert.Nil(t, a.DriverID)

	again, err := f.gw.RepairAssignments(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Fixed())
}

func TestShouldSaveLocation(t *testing.T) {
	now := time.Now()
	ok, ev := shouldSaveLocation(0, 0, 0, nil, now)
	assert.True(t, ok)
	assert.Equal(t, "initial", ev)

	moving := &models.LocationHistory{IsMoving: true, Timestamp: now.Add(-20 * time.Second)}
	ok, ev = shouldSaveLocation(1, 0.1, 20, moving, now)
	assert.True(t, ok)
	assert.Equal(t, "stopped", ev)

	idle := &models.LocationHistory{Timestamp: now.Add(-2 * time.Minute)}
	ok, ev = shouldSaveLocation(1, 0, 120, idle, now)
	assert.True(t, ok)
	assert.Equal(t, "periodic", ev)

	fresh := &models.LocationHistory{Timestamp: now.Add(-3 * time.Second)}
	ok, _ = shouldSaveLocation(1, 0, 3, fresh, now)
	assert.False(t, ok)
}

func TestSubscribeBusesFiltersByRoute(t *testing.T) {
	db, err := config.OpenSQLite("file:TestSubscribeBusesFiltersByRoute?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	hub := realtime.NewHub(nil)
	defer hub.Close()
	gw := New(store.New(db), hub)
	ctx := context.Background()

	r, err := gw.CreateRoute(ctx, RouteInput{Name: "Jalna - Beed"})
	require.NoError(t, err)

	got := make(chan realtime.ChangeEvent, 4)
	sub := gw.SubscribeBuses(r.ID, func(ev realtime.ChangeEvent) { got <- ev })
	defer sub.Unsubscribe()

	_, err = gw.CreateBus(ctx, NewBus{ID: "OFF-ROUTE"})
	require.NoError(t, err)
	_, err = gw.CreateBus(ctx, NewBus{ID: "ON-ROUTE", RouteID: &r.ID})
	require.NoError(t, err)

	select {
	case ev := <-got:
		assert.Equal(t, "ON-ROUTE", ev.BusID)
		assert.Equal(t, realtime.EventInsert, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no event for route subscriber")
	}
}
