// Package gateway is the single write path for routes, buses and drivers.
// It enforces the cross-entity rules (driver reassignment, unassignment on
// delete, status transitions) as sequences of row writes and reports every
// committed bus write as a change event. There are no transactions: each
// step is an independent write and a failure part way through is returned to
// the caller with the earlier steps left in place.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/models"
	"bus_tracker/internal/realtime"
	"bus_tracker/internal/store"
)

var (
	ErrNotFound          = store.ErrNotFound
	ErrConflict          = store.ErrConflict
	ErrInvalid           = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoAssignedBus     = errors.New("no bus assigned to driver")
)

// Store is the row-level persistence the gateway drives.
type Store interface {
	ListRoutes(ctx context.Context) ([]models.Route, error)
	GetRoute(ctx context.Context, id string) (models.Route, error)
	CreateRoute(ctx context.Context, r *models.Route) error
	SaveRoute(ctx context.Context, r *models.Route) error
	DeleteRoute(ctx context.Context, id string) error

	ListBuses(ctx context.Context, f store.BusFilter) ([]models.Bus, error)
	GetBus(ctx context.Context, id string) (models.Bus, error)
	CreateBus(ctx context.Context, b *models.Bus) error
	UpdateBus(ctx context.Context, id string, cols map[string]any) (models.Bus, error)
	DeleteBus(ctx context.Context, id string) error
	ClearBusRoute(ctx context.Context, routeID string) (int64, error)
	ClearBusDriver(ctx context.Context, driverID, exceptBusID string) (int64, error)

	ListDrivers(ctx context.Context) ([]models.Driver, error)
	GetDriver(ctx context.Context, id string) (models.Driver, error)
	GetDriverByUserID(ctx context.Context, userID string) (models.Driver, error)
	CreateDriver(ctx context.Context, d *models.Driver) error
	UpdateDriver(ctx context.Context, id string, cols map[string]any) (models.Driver, error)
	SetDriverBus(ctx context.Context, driverID string, busID *string) error
	ClearDriverBus(ctx context.Context, busID string) (int64, error)
	DeleteDriver(ctx context.Context, id string) error

	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, id string, cols map[string]any) error
	DeleteUser(ctx context.Context, id string) error

	LastLocation(ctx context.Context, busID string) (models.LocationHistory, error)
	AppendLocation(ctx context.Context, h *models.LocationHistory) error
	Trail(ctx context.Context, busID string, limit int) ([]models.LocationHistory, error)
}

// Metrics observes gateway activity.
type Metrics interface {
	ObserveGatewayError(op string)
	ObserveLocationUpdate()
}

type Gateway struct {
	store    Store
	hub      *realtime.Hub
	notifier realtime.Notifier
	metrics  Metrics
	now      func() time.Time
	log      *logrus.Entry
}

type Option func(*Gateway)

// WithNotifier replaces the hub as the destination of change events, e.g.
// with a PGNotifier whose listener feeds the hub.
func WithNotifier(n realtime.Notifier) Option { return func(g *Gateway) { g.notifier = n } }

func WithMetrics(m Metrics) Option { return func(g *Gateway) { g.metrics = m } }

func WithClock(now func() time.Time) Option { return func(g *Gateway) { g.now = now } }

func New(s Store, hub *realtime.Hub, opts ...Option) *Gateway {
	g := &Gateway{
		store:    s,
		hub:      hub,
		notifier: hub,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logrus.WithField("component", "gateway"),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// SubscribeBuses registers cb for change events on buses of routeID
// ("" for every bus).
func (g *Gateway) SubscribeBuses(routeID string, cb func(realtime.ChangeEvent)) *realtime.Subscription {
	return g.hub.Subscribe(realtime.Filter{RouteID: routeID}, cb)
}

func (g *Gateway) emit(ctx context.Context, t realtime.EventType, b models.Bus, oldRouteID *string) {
	if g.notifier == nil {
		return
	}
	if err := g.notifier.Notify(ctx, realtime.NewBusEvent(t, b, oldRouteID)); err != nil {
		g.fail("notify", err)
		g.log.WithError(err).WithField("bus_id", b.ID).Error("Failed to publish bus change")
	}
}

func (g *Gateway) fail(op string, err error) error {
	if err != nil && g.metrics != nil {
		g.metrics.ObserveGatewayError(op)
	}
	return err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// refValue normalises an optional reference: nil and "" both mean no reference.
func refValue(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func sameRef(a, b *string) bool {
	a, b = refValue(a), refValue(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ignoreNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
