// Package view builds the passenger and admin boards. Every reload fetches
// the full current set of routes, buses and drivers, maps them to display
// rows and replaces the previous snapshot wholesale. Reloads are not
// ordered: when two overlap, whichever finishes last is kept.
package view

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/eta"
	"bus_tracker/internal/models"
	"bus_tracker/internal/realtime"
)

const (
	Unassigned = "Unassigned"
	Locating   = "Locating..."
)

// Source is the read side of the gateway used by the boards.
type Source interface {
	ListRoutes(ctx context.Context) ([]models.Route, error)
	ListBuses(ctx context.Context, routeID string) ([]models.Bus, error)
	ListDrivers(ctx context.Context) ([]models.Driver, error)
}

type Estimator interface {
	Estimate(ctx context.Context, from, to models.LatLng) eta.Result
}

// Addresser turns a coordinate into a street address.
type Addresser interface {
	ReverseGeocode(ctx context.Context, p models.LatLng) (string, error)
}

// Subscriber is where Watch registers for change events.
type Subscriber interface {
	SubscribeBuses(routeID string, cb func(realtime.ChangeEvent)) *realtime.Subscription
}

// snapshot holds the last completed reload of a board.
type snapshot[T any] struct {
	mu  sync.RWMutex
	val T
	ok  bool
}

func (s *snapshot[T]) store(v T) {
	s.mu.Lock()
	s.val, s.ok = v, true
	s.mu.Unlock()
}

func (s *snapshot[T]) load() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.val, s.ok
}

// Watch reloads on every change event until ctx ends. Events arriving during
// a reload collapse into one further reload. routeID narrows the events that
// trigger a reload; "" watches every bus.
func Watch(ctx context.Context, sub Subscriber, routeID string, reload func(context.Context) error) {
	log := logrus.WithField("component", "view")
	trigger := make(chan struct{}, 1)
	s := sub.SubscribeBuses(routeID, func(realtime.ChangeEvent) {
		select {
		case trigger <- struct{}{}:
		default:
		}
	})
	defer s.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
			if err := reload(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("Board reload failed")
			}
		}
	}
}
