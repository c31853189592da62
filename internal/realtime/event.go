// Package realtime fans bus change events out to subscribers, locally and
// across instances through PostgreSQL LISTEN/NOTIFY or NATS.
package realtime

import (
	"context"
	"time"

	"bus_tracker/internal/models"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent describes one committed write to the buses table.
type ChangeEvent struct {
	Type            EventType   `json:"eventType"`
	Table           string      `json:"table"`
	BusID           string      `json:"bus_id"`
	RouteID         *string     `json:"route_id"`
	OldRouteID      *string     `json:"old_route_id,omitempty"`
	Record          *models.Bus `json:"record,omitempty"`
	CommitTimestamp time.Time   `json:"commit_timestamp"`
}

// NewBusEvent builds an event for bus b. oldRouteID is the route before the write.
func NewBusEvent(t EventType, b models.Bus, oldRouteID *string) ChangeEvent {
	ev := ChangeEvent{
		Type:            t,
		Table:           "buses",
		BusID:           b.ID,
		RouteID:         b.RouteID,
		OldRouteID:      oldRouteID,
		CommitTimestamp: time.Now().UTC(),
	}
	if t != EventDelete {
		rec := b
		ev.Record = &rec
	}
	return ev
}

// Notifier is where the gateway reports committed writes.
type Notifier interface {
	Notify(ctx context.Context, ev ChangeEvent) error
}

// Filter selects events by route. The zero Filter matches everything.
type Filter struct {
	RouteID string
}

// Match is true when the event's current or previous route is the filtered
// one, so viewers of a route also learn about buses leaving it.
func (f Filter) Match(ev ChangeEvent) bool {
	if f.RouteID == "" {
		return true
	}
	return (ev.RouteID != nil && *ev.RouteID == f.RouteID) ||
		(ev.OldRouteID != nil && *ev.OldRouteID == f.RouteID)
}
