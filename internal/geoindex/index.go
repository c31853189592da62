// Package geoindex answers "which buses are near me" from a geo index kept
// current by bus change events.
package geoindex

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/geo"
	"bus_tracker/internal/models"
	"bus_tracker/internal/realtime"
)

type Hit struct {
	BusID      string  `json:"bus_id"`
	DistanceKm float64 `json:"distance_km"`
}

type Index interface {
	Update(ctx context.Context, busID string, loc models.LatLng) error
	Remove(ctx context.Context, busID string) error
	// Nearby returns buses within radiusKm of center, nearest first.
	Nearby(ctx context.Context, center models.LatLng, radiusKm float64) ([]Hit, error)
}

// Load indexes the current position of every bus.
func Load(ctx context.Context, idx Index, buses []models.Bus) error {
	for _, b := range buses {
		if err := idx.Update(ctx, b.ID, b.Location); err != nil {
			return err
		}
	}
	return nil
}

// Attach keeps idx in step with hub events until the returned subscription
// is released.
func Attach(hub *realtime.Hub, idx Index) *realtime.Subscription {
	log := logrus.WithField("component", "geoindex")
	return hub.Subscribe(realtime.Filter{}, func(ev realtime.ChangeEvent) {
		ctx := context.Background()
		var err error
		switch {
		case ev.Type == realtime.EventDelete:
			err = idx.Remove(ctx, ev.BusID)
		case ev.Record != nil:
			err = idx.Update(ctx, ev.BusID, ev.Record.Location)
		}
		if err != nil {
			log.WithError(err).WithField("bus_id", ev.BusID).Warn("Failed to update geo index")
		}
	})
}

// MemoryIndex is an in-process index scanned with the haversine distance.
type MemoryIndex struct {
	mu   sync.RWMutex
	locs map[string]models.LatLng
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{locs: make(map[string]models.LatLng)}
}

func (m *MemoryIndex) Update(_ context.Context, busID string, loc models.LatLng) error {
	m.mu.Lock()
	m.locs[busID] = loc
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Remove(_ context.Context, busID string) error {
	m.mu.Lock()
	delete(m.locs, busID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Nearby(_ context.Context, center models.LatLng, radiusKm float64) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hits := []Hit{}
	for id, loc := range m.locs {
		if d := geo.Haversine(center, loc); d <= radiusKm {
			hits = append(hits, Hit{BusID: id, DistanceKm: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceKm == hits[j].DistanceKm {
			return hits[i].BusID < hits[j].BusID
		}
		return hits[i].DistanceKm < hits[j].DistanceKm
	})
	return hits, nil
}
