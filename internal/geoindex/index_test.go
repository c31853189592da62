package geoindex

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/models"
	"bus_tracker/internal/realtime"
)

var (
	jalna      = models.LatLng{Lat: 19.8347, Lng: 75.8816}
	ambad      = models.LatLng{Lat: 19.6106, Lng: 75.7865}
	aurangabad = models.LatLng{Lat: 19.8762, Lng: 75.3433}
	pune       = models.LatLng{Lat: 18.5204, Lng: 73.8567}
)

func newRedisIndex(t *testing.T) *RedisIndex {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisIndex(rdb, "")
}

func exercise(t *testing.T, idx Index) {
	ctx := context.Background()
	require.NoError(t, Load(ctx, idx, []models.Bus{
		{ID: "PUNE", Location: pune},
		{ID: "AMBAD", Location: ambad},
		{ID: "AURANGABAD", Location: aurangabad},
	}))

	hits, err := idx.Nearby(ctx, jalna, 80)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "AMBAD", hits[0].BusID)
	assert.Equal(t, "AURANGABAD", hits[1].BusID)
	assert.InDelta(t, 26.7, hits[0].DistanceKm, 1)

	require.NoError(t, idx.Remove(ctx, "AMBAD"))
	hits, err = idx.Nearby(ctx, jalna, 80)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "AURANGABAD", hits[0].BusID)

	hits, err = idx.Nearby(ctx, jalna, 1)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndex(t *testing.T) { exercise(t, NewMemoryIndex()) }

func TestRedisIndex(t *testing.T) { exercise(t, newRedisIndex(t)) }

func TestAttachFollowsEvents(t *testing.T) {
	hub := realtime.NewHub(nil)
	defer hub.Close()
	idx := NewMemoryIndex()
	sub := Attach(hub, idx)
	defer sub.Unsubscribe()
	ctx := context.Background()

	hub.Publish(realtime.NewBusEvent(realtime.EventInsert, models.Bus{ID: "A", Location: ambad}, nil))
	require.Eventually(t, func() bool {
		hits, _ := idx.Nearby(ctx, jalna, 80)
		return len(hits) == 1
	}, time.Second, 5*time.Millisecond)

	hub.Publish(realtime.NewBusEvent(realtime.EventDelete, models.Bus{ID: "A"}, nil))
	require.Eventually(t, func() bool {
		hits, _ := idx.Nearby(ctx, jalna, 80)
		return len(hits) == 0
	}, time.Second, 5*time.Millisecond)
}
