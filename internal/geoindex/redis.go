package geoindex

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"bus_tracker/internal/models"
)

const DefaultKey = "buses:locations"

// RedisIndex keeps bus positions in a Redis GEO set.
type RedisIndex struct {
	rdb *redis.Client
	key string
}

// DialRedis connects to url (redis://...) and checks the connection.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func NewRedisIndex(rdb *redis.Client, key string) *RedisIndex {
	if key == "" {
		key = DefaultKey
	}
	return &RedisIndex{rdb: rdb, key: key}
}

func (r *RedisIndex) Update(ctx context.Context, busID string, loc models.LatLng) error {
	return r.rdb.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      busID,
		Longitude: loc.Lng,
		Latitude:  loc.Lat,
	}).Err()
}

func (r *RedisIndex) Remove(ctx context.Context, busID string) error {
	return r.rdb.ZRem(ctx, r.key, busID).Err()
}

func (r *RedisIndex) Nearby(ctx context.Context, center models.LatLng, radiusKm float64) ([]Hit, error) {
	locs, err := r.rdb.GeoRadius(ctx, r.key, center.Lng, center.Lat, &redis.GeoRadiusQuery{
		Radius:   radiusKm,
		Unit:     "km",
		WithDist: true,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(locs))
	for _, l := range locs {
		hits = append(hits, Hit{BusID: l.Name, DistanceKm: l.Dist})
	}
	return hits, nil
}
