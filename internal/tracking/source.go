package tracking

import (
	"context"
	"fmt"
	"sync"

	"bus_tracker/internal/geo"
	"bus_tracker/internal/models"
)

// Geolocation error codes reported by devices.
const (
	PermissionDenied    = 1
	PositionUnavailable = 2
	Timeout             = 3
)

type GeolocationError struct {
	Code    int
	Message string
}

func (e *GeolocationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("geolocation error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("geolocation error %d", e.Code)
}

// StaticSource always reports the same position, or Err when set.
type StaticSource struct {
	Position models.LatLng
	Err      error
}

func (s StaticSource) Current(ctx context.Context) (models.LatLng, error) {
	if err := ctx.Err(); err != nil {
		return models.LatLng{}, &GeolocationError{Code: Timeout, Message: err.Error()}
	}
	if s.Err != nil {
		return models.LatLng{}, s.Err
	}
	return s.Position, nil
}

// RoutePathSource replays a route path, advancing StepKm per sample and
// turning back at either end.
type RoutePathSource struct {
	path   []models.LatLng
	stepKm float64

	mu      sync.Mutex
	seg     int
	along   float64 // km into the current segment
	reverse bool
}

func NewRoutePathSource(path []models.LatLng, stepKm float64) (*RoutePathSource, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("route path needs at least two points, got %d", len(path))
	}
	if geo.PathLength(path) == 0 {
		return nil, fmt.Errorf("route path has zero length")
	}
	if stepKm <= 0 {
		stepKm = 0.5
	}
	p := make([]models.LatLng, len(path))
	copy(p, path)
	return &RoutePathSource{path: p, stepKm: stepKm}, nil
}

func (r *RoutePathSource) Current(ctx context.Context) (models.LatLng, error) {
	if err := ctx.Err(); err != nil {
		return models.LatLng{}, &GeolocationError{Code: Timeout, Message: err.Error()}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	pos := r.position()
	r.advance(r.stepKm)
	return pos, nil
}

func (r *RoutePathSource) endpoints() (models.LatLng, models.LatLng) {
	if r.reverse {
		n := len(r.path) - 1
		return r.path[n-r.seg], r.path[n-r.seg-1]
	}
	return r.path[r.seg], r.path[r.seg+1]
}

func (r *RoutePathSource) position() models.LatLng {
	a, b := r.endpoints()
	length := geo.Haversine(a, b)
	if length == 0 {
		return a
	}
	return geo.Interpolate(a, b, r.along/length)
}

func (r *RoutePathSource) advance(km float64) {
	for km > 0 {
		a, b := r.endpoints()
		left := geo.Haversine(a, b) - r.along
		if km < left {
			r.along += km
			return
		}
		km -= left
		r.along = 0
		r.seg++
		if r.seg == len(r.path)-1 {
			r.seg = 0
			r.reverse = !r.reverse
		}
	}
}
