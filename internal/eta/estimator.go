// Package eta turns two coordinates into a display arrival estimate.
package eta

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/geo"
	"bus_tracker/internal/models"
)

// RoutingService answers driving-time queries between two points.
type RoutingService interface {
	DrivingDuration(ctx context.Context, from, to models.LatLng) (time.Duration, error)
}

// Source records which path produced an estimate.
type Source string

const (
	SourceRouting  Source = "routing"
	SourceFallback Source = "fallback"
)

type Result struct {
	Text    string  `json:"eta"`
	Minutes float64 `json:"minutes"`
	Source  Source  `json:"source"`
}

// Metrics receives one observation per estimate.
type Metrics interface {
	ObserveETA(source string)
}

// Estimator prefers the routing service and falls back to a straight-line
// estimate at SpeedKmh whenever routing is unavailable or fails.
type Estimator struct {
	Router   RoutingService
	SpeedKmh float64
	Timeout  time.Duration
	Metrics  Metrics
}

func NewEstimator(router RoutingService, speedKmh float64) *Estimator {
	if speedKmh <= 0 {
		speedKmh = geo.DefaultSpeedKmh
	}
	return &Estimator{Router: router, SpeedKmh: speedKmh, Timeout: 5 * time.Second}
}

// Estimate never fails; any routing error degrades to the fallback.
func (e *Estimator) Estimate(ctx context.Context, from, to models.LatLng) Result {
	if e.Router != nil {
		rctx := ctx
		if e.Timeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(ctx, e.Timeout)
			defer cancel()
		}
		d, err := e.Router.DrivingDuration(rctx, from, to)
		if err == nil {
			return e.observe(Result{Text: geo.FormatMinutes(d.Minutes()), Minutes: d.Minutes(), Source: SourceRouting})
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"from": from.String(),
			"to":   to.String(),
		}).Debug("routing ETA failed, using straight-line estimate")
	}
	mins := geo.TravelMinutes(from, to, e.SpeedKmh)
	return e.observe(Result{Text: geo.FormatMinutes(float64(mins)), Minutes: float64(mins), Source: SourceFallback})
}

// Fallback is the pure straight-line estimate, skipping the routing service.
func (e *Estimator) Fallback(from, to models.LatLng) string {
	return geo.FallbackETA(from, to, e.SpeedKmh)
}

func (e *Estimator) observe(r Result) Result {
	if e.Metrics != nil {
		e.Metrics.ObserveETA(string(r.Source))
	}
	return r
}
