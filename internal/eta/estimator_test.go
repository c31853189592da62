package eta

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bus_tracker/internal/models"
)

type fakeRouter struct {
	d     time.Duration
	err   error
	calls int
}

func (f *fakeRouter) DrivingDuration(ctx context.Context, from, to models.LatLng) (time.Duration, error) {
	f.calls++
	return f.d, f.err
}

type countingMetrics map[string]int

func (c countingMetrics) ObserveETA(source string) { c[source]++ }

var (
	jalna = models.LatLng{Lat: 19.8347, Lng: 75.8816}
	pune  = models.LatLng{Lat: 18.5204, Lng: 73.8567}
)

func TestEstimatePrefersRouting(t *testing.T) {
	r := &fakeRouter{d: 3*time.Hour + 12*time.Minute}
	m := countingMetrics{}
	e := NewEstimator(r, 0)
	e.Metrics = m

	got := e.Estimate(context.Background(), jalna, pune)
	assert.Equal(t, "3 hr 12 min", got.Text)
	assert.Equal(t, SourceRouting, got.Source)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, 1, m["routing"])
}

func TestEstimateFallsBackOnError(t *testing.T) {
	e := NewEstimator(&fakeRouter{err: errors.New("ZERO_RESULTS")}, 50)

	got := e.Estimate(context.Background(), jalna, pune)
	assert.Equal(t, SourceFallback, got.Source)
	assert.Equal(t, "5 hr 10 min", got.Text)
	assert.Equal(t, e.Fallback(jalna, pune), got.Text)
}

func TestEstimateWithoutRouter(t *testing.T) {
	e := NewEstimator(nil, 50)
	got := e.Estimate(context.Background(), jalna, jalna)
	assert.Equal(t, "< 1 min", got.Text)
	assert.Equal(t, SourceFallback, got.Source)
}
