package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	LocationUpdates     prometheus.Counter
	ChangeEvents        *prometheus.CounterVec // type label: INSERT|UPDATE|DELETE
	ActiveSubscriptions prometheus.Gauge
	DroppedEvents       prometheus.Counter

	ETAEstimates  *prometheus.CounterVec // source label: routing|fallback
	GatewayErrors *prometheus.CounterVec // op label

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		LocationUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_location_updates_total",
			Help: "Total driver location updates written.",
		}),
		ChangeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bustracker_change_events_total",
			Help: "Bus change events published to subscribers.",
		}, []string{"type"}),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bustracker_active_subscriptions",
			Help: "Number of open change subscriptions.",
		}),
		DroppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_dropped_events_total",
			Help: "Change events dropped because a subscriber was too slow.",
		}),
		ETAEstimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bustracker_eta_estimates_total",
			Help: "ETA estimates by source.",
		}, []string{"source"}),
		GatewayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bustracker_gateway_errors_total",
			Help: "Failed gateway operations.",
		}, []string{"op"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bustracker_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bustracker_http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bustracker_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.LocationUpdates, c.ChangeEvents, c.ActiveSubscriptions, c.DroppedEvents,
		c.ETAEstimates, c.GatewayErrors,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.HTTPRequests, c.HTTPDuration,
	)
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Registry exposes the private registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// hub
func (c *Collector) ObserveChange(eventType string) { c.ChangeEvents.WithLabelValues(eventType).Inc() }
func (c *Collector) SubscriptionOpened()            { c.ActiveSubscriptions.Inc() }
func (c *Collector) SubscriptionClosed()            { c.ActiveSubscriptions.Dec() }
func (c *Collector) EventDropped()                  { c.DroppedEvents.Inc() }

// gateway
func (c *Collector) ObserveGatewayError(op string) { c.GatewayErrors.WithLabelValues(op).Inc() }
func (c *Collector) ObserveLocationUpdate()        { c.LocationUpdates.Inc() }

// eta
func (c *Collector) ObserveETA(source string) { c.ETAEstimates.WithLabelValues(source).Inc() }

// nats
func (c *Collector) NATSPublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
		return
	}
	c.NATSConnected.Set(0)
}

// GinMiddleware records request counts and latency by matched route.
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.HTTPRequests.WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.HTTPDuration.WithLabelValues(ctx.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
