package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/eta"
	"bus_tracker/internal/gateway"
	"bus_tracker/internal/realtime"
)

var (
	_ realtime.Metrics     = (*Collector)(nil)
	_ realtime.NATSMetrics = (*Collector)(nil)
	_ gateway.Metrics      = (*Collector)(nil)
	_ eta.Metrics          = (*Collector)(nil)
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()
	c.ObserveChange("UPDATE")
	c.ObserveChange("UPDATE")
	c.SubscriptionOpened()
	c.SubscriptionOpened()
	c.SubscriptionClosed()
	c.ObserveETA("fallback")
	c.ObserveGatewayError("update_bus")
	c.NATSSetConnected(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ChangeEvents.WithLabelValues("UPDATE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ActiveSubscriptions))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ETAEstimates.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.GatewayErrors.WithLabelValues("update_bus")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NATSConnected))
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := NewCollector()
	r := gin.New()
	r.Use(c.GinMiddleware())
	r.GET("/buses/:id", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(c.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/buses/A", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/buses/:id", "204")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	assert.Contains(t, string(body), `bustracker_http_requests_total{code="204",method="GET",route="/buses/:id"} 1`)
}
