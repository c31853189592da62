package routes

import (
	"io"
	"net/http"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/controllers"
	"bus_tracker/internal/metrics"
	"bus_tracker/internal/middleware"
)

// SetupRouter builds the API engine. Request logs go to w; m may be nil.
func SetupRouter(h *controllers.Handler, m *metrics.Collector, w io.Writer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if w != nil {
		r.Use(ginlog.SetLogger(
			ginlog.WithWriter(w),
			ginlog.WithUTC(true),
			ginlog.WithSkipPath([]string{"/healthz", "/metrics"}),
		))
	}
	r.Use(middleware.CORS())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if m != nil {
		r.Use(m.GinMiddleware())
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	AuthRoutes(r, h)
	PassengerRoutes(r, h)
	DriverRoutes(r, h)
	AdminRoutes(r, h)
	WebSocketRoutes(r, h)

	return r
}
