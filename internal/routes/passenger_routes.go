package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/controllers"
)

// PassengerRoutes are public reads.
func PassengerRoutes(r *gin.Engine, h *controllers.Handler) {
	r.GET("/routes", h.ListRoutes)
	r.GET("/routes/:id", h.GetRoute)
	r.GET("/routes/:id/directions", h.Directions)

	r.GET("/buses", h.ListBuses)
	r.GET("/buses/nearby", h.NearbyBuses)
	r.GET("/buses/:id", h.GetBus)

	r.GET("/eta", h.EstimateETA)
	r.GET("/passenger/board", h.PassengerBoard)
	r.GET("/feeds/gtfs-rt/vehicle-positions", h.VehiclePositions)
}
