package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/auth"
	"bus_tracker/internal/controllers"
	"bus_tracker/internal/middleware"
)

func DriverRoutes(r *gin.Engine, h *controllers.Handler) {
	driver := r.Group("/driver")
	driver.Use(middleware.RequireRole(auth.Driver))
	{
		driver.GET("/bus", h.GetAuthenticatedDriverBus)
		driver.POST("/online", h.GoOnline)
		driver.POST("/offline", h.GoOffline)
		driver.POST("/location", h.UpdateLocation)
		driver.POST("/occupancy", h.UpdateOccupancy)
		driver.POST("/trip/start", h.StartTrip)
		driver.POST("/trip/end", h.EndTrip)
		driver.POST("/sos", h.RaiseSOS)
	}
}
