package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/auth"
	"bus_tracker/internal/controllers"
	"bus_tracker/internal/middleware"
)

func AdminRoutes(r *gin.Engine, h *controllers.Handler) {
	admin := r.Group("/admin")
	admin.Use(middleware.RequireRole(auth.Admin))
	{
		admin.GET("/dashboard", h.Dashboard)
		admin.POST("/repair", h.RepairAssignments)

		admin.GET("/routes", h.ListRoutes)
		admin.POST("/routes", h.CreateRoute)
		admin.GET("/routes/:id", h.GetRoute)
		admin.PUT("/routes/:id", h.UpdateRoute)
		admin.DELETE("/routes/:id", h.DeleteRoute)

		admin.GET("/buses", h.ListBuses)
		admin.POST("/buses", h.CreateBus)
		admin.GET("/buses/:id", h.GetBus)
		admin.PUT("/buses/:id", h.UpdateBus)
		admin.DELETE("/buses/:id", h.DeleteBus)
		admin.GET("/buses/:id/trail", h.BusTrail)
		admin.POST("/buses/:id/sos/resolve", h.ResolveSOS)

		admin.GET("/drivers", h.ListDrivers)
		admin.POST("/drivers", h.CreateDriver)
		admin.GET("/drivers/:id", h.GetDriver)
		admin.PUT("/drivers/:id", h.UpdateDriver)
		admin.DELETE("/drivers/:id", h.DeleteDriver)
	}
}
