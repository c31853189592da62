package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/controllers"
	"bus_tracker/internal/middleware"
)

func AuthRoutes(r *gin.Engine, h *controllers.Handler) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.LoginUser)
		auth.GET("/me", middleware.RequireAuth(), h.Me)
	}
}
