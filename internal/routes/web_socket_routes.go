package routes

import (
	"github.com/gin-gonic/gin"

	"bus_tracker/internal/controllers"
)

// WebSocketRoutes authenticate through the token query parameter where needed.
func WebSocketRoutes(r *gin.Engine, h *controllers.Handler) {
	ws := r.Group("/ws")
	{
		ws.GET("/buses", h.BusStream)
		ws.GET("/board", h.BoardStream)
		ws.GET("/admin", h.AdminStream)
		ws.GET("/driver", h.DriverSocket)
	}
}
