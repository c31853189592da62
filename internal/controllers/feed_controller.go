package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bus_tracker/internal/feed"
)

func (h *Handler) VehiclePositions(c *gin.Context) {
	buses, err := h.GW.ListBuses(c.Request.Context(), "")
	if err != nil {
		respondError(c, err)
		return
	}
	raw, err := feed.Marshal(buses, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, feed.ContentType, raw)
}
