package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Dashboard is the admin overview: drivers, buses, routes, counts and the
// buses currently signalling SOS.
func (h *Handler) Dashboard(c *gin.Context) {
	v, err := h.Admin.Reload(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) RepairAssignments(c *gin.Context) {
	rep, err := h.GW.RepairAssignments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}
