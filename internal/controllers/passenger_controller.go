package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bus_tracker/internal/geo"
	"bus_tracker/internal/view"
)

func (h *Handler) passengerQuery(c *gin.Context) (view.Query, bool) {
	from, ok := queryPoint(c, "lat", "lng")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng must be valid coordinates"})
		return view.Query{}, false
	}
	return view.Query{RouteID: c.Query("route_id"), From: from}, true
}

// PassengerBoard is the passenger screen: routes, the selected route and its
// buses with ETA and distance from the caller when lat/lng are given.
func (h *Handler) PassengerBoard(c *gin.Context) {
	q, ok := h.passengerQuery(c)
	if !ok {
		return
	}
	board := view.NewPassengerBoard(h.GW, h.ETA, h.addresser())
	v, err := board.Reload(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) EstimateETA(c *gin.Context) {
	from, ok1 := queryPoint(c, "from_lat", "from_lng")
	to, ok2 := queryPoint(c, "to_lat", "to_lng")
	if !ok1 || !ok2 || from == nil || to == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from_lat, from_lng, to_lat and to_lng are required"})
		return
	}
	res := h.ETA.Estimate(c.Request.Context(), *from, *to)
	c.JSON(http.StatusOK, gin.H{
		"eta":      res.Text,
		"minutes":  res.Minutes,
		"source":   res.Source,
		"distance": geo.FormatDistance(geo.Haversine(*from, *to)),
	})
}
