package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/gateway"
	"bus_tracker/internal/geo"
	"bus_tracker/internal/models"
)

const defaultNearbyRadiusKm = 10

func (h *Handler) ListBuses(c *gin.Context) {
	buses, err := h.GW.ListBuses(c.Request.Context(), c.Query("route_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": buses})
}

func (h *Handler) GetBus(c *gin.Context) {
	bus, err := h.GW.GetBus(c.Request.Context(), gateway.NormalizeBusID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bus)
}

type nearbyBus struct {
	models.Bus
	DistanceKm float64 `json:"distance_km"`
	Distance   string  `json:"distance"`
	ETA        string  `json:"eta"`
}

// NearbyBuses lists buses within radius_km (default 10) of lat/lng, nearest
// first, with a straight-line ETA to the caller.
func (h *Handler) NearbyBuses(c *gin.Context) {
	center, ok := queryPoint(c, "lat", "lng")
	if !ok || center == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}
	radius := float64(defaultNearbyRadiusKm)
	if c.Query("radius_km") != "" {
		r, ok := queryFloat(c, "radius_km")
		if !ok || r <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius_km must be a positive number"})
			return
		}
		radius = r
	}

	ctx := c.Request.Context()
	hits, err := h.Index.Nearby(ctx, *center, radius)
	if err != nil {
		respondError(c, err)
		return
	}
	out := []nearbyBus{}
	for _, hit := range hits {
		bus, err := h.GW.GetBus(ctx, hit.BusID)
		if err != nil {
			// index lagging behind a delete
			logrus.WithError(err).WithField("bus_id", hit.BusID).Debug("Nearby hit not loadable")
			continue
		}
		out = append(out, nearbyBus{
			Bus:        bus,
			DistanceKm: hit.DistanceKm,
			Distance:   geo.FormatDistance(hit.DistanceKm),
			ETA:        h.ETA.Fallback(bus.Location, *center),
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

type busInput struct {
	ID        string            `json:"id"`
	RouteID   *string           `json:"route_id"`
	DriverID  *string           `json:"driver_id"`
	Location  *models.LatLng    `json:"location"`
	Occupancy *models.Occupancy `json:"occupancy"`
	Status    *models.BusStatus `json:"status"`
	SOS       *bool             `json:"sos"`
	Capacity  *int              `json:"capacity"`
}

func (h *Handler) CreateBus(c *gin.Context) {
	var input busInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus input: " + err.Error()})
		return
	}
	nb := gateway.NewBus{ID: input.ID, RouteID: input.RouteID, DriverID: input.DriverID, Location: input.Location}
	if input.Capacity != nil {
		nb.Capacity = *input.Capacity
	}

	ctx := c.Request.Context()
	bus, err := h.GW.CreateBus(ctx, nb)
	if err != nil {
		respondError(c, err)
		return
	}
	// optional initial state beyond the creation defaults
	if input.Status != nil || input.Occupancy != nil {
		bus, err = h.GW.UpdateBus(ctx, bus.ID, gateway.BusPatch{Status: input.Status, Occupancy: input.Occupancy})
		if err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, bus)
}

func (h *Handler) UpdateBus(c *gin.Context) {
	var input busInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus input: " + err.Error()})
		return
	}
	bus, err := h.GW.UpdateBus(c.Request.Context(), gateway.NormalizeBusID(c.Param("id")), gateway.BusPatch{
		RouteID:   input.RouteID,
		DriverID:  input.DriverID,
		Location:  input.Location,
		Occupancy: input.Occupancy,
		Status:    input.Status,
		SOS:       input.SOS,
		Capacity:  input.Capacity,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bus)
}

func (h *Handler) DeleteBus(c *gin.Context) {
	if err := h.GW.DeleteBus(c.Request.Context(), gateway.NormalizeBusID(c.Param("id"))); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bus deleted"})
}

func (h *Handler) ResolveSOS(c *gin.Context) {
	bus, err := h.GW.ResolveSOS(c.Request.Context(), gateway.NormalizeBusID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bus)
}

// BusTrail returns the recorded breadcrumbs of a bus, newest first.
func (h *Handler) BusTrail(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	trail, err := h.GW.Trail(c.Request.Context(), gateway.NormalizeBusID(c.Param("id")), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": trail})
}
