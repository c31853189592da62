package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/gateway"
	"bus_tracker/internal/middleware"
	"bus_tracker/internal/models"
)

func (h *Handler) ListDrivers(c *gin.Context) {
	drivers, err := h.GW.ListDrivers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": drivers})
}

func (h *Handler) GetDriver(c *gin.Context) {
	driver, err := h.GW.GetDriver(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

func (h *Handler) CreateDriver(c *gin.Context) {
	var input struct {
		Name          string  `json:"name" binding:"required"`
		Email         string  `json:"email" binding:"required"`
		Phone         string  `json:"phone"`
		Password      string  `json:"password"`
		AssignedBusID *string `json:"assigned_bus_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	driver, err := h.GW.CreateDriver(c.Request.Context(), gateway.NewDriver{
		Name:          input.Name,
		Email:         input.Email,
		Phone:         input.Phone,
		Password:      input.Password,
		AssignedBusID: normalizeBusRef(input.AssignedBusID),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, driver)
}

func (h *Handler) UpdateDriver(c *gin.Context) {
	var input struct {
		Name          *string              `json:"name"`
		Email         *string              `json:"email"`
		Phone         *string              `json:"phone"`
		Password      *string              `json:"password"`
		Status        *models.DriverStatus `json:"status"`
		AssignedBusID *string              `json:"assigned_bus_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	driver, err := h.GW.UpdateDriver(c.Request.Context(), c.Param("id"), gateway.DriverPatch{
		Name:          input.Name,
		Email:         input.Email,
		Phone:         input.Phone,
		Password:      input.Password,
		Status:        input.Status,
		AssignedBusID: normalizeBusRef(input.AssignedBusID),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

func (h *Handler) DeleteDriver(c *gin.Context) {
	if err := h.GW.DeleteDriver(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Driver deleted"})
}

func normalizeBusRef(id *string) *string {
	if id == nil {
		return nil
	}
	v := gateway.NormalizeBusID(*id)
	return &v
}

// driverBus resolves the caller's bus. A bus_id in the request must name
// that bus.
func (h *Handler) driverBus(c *gin.Context, requested string) (models.Bus, bool) {
	_, bus, err := h.GW.DriverBus(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return models.Bus{}, false
	}
	if requested != "" && gateway.NormalizeBusID(requested) != bus.ID {
		logrus.WithFields(logrus.Fields{
			"user_id":   middleware.UserID(c),
			"requested": requested,
			"assigned":  bus.ID,
		}).Warn("Driver tried to update a bus they are not assigned to")
		c.JSON(http.StatusForbidden, gin.H{"error": "bus is not assigned to this driver"})
		return models.Bus{}, false
	}
	return bus, true
}

type driverRequest struct {
	BusID string `json:"bus_id"`
}

// bindOptional binds a JSON body when there is one.
func bindOptional(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handler) GetAuthenticatedDriverBus(c *gin.Context) {
	driver, bus, err := h.GW.DriverBus(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"driver": driver, "bus": bus})
}

// setStatus is shared by the online, offline and trip endpoints.
func (h *Handler) setStatus(c *gin.Context, st models.BusStatus) {
	var input driverRequest
	if !bindOptional(c, &input) {
		return
	}
	bus, ok := h.driverBus(c, input.BusID)
	if !ok {
		return
	}
	updated, err := h.GW.SetStatus(c.Request.Context(), bus.ID, st)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) GoOnline(c *gin.Context)  { h.setStatus(c, models.StatusAvailable) }
func (h *Handler) GoOffline(c *gin.Context) { h.setStatus(c, models.StatusInactive) }
func (h *Handler) StartTrip(c *gin.Context) { h.setStatus(c, models.StatusInTrip) }
func (h *Handler) EndTrip(c *gin.Context)   { h.setStatus(c, models.StatusAvailable) }

func (h *Handler) UpdateLocation(c *gin.Context) {
	var input struct {
		BusID     string            `json:"bus_id"`
		Lat       *float64          `json:"lat" binding:"required"`
		Lng       *float64          `json:"lng" binding:"required"`
		Occupancy *models.Occupancy `json:"occupancy"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bus, ok := h.driverBus(c, input.BusID)
	if !ok {
		return
	}
	updated, err := h.GW.UpdateBusLocation(c.Request.Context(), bus.ID, models.LatLng{Lat: *input.Lat, Lng: *input.Lng}, input.Occupancy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) UpdateOccupancy(c *gin.Context) {
	var input struct {
		BusID     string           `json:"bus_id"`
		Occupancy models.Occupancy `json:"occupancy" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bus, ok := h.driverBus(c, input.BusID)
	if !ok {
		return
	}
	updated, err := h.GW.SetOccupancy(c.Request.Context(), bus.ID, input.Occupancy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) RaiseSOS(c *gin.Context) {
	var input driverRequest
	if !bindOptional(c, &input) {
		return
	}
	bus, ok := h.driverBus(c, input.BusID)
	if !ok {
		return
	}
	updated, err := h.GW.RaiseSOS(c.Request.Context(), bus.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
