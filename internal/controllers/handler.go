package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/auth"
	"bus_tracker/internal/eta"
	"bus_tracker/internal/gateway"
	"bus_tracker/internal/geoindex"
	"bus_tracker/internal/mapsapi"
	"bus_tracker/internal/models"
	"bus_tracker/internal/view"
)

// UserLookup loads login accounts.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (models.User, error)
}

// Handler carries the services behind the HTTP API.
type Handler struct {
	GW    *gateway.Gateway
	Auth  *auth.Service
	Users UserLookup
	ETA   *eta.Estimator
	// Maps is nil when no API key is configured.
	Maps  *mapsapi.Client
	Index geoindex.Index
	Admin *view.AdminBoard
}

func NewHandler(gw *gateway.Gateway, authSvc *auth.Service, users UserLookup, est *eta.Estimator, maps *mapsapi.Client, idx geoindex.Index) *Handler {
	if est == nil {
		est = eta.NewEstimator(nil, 0)
	}
	if idx == nil {
		idx = geoindex.NewMemoryIndex()
	}
	return &Handler{
		GW:    gw,
		Auth:  authSvc,
		Users: users,
		ETA:   est,
		Maps:  maps,
		Index: idx,
		Admin: view.NewAdminBoard(gw),
	}
}

func (h *Handler) geocoder() mapsapi.Geocoder {
	if h.Maps == nil {
		return nil
	}
	return h.Maps
}

func (h *Handler) addresser() view.Addresser {
	if h.Maps == nil {
		return nil
	}
	return h.Maps
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, gateway.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, gateway.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, gateway.ErrConflict),
		errors.Is(err, gateway.ErrInvalidTransition),
		errors.Is(err, gateway.ErrNoAssignedBus):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func queryFloat(c *gin.Context, key string) (float64, bool) {
	v, err := strconv.ParseFloat(c.Query(key), 64)
	return v, err == nil
}

// queryPoint reads a latitude/longitude pair from the query string.
func queryPoint(c *gin.Context, latKey, lngKey string) (*models.LatLng, bool) {
	if c.Query(latKey) == "" && c.Query(lngKey) == "" {
		return nil, true
	}
	lat, ok1 := queryFloat(c, latKey)
	lng, ok2 := queryFloat(c, lngKey)
	p := models.LatLng{Lat: lat, Lng: lng}
	if !ok1 || !ok2 || !p.Valid() {
		return nil, false
	}
	return &p, true
}
