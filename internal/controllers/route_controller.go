package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/gateway"
	"bus_tracker/internal/geo"
	"bus_tracker/internal/mapsapi"
	"bus_tracker/internal/models"
)

// RouteResponse is a route for API output. Geometry holds the path as a
// GeoJSON LineString string.
type RouteResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Stops     []string        `json:"stops"`
	Path      []models.LatLng `json:"path_data"`
	LengthKm  float64         `json:"length_km"`
	Geometry  string          `json:"geometry"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toRouteResponse(route models.Route) RouteResponse {
	jsonGeom, err := geo.PathToGeoJSON(route.Geometry)
	if err != nil {
		logrus.WithError(err).WithField("route_id", route.ID).Warn("Could not encode route geometry")
	}
	return RouteResponse{
		ID:        route.ID,
		Name:      route.Name,
		Stops:     route.Waypoints(),
		Path:      route.Path,
		LengthKm:  geo.PathLength(route.Path),
		Geometry:  jsonGeom,
		CreatedAt: route.CreatedAt,
		UpdatedAt: route.UpdatedAt,
	}
}

// inputPath picks the route path from a request: an explicit point list
// wins over a GeoJSON geometry. nil means neither was given.
func inputPath(points *[]models.LatLng, geometry string) (*[]models.LatLng, error) {
	if points != nil {
		return points, nil
	}
	if geometry == "" {
		return nil, nil
	}
	p, err := geo.PathFromGeoJSON(geometry)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (h *Handler) ListRoutes(c *gin.Context) {
	routes, err := h.GW.ListRoutes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]RouteResponse, 0, len(routes))
	for _, r := range routes {
		out = append(out, toRouteResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (h *Handler) GetRoute(c *gin.Context) {
	route, err := h.GW.GetRoute(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRouteResponse(route))
}

// CreateRoute stores a route. Without a path the stops in the name are
// geocoded, falling back to the default corridor.
func (h *Handler) CreateRoute(c *gin.Context) {
	var input struct {
		Name     string           `json:"name"`
		Path     *[]models.LatLng `json:"path_data"`
		Geometry string           `json:"geometry"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	path, err := inputPath(input.Path, input.Geometry)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid geometry: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	var p []models.LatLng
	if path != nil && len(*path) > 0 {
		p = *path
	} else {
		p = mapsapi.PathFromName(ctx, h.geocoder(), input.Name)
	}

	route, err := h.GW.CreateRoute(ctx, gateway.RouteInput{Name: input.Name, Path: p})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRouteResponse(route))
}

func (h *Handler) UpdateRoute(c *gin.Context) {
	var input struct {
		Name     *string          `json:"name"`
		Path     *[]models.LatLng `json:"path_data"`
		Geometry string           `json:"geometry"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	path, err := inputPath(input.Path, input.Geometry)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid geometry: " + err.Error()})
		return
	}

	route, err := h.GW.UpdateRoute(c.Request.Context(), c.Param("id"), gateway.RoutePatch{Name: input.Name, Path: path})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRouteResponse(route))
}

func (h *Handler) DeleteRoute(c *gin.Context) {
	if err := h.GW.DeleteRoute(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Route deleted"})
}

// Directions returns the driving polyline through the route's stored path,
// or the stored path itself when directions are unavailable.
func (h *Handler) Directions(c *gin.Context) {
	ctx := c.Request.Context()
	route, err := h.GW.GetRoute(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if len(route.Path) < 2 {
		c.JSON(http.StatusOK, gin.H{"route_id": route.ID, "path": route.Path, "source": "stored"})
		return
	}

	line, err := h.Maps.Directions(ctx, route.Path)
	if err != nil {
		logrus.WithError(err).WithField("route_id", route.ID).Debug("Directions unavailable, serving stored path")
		c.JSON(http.StatusOK, gin.H{"route_id": route.ID, "path": route.Path, "source": "stored"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"route_id": route.ID, "path": line, "source": "directions"})
}
