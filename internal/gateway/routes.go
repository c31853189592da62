package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/models"
	"bus_tracker/internal/realtime"
	"bus_tracker/internal/store"
)

type RouteInput struct {
	Name string
	Path []models.LatLng
}

// RoutePatch leaves nil fields unchanged.
type RoutePatch struct {
	Name *string
	Path *[]models.LatLng
}

func (g *Gateway) ListRoutes(ctx context.Context) ([]models.Route, error) {
	routes, err := g.store.ListRoutes(ctx)
	return routes, g.fail("list_routes", err)
}

func (g *Gateway) GetRoute(ctx context.Context, id string) (models.Route, error) {
	r, err := g.store.GetRoute(ctx, id)
	return r, g.fail("get_route", err)
}

func validatePath(path []models.LatLng) error {
	if len(path) == 1 {
		return invalid("route path needs at least two points")
	}
	for i, p := range path {
		if !p.Valid() {
			return invalid("path point %d out of range", i)
		}
	}
	return nil
}

func (g *Gateway) CreateRoute(ctx context.Context, in RouteInput) (models.Route, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Route{}, invalid("route name is required")
	}
	if err := validatePath(in.Path); err != nil {
		return models.Route{}, err
	}
	r := models.Route{Name: name, Path: in.Path}
	if err := g.store.CreateRoute(ctx, &r); err != nil {
		return models.Route{}, g.fail("create_route", err)
	}
	g.log.WithField("route_id", r.ID).Info("Route created")
	return r, nil
}

func (g *Gateway) UpdateRoute(ctx context.Context, id string, p RoutePatch) (models.Route, error) {
	r, err := g.store.GetRoute(ctx, id)
	if err != nil {
		return models.Route{}, g.fail("update_route", err)
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return models.Route{}, invalid("route name is required")
		}
		r.Name = name
	}
	if p.Path != nil {
		if err := validatePath(*p.Path); err != nil {
			return models.Route{}, err
		}
		r.Path = *p.Path
	}
	if err := g.store.SaveRoute(ctx, &r); err != nil {
		return models.Route{}, g.fail("update_route", err)
	}
	return r, nil
}

// DeleteRoute first detaches every bus on the route, then removes the route.
func (g *Gateway) DeleteRoute(ctx context.Context, id string) error {
	if _, err := g.store.GetRoute(ctx, id); err != nil {
		return g.fail("delete_route", err)
	}
	buses, err := g.store.ListBuses(ctx, store.BusFilter{RouteID: id})
	if err != nil {
		return g.fail("delete_route", err)
	}
	if _, err := g.store.ClearBusRoute(ctx, id); err != nil {
		return g.fail("delete_route", fmt.Errorf("detach buses from route %s: %w", id, err))
	}
	old := id
	for _, b := range buses {
		b.RouteID = nil
		g.emit(ctx, realtime.EventUpdate, b, &old)
	}
	if err := g.store.DeleteRoute(ctx, id); err != nil {
		return g.fail("delete_route", err)
	}
	g.log.WithFields(logrus.Fields{"route_id": id, "detached_buses": len(buses)}).Info("Route deleted")
	return nil
}
