// Package seed loads the demo network: four routes out of Jalna, one bus per
// route and the demo driver and admin accounts. Running it again only adds
// what is missing.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/auth"
	"bus_tracker/internal/gateway"
	"bus_tracker/internal/models"
	"bus_tracker/internal/store"
)

const (
	DriverEmail  = "driver@bustracker.pro"
	AdminEmail   = "admin@bustracker.pro"
	DemoPassword = "password"
)

type route struct {
	name string
	path []models.LatLng
}

var jalna = models.LatLng{Lat: 19.8347, Lng: 75.8816}

var routes = []route{
	{"Jalna - Aurangabad", []models.LatLng{jalna, {Lat: 19.8500, Lng: 75.6000}, {Lat: 19.8762, Lng: 75.3433}}},
	{"Jalna - Pune", []models.LatLng{jalna, {Lat: 19.2000, Lng: 74.8000}, {Lat: 18.5204, Lng: 73.8567}}},
	{"Jalna - Ambad", []models.LatLng{jalna, {Lat: 19.7200, Lng: 75.8300}, {Lat: 19.6100, Lng: 75.7900}}},
	{"Jalna - Beed", []models.LatLng{jalna, {Lat: 19.4000, Lng: 75.8200}, {Lat: 18.9900, Lng: 75.7600}}},
}

var buses = []struct {
	id     string
	route  string
	status models.BusStatus
}{
	{"MH-20-BL-1234", "Jalna - Aurangabad", models.StatusAvailable},
	{"MH-20-BL-5678", "Jalna - Pune", models.StatusAvailable},
	{"MH-20-BL-9012", "Jalna - Ambad", models.StatusInactive},
	{"MH-20-BL-3456", "Jalna - Beed", models.StatusInactive},
}

// DemoBusID is the bus the demo driver operates.
const DemoBusID = "MH-20-BL-1234"

// Users is the account lookup the seeder needs beyond the gateway.
type Users interface {
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
}

type Report struct {
	Routes int
	Buses  int
	Users  int
}

func Run(ctx context.Context, gw *gateway.Gateway, users Users) (Report, error) {
	var rep Report
	log := logrus.WithField("component", "seed")

	existing, err := gw.ListRoutes(ctx)
	if err != nil {
		return rep, err
	}
	ids := make(map[string]string, len(existing))
	for _, r := range existing {
		ids[r.Name] = r.ID
	}
	for _, r := range routes {
		if _, ok := ids[r.name]; ok {
			continue
		}
		created, err := gw.CreateRoute(ctx, gateway.RouteInput{Name: r.name, Path: r.path})
		if err != nil {
			return rep, fmt.Errorf("seed route %s: %w", r.name, err)
		}
		ids[r.name] = created.ID
		rep.Routes++
	}

	for _, b := range buses {
		_, err := gw.GetBus(ctx, b.id)
		if err == nil {
			continue
		}
		if !errors.Is(err, gateway.ErrNotFound) {
			return rep, err
		}
		routeID := ids[b.route]
		if _, err := gw.CreateBus(ctx, gateway.NewBus{ID: b.id, RouteID: &routeID}); err != nil {
			return rep, fmt.Errorf("seed bus %s: %w", b.id, err)
		}
		if b.status != models.StatusInactive {
			if _, err := gw.SetStatus(ctx, b.id, b.status); err != nil {
				return rep, fmt.Errorf("seed bus %s: %w", b.id, err)
			}
		}
		rep.Buses++
	}

	if _, err := users.GetUserByEmail(ctx, AdminEmail); errors.Is(err, store.ErrNotFound) {
		hash, err := auth.HashPassword(DemoPassword)
		if err != nil {
			return rep, err
		}
		admin := models.User{Name: "Depot Admin", Email: AdminEmail, Password: hash, Role: models.RoleAdmin}
		if err := users.CreateUser(ctx, &admin); err != nil {
			return rep, fmt.Errorf("seed admin: %w", err)
		}
		rep.Users++
	} else if err != nil {
		return rep, err
	}

	if _, err := users.GetUserByEmail(ctx, DriverEmail); errors.Is(err, store.ErrNotFound) {
		bus := DemoBusID
		_, err := gw.CreateDriver(ctx, gateway.NewDriver{
			Name:          "Demo Driver",
			Email:         DriverEmail,
			Phone:         "+91 90000 00000",
			Password:      DemoPassword,
			AssignedBusID: &bus,
		})
		if err != nil {
			return rep, fmt.Errorf("seed driver: %w", err)
		}
		rep.Users++
	} else if err != nil {
		return rep, err
	}

	log.WithFields(logrus.Fields{"routes": rep.Routes, "buses": rep.Buses, "users": rep.Users}).Info("Seed complete")
	return rep, nil
}
