package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"bus_tracker/internal/client"
	"bus_tracker/internal/models"
	"bus_tracker/internal/seed"
	"bus_tracker/internal/tracking"
)

func driveCommand() *cli.Command {
	return &cli.Command{
		Name:  "drive",
		Usage: "sign in as a driver and replay the assigned bus along its route",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "API base URL"},
			&cli.StringFlag{Name: "email", Value: seed.DriverEmail},
			&cli.StringFlag{Name: "password", Value: seed.DemoPassword},
			&cli.DurationFlag{Name: "interval", Usage: "sampling interval, overrides SAMPLE_INTERVAL_MS"},
			&cli.Float64Flag{Name: "step-km", Value: 0.5, Usage: "distance moved per sample"},
			&cli.StringFlag{Name: "occupancy", Value: string(models.OccupancyEmpty)},
			&cli.BoolFlag{Name: "trip", Usage: "start a trip after going online"},
		},
		Action: func(c *cli.Context) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			interval := cfg.SampleInterval
			if d := c.Duration("interval"); d > 0 {
				interval = d
			}
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return drive(ctx, c, interval)
		},
	}
}

func drive(ctx context.Context, c *cli.Context, interval time.Duration) error {
	api := client.New(c.String("server"), nil)
	if _, err := api.Login(ctx, c.String("email"), c.String("password")); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	assigned, err := api.DriverBus(ctx)
	if err != nil {
		return fmt.Errorf("assigned bus: %w", err)
	}
	bus := assigned.Bus
	log := logrus.WithField("bus_id", bus.ID)

	src, err := positionSource(ctx, api, bus, c.Float64("step-km"))
	if err != nil {
		return err
	}
	s := tracking.NewSampler(src, api, tracking.Config{
		BusID:    bus.ID,
		Interval: interval,
		OnPermissionDenied: func(err error) {
			log.WithError(err).Error("Location permission denied, position is not being sent")
		},
	})

	if err := s.GoOnline(ctx); err != nil {
		return err
	}
	if err := s.SetOccupancy(ctx, models.Occupancy(c.String("occupancy"))); err != nil {
		log.WithError(err).Warn("Occupancy not set")
	}
	if c.Bool("trip") {
		if err := s.StartTrip(ctx); err != nil {
			log.WithError(err).Warn("Could not start trip")
		}
	}
	log.WithField("interval", interval).Info("Driving; interrupt to go offline")

	<-ctx.Done()

	offCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = s.GoOffline(offCtx)
	s.Wait()
	st := s.State()
	log.WithField("last_sent", st.LastSent).Info("Offline")
	return err
}

// positionSource replays the bus's route, or reports the bus's stored
// location when it has no usable route.
func positionSource(ctx context.Context, api *client.Client, bus models.Bus, stepKm float64) (tracking.PositionSource, error) {
	if bus.HasRoute() {
		route, err := api.Route(ctx, *bus.RouteID)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", *bus.RouteID, err)
		}
		if src, err := tracking.NewRoutePathSource(route.Path, stepKm); err == nil {
			return src, nil
		}
		logrus.WithField("route_id", route.ID).Warn("Route path unusable, holding position")
	}
	return tracking.StaticSource{Position: bus.Location}, nil
}
