package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"bus_tracker/internal/auth"
	"bus_tracker/internal/controllers"
	"bus_tracker/internal/eta"
	"bus_tracker/internal/geoindex"
	"bus_tracker/internal/mapsapi"
	"bus_tracker/internal/middleware"
	"bus_tracker/internal/realtime"
	"bus_tracker/internal/routes"
	"bus_tracker/internal/seed"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP and WebSocket API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "listen address, overrides LISTEN_ADDR"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()
			if addr := c.String("listen"); addr != "" {
				svc.cfg.ListenAddr = addr
			}
			return serve(ctx, svc)
		},
	}
}

func serve(ctx context.Context, svc *services) error {
	cfg := svc.cfg
	log := logrus.WithField("component", "serve")
	middleware.SetSecret(cfg.JWTSecret)

	if cfg.MockMode {
		rep, err := seed.Run(ctx, svc.gw, svc.store)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"routes": rep.Routes, "buses": rep.Buses, "users": rep.Users}).
			Info("Mock mode: demo data seeded")
	}
	svc.listen(ctx)

	if cfg.NATSURL != "" {
		bridge, err := realtime.DialNATS(ctx, cfg.NATSURL, svc.metrics)
		if err != nil {
			log.WithError(err).Warn("NATS unavailable, change events stay in-process")
		} else {
			sub := bridge.Attach(svc.hub)
			defer func() {
				sub.Unsubscribe()
				bridge.Close()
			}()
		}
	}

	idx := openIndex(ctx, cfg.RedisURL)
	buses, err := svc.gw.ListBuses(ctx, "")
	if err != nil {
		return err
	}
	if err := geoindex.Load(ctx, idx, buses); err != nil {
		log.WithError(err).Warn("Could not preload the location index")
	}
	indexSub := geoindex.Attach(svc.hub, idx)
	defer indexSub.Unsubscribe()

	maps, err := mapsapi.New(cfg.MapsAPIKey)
	if err != nil {
		log.WithError(err).Warn("Maps client disabled")
	}
	var router eta.RoutingService
	if maps != nil {
		router = maps
	} else {
		log.Info("No maps API key, ETAs use the straight-line estimate")
	}
	est := eta.NewEstimator(router, cfg.FallbackSpeedKmh)
	est.Metrics = svc.metrics

	h := controllers.NewHandler(svc.gw, auth.NewService(svc.store), svc.store, est, maps, idx)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           routes.SetupRouter(h, svc.metrics, svc.logOut),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("Server running")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openIndex uses Redis when configured and reachable, else memory.
func openIndex(ctx context.Context, url string) geoindex.Index {
	if url == "" {
		return geoindex.NewMemoryIndex()
	}
	rdb, err := geoindex.DialRedis(ctx, url)
	if err != nil {
		logrus.WithError(err).Warn("Redis unavailable, using in-memory location index")
		return geoindex.NewMemoryIndex()
	}
	return geoindex.NewRedisIndex(rdb, geoindex.DefaultKey)
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "create the demo routes, buses and accounts if missing",
		Action: func(c *cli.Context) error {
			svc, err := bootstrap(c.Context)
			if err != nil {
				return err
			}
			defer svc.Close()

			rep, err := seed.Run(c.Context, svc.gw, svc.store)
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"routes": rep.Routes, "buses": rep.Buses, "users": rep.Users}).Info("Seed complete")
			return nil
		},
	}
}

func repairCommand() *cli.Command {
	return &cli.Command{
		Name:  "repair",
		Usage: "make driver assignments agree with the buses",
		Action: func(c *cli.Context) error {
			svc, err := bootstrap(c.Context)
			if err != nil {
				return err
			}
			defer svc.Close()

			rep, err := svc.gw.RepairAssignments(c.Context)
			if err != nil {
				return err
			}
			for _, change := range rep.Changes {
				logrus.Info(change)
			}
			logrus.WithFields(logrus.Fields{
				"buses":   rep.BusesChecked,
				"drivers": rep.DriversChecked,
				"fixed":   rep.Fixed(),
			}).Info("Repair complete")
			return nil
		},
	}
}
