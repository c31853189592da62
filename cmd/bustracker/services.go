package main

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bus_tracker/internal/config"
	"bus_tracker/internal/gateway"
	"bus_tracker/internal/logger"
	"bus_tracker/internal/metrics"
	"bus_tracker/internal/realtime"
	"bus_tracker/internal/store"
)

// services is the wiring shared by every command that touches the database.
type services struct {
	cfg     *config.Config
	logOut  io.Writer
	db      *gorm.DB
	store   *store.Store
	hub     *realtime.Hub
	gw      *gateway.Gateway
	metrics *metrics.Collector
}

func loadConfig() (*config.Config, io.Writer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	out := logger.Setup(logger.Options{File: cfg.LogFile, Level: cfg.LogLevel, Stdout: cfg.LogStdout})
	return cfg, out, nil
}

// bootstrap opens the store and builds the gateway. With PostgreSQL, change
// events go through pg_notify so that every instance sees them; call
// listen to feed them back into this process's hub.
func bootstrap(ctx context.Context) (*services, error) {
	cfg, out, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := config.OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.NewCollector()
	hub := realtime.NewHub(m)
	st := store.New(db)

	opts := []gateway.Option{gateway.WithMetrics(m)}
	if !cfg.MockMode {
		opts = append(opts, gateway.WithNotifier(realtime.NewPGNotifier(db)))
	}

	return &services{
		cfg:     cfg,
		logOut:  out,
		db:      db,
		store:   st,
		hub:     hub,
		gw:      gateway.New(st, hub, opts...),
		metrics: m,
	}, nil
}

// listen relays PostgreSQL notifications into the hub until ctx ends.
func (s *services) listen(ctx context.Context) {
	if s.cfg.MockMode {
		return
	}
	l := realtime.NewPGListener(s.cfg.DatabaseURL, s.hub)
	go func() {
		if err := l.Run(ctx); err != nil {
			logrus.WithError(err).Error("Change listener stopped")
		}
	}()
}

func (s *services) Close() {
	s.hub.Close()
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
