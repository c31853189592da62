package config

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"bus_tracker/internal/models"
)

// OpenDB connects to PostgreSQL, or to SQLite in mock mode, and migrates the schema.
// PostgreSQL connection attempts are retried with exponential backoff up to
// cfg.ConnectTimeout.
func OpenDB(ctx context.Context, cfg *Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logrus.StandardLogger(), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var db *gorm.DB
	if cfg.MockMode {
		var err error
		db, err = OpenSQLite(cfg.SQLitePath, gcfg)
		if err != nil {
			return nil, err
		}
		logrus.WithField("path", cfg.SQLitePath).Info("Using SQLite store (mock mode)")
	} else {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = cfg.ConnectTimeout
		op := func() error {
			var err error
			db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gcfg)
			if err == nil {
				err = ping(ctx, db)
			}
			if err != nil {
				logrus.WithError(err).Warn("database not reachable, retrying")
			}
			return err
		}
		if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logrus.Info("Connected to PostgreSQL")
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// OpenSQLite opens a SQLite database with a single connection so that an
// in-memory database is shared by every query.
func OpenSQLite(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	if gcfg == nil {
		gcfg = &gorm.Config{TranslateError: true, Logger: gormlogger.Discard}
	}
	db, err := gorm.Open(sqlite.Open(path), gcfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate applies the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Driver{},
		&models.Route{},
		&models.Bus{},
		&models.LocationHistory{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}
