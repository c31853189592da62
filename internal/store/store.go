// Package store is the row-level persistence for routes, buses, drivers,
// users and location history. It knows nothing about the cross-entity
// rules; those live in the gateway.
package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Store wraps a gorm handle opened on PostgreSQL or SQLite.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for components that share the connection (pg_notify).
func (s *Store) DB() *gorm.DB { return s.db }

// BusFilter narrows ListBuses. Empty fields do not filter.
type BusFilter struct {
	RouteID  string
	DriverID string
}

func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func rowsOrNotFound(res *gorm.DB, what string) error {
	if res.Error != nil {
		return translate(res.Error, what)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
