package store

import (
	"context"
	"errors"

	"bus_tracker/internal/models"
)

// LastLocation returns the most recent breadcrumb for a bus, or ErrNotFound.
func (s *Store) LastLocation(ctx context.Context, busID string) (models.LocationHistory, error) {
	var h models.LocationHistory
	err := s.db.WithContext(ctx).Where("bus_id = ?", busID).Order("timestamp desc").First(&h).Error
	return h, translate(err, "last location of "+busID)
}

func (s *Store) AppendLocation(ctx context.Context, h *models.LocationHistory) error {
	return translate(s.db.WithContext(ctx).Create(h).Error, "append location")
}

// Trail returns up to limit breadcrumbs for a bus, newest first.
func (s *Store) Trail(ctx context.Context, busID string, limit int) ([]models.LocationHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []models.LocationHistory
	err := s.db.WithContext(ctx).Where("bus_id = ?", busID).Order("timestamp desc").Limit(limit).Find(&out).Error
	return out, translate(err, "trail of "+busID)
}

// IsNotFound is shorthand for errors.Is(err, ErrNotFound).
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
