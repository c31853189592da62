package store

import (
	"context"

	"bus_tracker/internal/models"
)

func (s *Store) ListRoutes(ctx context.Context) ([]models.Route, error) {
	var routes []models.Route
	err := s.db.WithContext(ctx).Order("name").Find(&routes).Error
	return routes, translate(err, "list routes")
}

func (s *Store) GetRoute(ctx context.Context, id string) (models.Route, error) {
	var r models.Route
	err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error
	return r, translate(err, "get route "+id)
}

func (s *Store) CreateRoute(ctx context.Context, r *models.Route) error {
	return translate(s.db.WithContext(ctx).Create(r).Error, "create route")
}

// SaveRoute writes every column, re-encoding the path.
func (s *Store) SaveRoute(ctx context.Context, r *models.Route) error {
	return translate(s.db.WithContext(ctx).Save(r).Error, "save route "+r.ID)
}

func (s *Store) DeleteRoute(ctx context.Context, id string) error {
	return rowsOrNotFound(s.db.WithContext(ctx).Delete(&models.Route{}, "id = ?", id), "delete route "+id)
}
