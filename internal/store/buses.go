package store

import (
	"context"

	"bus_tracker/internal/models"
)

func (s *Store) ListBuses(ctx context.Context, f BusFilter) ([]models.Bus, error) {
	q := s.db.WithContext(ctx).Order("id")
	if f.RouteID != "" {
		q = q.Where("route_id = ?", f.RouteID)
	}
	if f.DriverID != "" {
		q = q.Where("driver_id = ?", f.DriverID)
	}
	var buses []models.Bus
	return buses, translate(q.Find(&buses).Error, "list buses")
}

func (s *Store) GetBus(ctx context.Context, id string) (models.Bus, error) {
	var b models.Bus
	err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error
	return b, translate(err, "get bus "+id)
}

func (s *Store) CreateBus(ctx context.Context, b *models.Bus) error {
	return translate(s.db.WithContext(ctx).Create(b).Error, "create bus "+b.ID)
}

// UpdateBus applies column updates and returns the row as stored afterwards.
func (s *Store) UpdateBus(ctx context.Context, id string, cols map[string]any) (models.Bus, error) {
	res := s.db.WithContext(ctx).Model(&models.Bus{}).Where("id = ?", id).Updates(cols)
	if err := rowsOrNotFound(res, "update bus "+id); err != nil {
		return models.Bus{}, err
	}
	return s.GetBus(ctx, id)
}

func (s *Store) DeleteBus(ctx context.Context, id string) error {
	return rowsOrNotFound(s.db.WithContext(ctx).Delete(&models.Bus{}, "id = ?", id), "delete bus "+id)
}

// ClearBusRoute nulls route_id on every bus pointing at routeID.
func (s *Store) ClearBusRoute(ctx context.Context, routeID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Bus{}).
		Where("route_id = ?", routeID).
		Update("route_id", nil)
	return res.RowsAffected, translate(res.Error, "clear route "+routeID)
}

// ClearBusDriver nulls driver_id on every bus pointing at driverID except exceptBusID.
func (s *Store) ClearBusDriver(ctx context.Context, driverID, exceptBusID string) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Bus{}).Where("driver_id = ?", driverID)
	if exceptBusID != "" {
		q = q.Where("id <> ?", exceptBusID)
	}
	res := q.Update("driver_id", nil)
	return res.RowsAffected, translate(res.Error, "clear driver "+driverID)
}
