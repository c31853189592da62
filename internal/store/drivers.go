package store

import (
	"context"

	"bus_tracker/internal/models"
)

func (s *Store) ListDrivers(ctx context.Context) ([]models.Driver, error) {
	var drivers []models.Driver
	err := s.db.WithContext(ctx).Order("name").Find(&drivers).Error
	return drivers, translate(err, "list drivers")
}

func (s *Store) GetDriver(ctx context.Context, id string) (models.Driver, error) {
	var d models.Driver
	err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error
	return d, translate(err, "get driver "+id)
}

func (s *Store) GetDriverByUserID(ctx context.Context, userID string) (models.Driver, error) {
	var d models.Driver
	err := s.db.WithContext(ctx).First(&d, "user_id = ?", userID).Error
	return d, translate(err, "get driver for user "+userID)
}

func (s *Store) CreateDriver(ctx context.Context, d *models.Driver) error {
	return translate(s.db.WithContext(ctx).Create(d).Error, "create driver")
}

func (s *Store) UpdateDriver(ctx context.Context, id string, cols map[string]any) (models.Driver, error) {
	res := s.db.WithContext(ctx).Model(&models.Driver{}).Where("id = ?", id).Updates(cols)
	if err := rowsOrNotFound(res, "update driver "+id); err != nil {
		return models.Driver{}, err
	}
	return s.GetDriver(ctx, id)
}

// SetDriverBus writes the driver's side of the bus link. A nil busID unassigns.
func (s *Store) SetDriverBus(ctx context.Context, driverID string, busID *string) error {
	res := s.db.WithContext(ctx).Model(&models.Driver{}).
		Where("id = ?", driverID).
		Update("assigned_bus_id", busID)
	return rowsOrNotFound(res, "set bus of driver "+driverID)
}

// ClearDriverBus unassigns every driver whose assigned bus is busID.
func (s *Store) ClearDriverBus(ctx context.Context, busID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Driver{}).
		Where("assigned_bus_id = ?", busID).
		Update("assigned_bus_id", nil)
	return res.RowsAffected, translate(res.Error, "clear drivers of bus "+busID)
}

func (s *Store) DeleteDriver(ctx context.Context, id string) error {
	return rowsOrNotFound(s.db.WithContext(ctx).Delete(&models.Driver{}, "id = ?", id), "delete driver "+id)
}
