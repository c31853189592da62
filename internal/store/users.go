package store

import (
	"context"

	"bus_tracker/internal/models"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.db.WithContext(ctx).Create(u).Error, "create user "+u.Email)
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	return u, translate(err, "get user "+id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error
	return u, translate(err, "get user "+email)
}

func (s *Store) UpdateUser(ctx context.Context, id string, cols map[string]any) error {
	return rowsOrNotFound(s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(cols), "update user "+id)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return rowsOrNotFound(s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id), "delete user "+id)
}
