package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/models"
	"bus_tracker/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// UserFinder is the slice of the store that login needs.
type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

type Service struct {
	users UserFinder
}

func NewService(users UserFinder) *Service {
	return &Service{users: users}
}

// Login checks credentials and returns the account with its role.
// A user whose stored role is unrecognised is rejected like a bad password.
func (s *Service) Login(ctx context.Context, email, password string) (models.User, Role, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if store.IsNotFound(err) {
			return models.User{}, Guest, ErrInvalidCredentials
		}
		return models.User{}, Guest, err
	}
	if !CheckPassword(u.Password, password) {
		return models.User{}, Guest, ErrInvalidCredentials
	}
	role := RoleFromClaim(u.Role)
	if !Authenticated(role) {
		logrus.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Warn("login with unrecognised role")
		return models.User{}, Guest, ErrInvalidCredentials
	}
	return u, role, nil
}
