package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role claims carried by login accounts. An empty role is a passenger.
const (
	RoleDriver = "DRIVER"
	RoleAdmin  = "ADMIN"
)

type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `json:"name"`
	Email     string    `gorm:"uniqueIndex" json:"email"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
