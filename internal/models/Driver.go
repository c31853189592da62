package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Driver is the operating profile of a user with the DRIVER role.
// AssignedBusID mirrors Bus.DriverID; the gateway keeps the two in agreement.
type Driver struct {
	ID            string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID        string       `gorm:"uniqueIndex;type:varchar(36)" json:"user_id"`
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	Phone         string       `json:"phone"`
	AssignedBusID *string      `gorm:"index;type:varchar(32)" json:"assigned_bus_id"`
	Status        DriverStatus `gorm:"type:varchar(16);default:Active" json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (d *Driver) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
