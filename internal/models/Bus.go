package models

import "time"

// Bus is a vehicle identified by its registration number.
type Bus struct {
	ID          string    `gorm:"primaryKey;type:varchar(32)" json:"id"`
	DriverID    *string   `gorm:"index;type:varchar(36)" json:"driver_id"`
	RouteID     *string   `gorm:"index;type:varchar(36)" json:"route_id"`
	Location    LatLng    `gorm:"embedded" json:"location"`
	Occupancy   Occupancy `gorm:"type:varchar(16);default:Empty" json:"occupancy"`
	Status      BusStatus `gorm:"type:varchar(16);default:Inactive" json:"status"`
	SOS         bool      `gorm:"column:sos;default:false" json:"sos"`
	Capacity    int       `gorm:"default:50" json:"capacity"`
	LastUpdated time.Time `gorm:"column:last_updated" json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

func (b Bus) HasDriver() bool { return b.DriverID != nil && *b.DriverID != "" }

func (b Bus) HasRoute() bool { return b.RouteID != nil && *b.RouteID != "" }
