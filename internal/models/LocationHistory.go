package models

import "time"

// LocationHistory is a breadcrumb of a bus position kept when the movement
// since the previous crumb is significant.
type LocationHistory struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	BusID            string    `gorm:"index;type:varchar(32)" json:"bus_id"`
	DriverID         *string   `gorm:"type:varchar(36)" json:"driver_id,omitempty"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	Bearing          float64   `json:"bearing"`
	Occupancy        Occupancy `gorm:"type:varchar(16)" json:"occupancy"`
	IsMoving         bool      `json:"is_moving"`
	DistanceFromLast float64   `json:"distance_from_last"` // metres
	EventType        string    `json:"event_type"`         // initial, move, stopped, started, periodic
	Timestamp        time.Time `gorm:"index" json:"timestamp"`
}
