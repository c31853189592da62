package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Route is an intercity line. Name is conventionally "Origin - Stop1 - ... - Destination".
type Route struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Geometry stored as a WKB LINESTRING; Path is its decoded form.
	Geometry []byte   `gorm:"column:geometry" json:"-"`
	Path     []LatLng `gorm:"-" json:"path_data"`
}

func (r *Route) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (r *Route) BeforeSave(tx *gorm.DB) (err error) {
	r.Geometry, err = EncodePath(r.Path)
	return err
}

func (r *Route) AfterFind(tx *gorm.DB) (err error) {
	r.Path, err = DecodePath(r.Geometry)
	return err
}

// Waypoints splits the display name into its stop labels.
func (r Route) Waypoints() []string {
	var out []string
	for _, part := range strings.Split(r.Name, " - ") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
