package models

import "fmt"

// LatLng is a WGS84 coordinate pair. Gorm embeds it as lat/lng columns.
type LatLng struct {
	Lat float64 `json:"lat" gorm:"column:lat"`
	Lng float64 `json:"lng" gorm:"column:lng"`
}

// DefaultBusLocation is where a newly registered bus is parked (Jalna depot).
var DefaultBusLocation = LatLng{Lat: 19.8347, Lng: 75.8816}

// Valid reports whether the pair lies within latitude/longitude bounds.
func (p LatLng) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// String renders "lat,lng", the form the maps APIs accept as an address.
func (p LatLng) String() string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}
