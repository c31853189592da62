package models

import "fmt"

// Occupancy is the driver-reported load of a bus.
type Occupancy string

const (
	OccupancyEmpty  Occupancy = "Empty"
	OccupancyLow    Occupancy = "Low"
	OccupancyMedium Occupancy = "Medium"
	OccupancyHigh   Occupancy = "High"
	OccupancyFull   Occupancy = "Full"
)

var occupancyPercent = map[Occupancy]int{
	OccupancyEmpty:  0,
	OccupancyLow:    25,
	OccupancyMedium: 50,
	OccupancyHigh:   75,
	OccupancyFull:   100,
}

func (o Occupancy) Valid() bool {
	_, ok := occupancyPercent[o]
	return ok
}

// Percent is the display approximation of the occupancy level.
func (o Occupancy) Percent() int {
	return occupancyPercent[o]
}

func ParseOccupancy(s string) (Occupancy, error) {
	o := Occupancy(s)
	if !o.Valid() {
		return "", fmt.Errorf("unknown occupancy %q", s)
	}
	return o, nil
}

// BusStatus is the operational state of a bus.
type BusStatus string

const (
	StatusAvailable BusStatus = "Available"
	StatusInTrip    BusStatus = "In Trip"
	StatusInactive  BusStatus = "Inactive"
)

// busTransitions lists the allowed non-trivial moves; any state may also go
// to Inactive and any state may be rewritten with itself.
var busTransitions = map[BusStatus][]BusStatus{
	StatusInactive:  {StatusAvailable},
	StatusAvailable: {StatusInTrip},
	StatusInTrip:    {StatusAvailable},
}

func (s BusStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusInTrip, StatusInactive:
		return true
	}
	return false
}

// CanTransition reports whether a bus may move from s to next.
func (s BusStatus) CanTransition(next BusStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next || next == StatusInactive {
		return true
	}
	for _, allowed := range busTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ParseBusStatus(s string) (BusStatus, error) {
	st := BusStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown bus status %q", s)
	}
	return st, nil
}

// DriverStatus marks whether a driver account is in service.
type DriverStatus string

const (
	DriverActive   DriverStatus = "Active"
	DriverInactive DriverStatus = "Inactive"
)

func (s DriverStatus) Valid() bool {
	return s == DriverActive || s == DriverInactive
}
