// Package auth holds roles, password hashing and credential checks.
package auth

import (
	"fmt"
	"strings"

	"bus_tracker/internal/models"
)

// Role is a closed set: DriverRole, AdminRole, PassengerRole and GuestRole.
// Use Match to branch on it so every role is handled.
type Role interface {
	Claim() string
	String() string
	sealed()
}

type (
	DriverRole    struct{}
	AdminRole     struct{}
	PassengerRole struct{}
	GuestRole     struct{}
)

var (
	Driver    Role = DriverRole{}
	Admin     Role = AdminRole{}
	Passenger Role = PassengerRole{}
	Guest     Role = GuestRole{}
)

func (DriverRole) Claim() string    { return models.RoleDriver }
func (AdminRole) Claim() string     { return models.RoleAdmin }
func (PassengerRole) Claim() string { return "" }
func (GuestRole) Claim() string     { return "GUEST" }

func (DriverRole) String() string    { return "driver" }
func (AdminRole) String() string     { return "admin" }
func (PassengerRole) String() string { return "passenger" }
func (GuestRole) String() string     { return "guest" }

func (DriverRole) sealed()    {}
func (AdminRole) sealed()     {}
func (PassengerRole) sealed() {}
func (GuestRole) sealed()     {}

// RoleFromClaim maps a stored or token role claim onto a Role. Claims are
// case-insensitive; anything unrecognised is a guest.
func RoleFromClaim(claim string) Role {
	switch strings.ToUpper(strings.TrimSpace(claim)) {
	case models.RoleDriver:
		return Driver
	case models.RoleAdmin:
		return Admin
	case "":
		return Passenger
	default:
		return Guest
	}
}

// Cases has one branch per role. Every field must be set.
type Cases[T any] struct {
	Driver    func() T
	Admin     func() T
	Passenger func() T
	Guest     func() T
}

// Match dispatches on r. A nil branch is a programming error and panics.
func Match[T any](r Role, c Cases[T]) T {
	var branch func() T
	switch r.(type) {
	case DriverRole:
		branch = c.Driver
	case AdminRole:
		branch = c.Admin
	case PassengerRole:
		branch = c.Passenger
	case GuestRole:
		branch = c.Guest
	}
	if branch == nil {
		panic(fmt.Sprintf("auth.Match: no branch for role %v", r))
	}
	return branch()
}

// Authenticated reports whether the role may use signed-in features.
func Authenticated(r Role) bool {
	return Match(r, Cases[bool]{
		Driver:    func() bool { return true },
		Admin:     func() bool { return true },
		Passenger: func() bool { return true },
		Guest:     func() bool { return false },
	})
}
