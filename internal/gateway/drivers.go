package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/auth"
	"bus_tracker/internal/models"
	"bus_tracker/internal/realtime"
	"bus_tracker/internal/store"
)

// DefaultDriverPassword is given to driver accounts created without one.
const DefaultDriverPassword = "password123"

type NewDriver struct {
	Name          string
	Email         string
	Phone         string
	Password      string
	AssignedBusID *string
}

// DriverPatch leaves nil fields unchanged. AssignedBusID pointing at ""
// unassigns the driver.
type DriverPatch struct {
	Name          *string
	Email         *string
	Phone         *string
	Password      *string
	Status        *models.DriverStatus
	AssignedBusID *string
}

func (g *Gateway) ListDrivers(ctx context.Context) ([]models.Driver, error) {
	d, err := g.store.ListDrivers(ctx)
	return d, g.fail("list_drivers", err)
}

func (g *Gateway) GetDriver(ctx context.Context, id string) (models.Driver, error) {
	d, err := g.store.GetDriver(ctx, id)
	return d, g.fail("get_driver", err)
}

func normalizeEmail(s string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(s))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", invalid("invalid email %q", s)
	}
	return email, nil
}

// CreateDriver creates the DRIVER login account and its driver profile. If
// the profile cannot be written the account is removed again.
func (g *Gateway) CreateDriver(ctx context.Context, in NewDriver) (models.Driver, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Driver{}, invalid("driver name is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return models.Driver{}, err
	}
	busID := refValue(in.AssignedBusID)
	if busID != nil {
		if _, err := g.store.GetBus(ctx, *busID); err != nil {
			if store.IsNotFound(err) {
				return models.Driver{}, invalid("unknown bus %s", *busID)
			}
			return models.Driver{}, g.fail("create_driver", err)
		}
	}

	password := in.Password
	if password == "" {
		password = DefaultDriverPassword
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.Driver{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{Name: name, Email: email, Password: hash, Role: models.RoleDriver}
	if err := g.store.CreateUser(ctx, &user); err != nil {
		return models.Driver{}, g.fail("create_driver", err)
	}

	d := models.Driver{
		UserID:        user.ID,
		Name:          name,
		Email:         email,
		Phone:         strings.TrimSpace(in.Phone),
		AssignedBusID: busID,
		Status:        models.DriverActive,
	}
	if err := g.store.CreateDriver(ctx, &d); err != nil {
		if derr := g.store.DeleteUser(ctx, user.ID); derr != nil {
			g.log.WithError(derr).WithField("user_id", user.ID).Error("Failed to remove orphaned driver account")
		}
		return models.Driver{}, g.fail("create_driver", err)
	}

	if busID != nil {
		if err := g.linkBus(ctx, d.ID, nil, busID); err != nil {
			return d, g.fail("create_driver", fmt.Errorf("driver %s created but bus link failed: %w", d.ID, err))
		}
	}
	g.log.WithField("driver_id", d.ID).Info("Driver created")
	return d, nil
}

// UpdateDriver mirrors UpdateBus from the driver's side: when the assigned
// bus changes, the driver row is written first, then the previous bus is
// released, the new bus's previous driver is unassigned and the new bus is
// pointed at this driver.
func (g *Gateway) UpdateDriver(ctx context.Context, id string, p DriverPatch) (models.Driver, error) {
	old, err := g.store.GetDriver(ctx, id)
	if err != nil {
		return models.Driver{}, g.fail("update_driver", err)
	}

	cols := map[string]any{}
	userCols := map[string]any{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return models.Driver{}, invalid("driver name is required")
		}
		cols["name"], userCols["name"] = name, name
	}
	if p.Email != nil {
		email, err := normalizeEmail(*p.Email)
		if err != nil {
			return models.Driver{}, err
		}
		cols["email"], userCols["email"] = email, email
	}
	if p.Phone != nil {
		cols["phone"] = strings.TrimSpace(*p.Phone)
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return models.Driver{}, invalid("unknown driver status %q", *p.Status)
		}
		cols["status"] = string(*p.Status)
	}
	if p.Password != nil && *p.Password != "" {
		hash, err := auth.HashPassword(*p.Password)
		if err != nil {
			return models.Driver{}, fmt.Errorf("hash password: %w", err)
		}
		userCols["password"] = hash
	}

	var newBus *string
	busChanged := false
	if p.AssignedBusID != nil {
		newBus = refValue(p.AssignedBusID)
		if newBus != nil {
			if _, err := g.store.GetBus(ctx, *newBus); err != nil {
				if store.IsNotFound(err) {
					return models.Driver{}, invalid("unknown bus %s", *newBus)
				}
				return models.Driver{}, g.fail("update_driver", err)
			}
		}
		if !sameRef(newBus, old.AssignedBusID) {
			cols["assigned_bus_id"] = newBus
			busChanged = true
		}
	}

	if len(userCols) > 0 && old.UserID != "" {
		if err := g.store.UpdateUser(ctx, old.UserID, userCols); err != nil && !errors.Is(err, store.ErrNotFound) {
			return models.Driver{}, g.fail("update_driver", err)
		}
	}

	d := old
	if len(cols) > 0 {
		if d, err = g.store.UpdateDriver(ctx, id, cols); err != nil {
			return models.Driver{}, g.fail("update_driver", err)
		}
	}

	if busChanged {
		if err := g.linkBus(ctx, d.ID, old.AssignedBusID, newBus); err != nil {
			return d, g.fail("update_driver", fmt.Errorf("driver %s saved but bus link failed: %w", d.ID, err))
		}
	}
	return d, nil
}

// linkBus brings bus rows in line after driverID moved from oldBus to newBus.
func (g *Gateway) linkBus(ctx context.Context, driverID string, oldBus, newBus *string) error {
	if oldBus != nil {
		b, err := g.store.GetBus(ctx, *oldBus)
		switch {
		case store.IsNotFound(err):
		case err != nil:
			return err
		case b.DriverID != nil && *b.DriverID == driverID:
			if err := g.setBusDriver(ctx, b, nil); err != nil {
				return err
			}
		}
	}
	if newBus == nil {
		return nil
	}

	b, err := g.store.GetBus(ctx, *newBus)
	if err != nil {
		return err
	}
	if b.DriverID != nil && *b.DriverID != driverID {
		if err := ignoreNotFound(g.store.SetDriverBus(ctx, *b.DriverID, nil)); err != nil {
			return fmt.Errorf("unassign previous driver %s: %w", *b.DriverID, err)
		}
	}
	if err := g.releaseDriverBuses(ctx, driverID, b.ID); err != nil {
		return err
	}
	if b.DriverID == nil || *b.DriverID != driverID {
		driver := driverID
		if err := g.setBusDriver(ctx, b, &driver); err != nil {
			return err
		}
	}
	g.log.WithFields(logrus.Fields{"driver_id": driverID, "bus_id": b.ID}).Info("Bus reassigned")
	return nil
}

func (g *Gateway) setBusDriver(ctx context.Context, b models.Bus, driverID *string) error {
	updated, err := g.store.UpdateBus(ctx, b.ID, map[string]any{"driver_id": driverID, "last_updated": g.now()})
	if err != nil {
		return fmt.Errorf("set driver of bus %s: %w", b.ID, err)
	}
	g.emit(ctx, realtime.EventUpdate, updated, b.RouteID)
	return nil
}

// DeleteDriver detaches the driver from every bus, then removes the profile
// and its login account.
func (g *Gateway) DeleteDriver(ctx context.Context, id string) error {
	d, err := g.store.GetDriver(ctx, id)
	if err != nil {
		return g.fail("delete_driver", err)
	}
	held, err := g.store.ListBuses(ctx, store.BusFilter{DriverID: id})
	if err != nil {
		return g.fail("delete_driver", err)
	}
	if _, err := g.store.ClearBusDriver(ctx, id, ""); err != nil {
		return g.fail("delete_driver", fmt.Errorf("detach driver %s from buses: %w", id, err))
	}
	for _, b := range held {
		b.DriverID = nil
		g.emit(ctx, realtime.EventUpdate, b, b.RouteID)
	}
	if err := g.store.DeleteDriver(ctx, id); err != nil {
		return g.fail("delete_driver", err)
	}
	if d.UserID != "" {
		if err := ignoreNotFound(g.store.DeleteUser(ctx, d.UserID)); err != nil {
			return g.fail("delete_driver", fmt.Errorf("driver %s deleted but account removal failed: %w", id, err))
		}
	}
	g.log.WithFields(logrus.Fields{"driver_id": id, "detached_buses": len(held)}).Info("Driver deleted")
	return nil
}

// DriverBus resolves the signed-in driver and the bus they operate. The bus
// side of the link is authoritative.
func (g *Gateway) DriverBus(ctx context.Context, userID string) (models.Driver, models.Bus, error) {
	d, err := g.store.GetDriverByUserID(ctx, userID)
	if err != nil {
		return models.Driver{}, models.Bus{}, g.fail("driver_bus", err)
	}
	buses, err := g.store.ListBuses(ctx, store.BusFilter{DriverID: d.ID})
	if err != nil {
		return d, models.Bus{}, g.fail("driver_bus", err)
	}
	if len(buses) == 0 {
		return d, models.Bus{}, ErrNoAssignedBus
	}
	return d, buses[0], nil
}
