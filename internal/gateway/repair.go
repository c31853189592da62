package gateway

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/store"
)

// RepairReport lists what a repair pass changed.
type RepairReport struct {
	BusesChecked   int      `json:"buses_checked"`
	DriversChecked int      `json:"drivers_checked"`
	Changes        []string `json:"changes"`
}

func (r RepairReport) Fixed() int { return len(r.Changes) }

// RepairAssignments restores agreement between Bus.DriverID and
// Driver.AssignedBusID after partial failures. Buses win: a driver is
// assigned to the most recently updated bus that names them, other buses
// naming the same driver are released, and buses naming unknown drivers are
// cleared. Running it twice in a row makes no changes the second time.
func (g *Gateway) RepairAssignments(ctx context.Context) (RepairReport, error) {
	var rep RepairReport

	buses, err := g.store.ListBuses(ctx, store.BusFilter{})
	if err != nil {
		return rep, g.fail("repair", err)
	}
	drivers, err := g.store.ListDrivers(ctx)
	if err != nil {
		return rep, g.fail("repair", err)
	}
	rep.BusesChecked, rep.DriversChecked = len(buses), len(drivers)

	known := make(map[string]bool, len(drivers))
	for _, d := range drivers {
		known[d.ID] = true
	}

	sort.SliceStable(buses, func(i, j int) bool {
		if buses[i].LastUpdated.Equal(buses[j].LastUpdated) {
			return buses[i].ID < buses[j].ID
		}
		return buses[i].LastUpdated.After(buses[j].LastUpdated)
	})

	owner := make(map[string]string)
	for _, b := range buses {
		if !b.HasDriver() {
			continue
		}
		did := *b.DriverID
		_, taken := owner[did]
		switch {
		case !known[did]:
			rep.Changes = append(rep.Changes, fmt.Sprintf("bus %s: cleared unknown driver %s", b.ID, did))
		case taken:
			rep.Changes = append(rep.Changes, fmt.Sprintf("bus %s: released driver %s held by bus %s", b.ID, did, owner[did]))
		default:
			owner[did] = b.ID
			continue
		}
		if err := g.setBusDriver(ctx, b, nil); err != nil {
			return rep, g.fail("repair", err)
		}
	}

	for _, d := range drivers {
		want := refFromOwner(owner, d.ID)
		if sameRef(d.AssignedBusID, want) {
			continue
		}
		if err := g.store.SetDriverBus(ctx, d.ID, want); err != nil {
			return rep, g.fail("repair", err)
		}
		rep.Changes = append(rep.Changes, fmt.Sprintf("driver %s: assigned bus %q -> %q", d.ID, deref(d.AssignedBusID), deref(want)))
	}

	g.log.WithFields(logrus.Fields{
		"buses":   rep.BusesChecked,
		"drivers": rep.DriversChecked,
		"fixed":   rep.Fixed(),
	}).Info("Assignment repair finished")
	return rep, nil
}

func refFromOwner(owner map[string]string, driverID string) *string {
	bus, ok := owner[driverID]
	if !ok {
		return nil
	}
	return &bus
}

// compile-time check that the gorm store satisfies the gateway contract
var _ Store = (*store.Store)(nil)
