package tracking

import (
	"context"

	"bus_tracker/internal/gateway"
	"bus_tracker/internal/models"
)

// GatewayPusher pushes sampler updates straight into an in-process gateway.
type GatewayPusher struct {
	GW *gateway.Gateway
}

func (p GatewayPusher) PushLocation(ctx context.Context, busID string, loc models.LatLng, occ models.Occupancy) error {
	_, err := p.GW.UpdateBusLocation(ctx, busID, loc, &occ)
	return err
}

func (p GatewayPusher) PushStatus(ctx context.Context, busID string, st models.BusStatus) error {
	_, err := p.GW.SetStatus(ctx, busID, st)
	return err
}

func (p GatewayPusher) PushOccupancy(ctx context.Context, busID string, occ models.Occupancy) error {
	_, err := p.GW.SetOccupancy(ctx, busID, occ)
	return err
}

func (p GatewayPusher) PushSOS(ctx context.Context, busID string) error {
	_, err := p.GW.RaiseSOS(ctx, busID)
	return err
}
