package feed

import (
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"bus_tracker/internal/models"
)

func TestOccupancyStatus(t *testing.T) {
	cases := map[models.Occupancy]gtfs.VehiclePosition_OccupancyStatus{
		models.OccupancyEmpty:  gtfs.VehiclePosition_EMPTY,
		models.OccupancyLow:    gtfs.VehiclePosition_MANY_SEATS_AVAILABLE,
		models.OccupancyMedium: gtfs.VehiclePosition_FEW_SEATS_AVAILABLE,
		models.OccupancyHigh:   gtfs.VehiclePosition_STANDING_ROOM_ONLY,
		models.OccupancyFull:   gtfs.VehiclePosition_FULL,
		"":                     gtfs.VehiclePosition_NO_DATA_AVAILABLE,
	}
	for occ, want := range cases {
		assert.Equal(t, want, OccupancyStatus(occ), string(occ))
	}
}

func TestVehiclePositionsRoundTrip(t *testing.T) {
	route := "r1"
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	buses := []models.Bus{
		{ID: "MH-20-BL-1234", RouteID: &route, Location: models.LatLng{Lat: 19.8347, Lng: 75.8816}, Status: models.StatusInTrip, Occupancy: models.OccupancyHigh, LastUpdated: now},
		{ID: "MH-20-BL-5678", Location: models.DefaultBusLocation, Status: models.StatusInactive},
	}

	raw, err := Marshal(buses, now)
	require.NoError(t, err)

	var msg gtfs.FeedMessage
	require.NoError(t, proto.Unmarshal(raw, &msg))
	assert.Equal(t, uint64(now.Unix()), msg.GetHeader().GetTimestamp())
	require.Len(t, msg.GetEntity(), 1)

	vp := msg.GetEntity()[0].GetVehicle()
	assert.Equal(t, "MH-20-BL-1234", vp.GetVehicle().GetId())
	assert.Equal(t, "r1", vp.GetTrip().GetRouteId())
	assert.InDelta(t, 19.8347, vp.GetPosition().GetLatitude(), 1e-4)
	assert.Equal(t, gtfs.VehiclePosition_STANDING_ROOM_ONLY, vp.GetOccupancyStatus())
	assert.Equal(t, uint32(75), vp.GetOccupancyPercentage())
	assert.Equal(t, gtfs.VehiclePosition_IN_TRANSIT_TO, vp.GetCurrentStatus())
}
