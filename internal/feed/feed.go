// Package feed publishes bus positions as a GTFS-Realtime VehiclePositions
// feed.
package feed

import (
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"bus_tracker/internal/models"
)

const ContentType = "application/x-protobuf"

// OccupancyStatus maps a driver-reported occupancy onto the GTFS-RT scale.
func OccupancyStatus(o models.Occupancy) gtfs.VehiclePosition_OccupancyStatus {
	switch o {
	case models.OccupancyEmpty:
		return gtfs.VehiclePosition_EMPTY
	case models.OccupancyLow:
		return gtfs.VehiclePosition_MANY_SEATS_AVAILABLE
	case models.OccupancyMedium:
		return gtfs.VehiclePosition_FEW_SEATS_AVAILABLE
	case models.OccupancyHigh:
		return gtfs.VehiclePosition_STANDING_ROOM_ONLY
	case models.OccupancyFull:
		return gtfs.VehiclePosition_FULL
	}
	return gtfs.VehiclePosition_NO_DATA_AVAILABLE
}

// VehiclePositions builds a full-dataset feed. Inactive buses are left out.
func VehiclePositions(buses []models.Bus, now time.Time) *gtfs.FeedMessage {
	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}
	for _, b := range buses {
		if b.Status == models.StatusInactive || !b.Location.Valid() {
			continue
		}
		vp := &gtfs.VehiclePosition{
			Vehicle: &gtfs.VehicleDescriptor{
				Id:           proto.String(b.ID),
				LicensePlate: proto.String(b.ID),
			},
			Position: &gtfs.Position{
				Latitude:  proto.Float32(float32(b.Location.Lat)),
				Longitude: proto.Float32(float32(b.Location.Lng)),
			},
			OccupancyStatus:     OccupancyStatus(b.Occupancy).Enum(),
			OccupancyPercentage: proto.Uint32(uint32(b.Occupancy.Percent())),
		}
		if !b.LastUpdated.IsZero() {
			vp.Timestamp = proto.Uint64(uint64(b.LastUpdated.Unix()))
		}
		if b.RouteID != nil {
			vp.Trip = &gtfs.TripDescriptor{RouteId: proto.String(*b.RouteID)}
		}
		if b.Status == models.StatusInTrip {
			vp.CurrentStatus = gtfs.VehiclePosition_IN_TRANSIT_TO.Enum()
		}
		msg.Entity = append(msg.Entity, &gtfs.FeedEntity{Id: proto.String(b.ID), Vehicle: vp})
	}
	return msg
}

func Marshal(buses []models.Bus, now time.Time) ([]byte, error) {
	return proto.Marshal(VehiclePositions(buses, now))
}
