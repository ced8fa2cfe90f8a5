package domain

import (
	"context"
	"time"
)

// GeofenceCoordinateCount is fixed by the device firmware: every
// geofence polygon is exactly five vertices.
const GeofenceCoordinateCount = 5

// GeofenceSlots are the named regions a device can monitor.
var GeofenceSlots = []string{"GEO1", "GEO2", "GEO3"}

type Coordinate struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// GeofenceRegion is persisted only after a SET_GEOFENCE dispatch has
// been published and its command record written.
type GeofenceRegion struct {
	IMEI        string       `json:"imei" bson:"imei"`
	Slot        string       `json:"geofence_number" bson:"geofence_number"`
	GeofenceID  string       `json:"geofence_id" bson:"geofence_id"`
	Coordinates []Coordinate `json:"coordinates" bson:"coordinates"`
	CreatedAt   time.Time    `json:"created_at" bson:"created_at"`
}

func ValidGeofenceSlot(slot string) bool {
	for _, s := range GeofenceSlots {
		if s == slot {
			return true
		}
	}
	return false
}

type GeofenceStore interface {
	Insert(ctx context.Context, region *GeofenceRegion) error
	ListByIMEI(ctx context.Context, imei string) ([]GeofenceRegion, error)
}
