package domain

import (
	"context"
	"strconv"
	"time"
)

// IST is the civil timezone device timestamps are normalized to.
var IST = time.FixedZone("IST", 5*3600+30*60)

// PacketNormal tags routine position reports; these are the baseline
// for GPS quality scoring.
const PacketNormal = "N"

// TelemetryRecord is one normalized device uplink. Numeric-looking
// fields are kept as the strings the firmware sends; analytics parse
// them leniently and degrade instead of failing.
type TelemetryRecord struct {
	Topic       string     `json:"topic,omitempty" bson:"topic,omitempty"`
	IMEI        string     `json:"imei" bson:"imei"`
	Packet      string     `json:"packet,omitempty" bson:"packet,omitempty"`
	Interval    int        `json:"interval,omitempty" bson:"interval,omitempty"`
	GeoID       string     `json:"geoid,omitempty" bson:"geoid,omitempty"`
	Latitude    string     `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude   string     `json:"longitude,omitempty" bson:"longitude,omitempty"`
	Speed       string     `json:"speed,omitempty" bson:"speed,omitempty"`
	Battery     string     `json:"battery,omitempty" bson:"battery,omitempty"`
	Signal      string     `json:"signal,omitempty" bson:"signal,omitempty"`
	Temperature string     `json:"temperature,omitempty" bson:"temperature,omitempty"`
	Alert       string     `json:"alert,omitempty" bson:"alert,omitempty"`
	Ack         string     `json:"ack,omitempty" bson:"ack,omitempty"`
	RawText     string     `json:"raw_text,omitempty" bson:"raw_text,omitempty"`
	DeviceTime  *time.Time `json:"device_time,omitempty" bson:"device_time,omitempty"`
	ReceivedAt  time.Time  `json:"received_at" bson:"received_at"`
}

// Float parses a firmware string field. ok is false for missing or
// non-numeric values.
func Float(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Coordinates returns the parsed position, ok only if both ends are numeric.
func (t *TelemetryRecord) Coordinates() (lat, lon float64, ok bool) {
	lat, latOK := Float(t.Latitude)
	lon, lonOK := Float(t.Longitude)
	return lat, lon, latOK && lonOK
}

type TelemetryStore interface {
	Insert(ctx context.Context, rec *TelemetryRecord) error
	ListByIMEI(ctx context.Context, imei string, limit int64) ([]TelemetryRecord, error)
	Since(ctx context.Context, imei string, from time.Time) ([]TelemetryRecord, error)
	RecentNormal(ctx context.Context, imei string, limit int64) ([]TelemetryRecord, error)
}
