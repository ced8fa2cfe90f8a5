package domain

import (
	"context"
	"time"
)

const (
	StatusPublished = "PUBLISHED"
	StatusDelivered = "DELIVERED"
	StatusFailed    = "FAILED"
)

// DeviceCommand is one dispatch attempt. Created with status PUBLISHED
// once the broker accepts the publish; the lifecycle tracker moves it
// to DELIVERED. FAILED publishes are never persisted.
type DeviceCommand struct {
	CmdID     string         `json:"cmd_id" bson:"cmd_id"`
	IMEI      string         `json:"imei" bson:"imei"`
	Command   string         `json:"command" bson:"command"`
	Payload   map[string]any `json:"payload" bson:"payload"`
	QoS       byte           `json:"qos" bson:"qos"`
	Status    string         `json:"status" bson:"status"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

type CommandStore interface {
	Insert(ctx context.Context, cmd *DeviceCommand) error
	ListByIMEI(ctx context.Context, imei string, limit int64) ([]DeviceCommand, error)
	LatestByIMEI(ctx context.Context, imei string) (*DeviceCommand, error)
	// LatestPublished returns the most recently created command for the
	// device still in PUBLISHED, or nil if none.
	LatestPublished(ctx context.Context, imei string) (*DeviceCommand, error)
	// FindPublished looks up a PUBLISHED command by its CmdID.
	FindPublished(ctx context.Context, imei, cmdID string) (*DeviceCommand, error)
	MarkDelivered(ctx context.Context, cmdID string, at time.Time) error
}
