package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/richd0tcom/waypoint/internal/audit"
	"github.com/richd0tcom/waypoint/internal/broker"
	"github.com/richd0tcom/waypoint/internal/domain"
	"github.com/richd0tcom/waypoint/internal/metrics"
)

// Receipt is returned to the operator after a dispatch attempt that
// reached the broker.
type Receipt struct {
	CmdID      string         `json:"cmd_id"`
	IMEI       string         `json:"imei"`
	Command    string         `json:"command"`
	Payload    map[string]any `json:"payload"`
	QoS        byte           `json:"qos"`
	Status     string         `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpectsAck bool           `json:"expects_ack"`
	Note       string         `json:"note,omitempty"`
}

// Dispatcher validates commands against the registry, publishes them
// on the device's downlink topic and persists the attempt.
type Dispatcher struct {
	registry  *Registry
	broker    broker.Broker
	commands  domain.CommandStore
	geofences domain.GeofenceStore
	feed      *audit.Feed
	log       *slog.Logger
	now       func() time.Time
}

func NewDispatcher(registry *Registry, b broker.Broker, commands domain.CommandStore, geofences domain.GeofenceStore, feed *audit.Feed, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		broker:    b,
		commands:  commands,
		geofences: geofences,
		feed:      feed,
		log:       log,
		now:       time.Now,
	}
}

// Dispatch runs the full downlink path. Either the publish and the
// record persist both succeed, or no record exists. A store failure
// after a successful publish returns the receipt together with a
// *PersistenceError so callers can surface the inconsistency window.
func (d *Dispatcher) Dispatch(ctx context.Context, imei, name string, params map[string]any) (*Receipt, error) {
	if !ValidIMEI(imei) {
		metrics.IncDispatchRejected("imei")
		return nil, invalidField(name, "imei", "must be a 15-digit numeric string")
	}

	def, ok := d.registry.Lookup(name)
	if !ok {
		metrics.IncDispatchRejected("unsupported")
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, name)
	}

	if def.Validate != nil {
		if err := def.Validate(params); err != nil {
			metrics.IncDispatchRejected("validation")
			return nil, err
		}
	}

	// template first, params win on collision
	payload := def.PayloadTemplate()
	for k, v := range params {
		payload[k] = v
	}

	cmdID := uuid.NewString()
	payload["CmdID"] = cmdID

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	topic := imei + "/sub"
	createdAt := d.now().UTC()

	if err := d.broker.Publish(ctx, topic, def.QoS, data); err != nil {
		metrics.IncPublishFailure()
		d.feed.Emit(audit.Event{Kind: audit.KindPublishFailed, IMEI: imei, CmdID: cmdID, Command: name, Detail: err.Error()})
		// deliberately no record: a persisted command implies the
		// broker accepted the publish
		return nil, &TransportError{Err: err}
	}

	receipt := &Receipt{
		CmdID:      cmdID,
		IMEI:       imei,
		Command:    name,
		Payload:    payload,
		QoS:        def.QoS,
		Status:     domain.StatusPublished,
		CreatedAt:  createdAt,
		ExpectsAck: def.ExpectsAck,
	}
	if def.ExpectsAck {
		receipt.Note = "device acknowledgment expected on next uplink"
	} else {
		receipt.Note = "fire-and-forget, no acknowledgment expected"
	}

	record := &domain.DeviceCommand{
		CmdID:     cmdID,
		IMEI:      imei,
		Command:   name,
		Payload:   payload,
		QoS:       def.QoS,
		Status:    domain.StatusPublished,
		CreatedAt: createdAt,
	}
	if err := d.commands.Insert(ctx, record); err != nil {
		d.log.Error("command published but not recorded", "imei", imei, "command", name, "cmd_id", cmdID, "error", err)
		receipt.Note = "command was sent to the device but could not be recorded"
		return receipt, &PersistenceError{Err: err}
	}

	if name == "SET_GEOFENCE" {
		if err := d.persistGeofence(ctx, imei, params, createdAt); err != nil {
			d.log.Error("geofence region not recorded", "imei", imei, "cmd_id", cmdID, "error", err)
			receipt.Note = "command was sent but the geofence region could not be recorded"
			return receipt, &PersistenceError{Err: err}
		}
	}

	metrics.IncCommandDispatched(name)
	d.feed.Emit(audit.Event{Kind: audit.KindDispatched, IMEI: imei, CmdID: cmdID, Command: name})
	d.log.Info("command dispatched", "imei", imei, "command", name, "cmd_id", cmdID, "qos", def.QoS)

	return receipt, nil
}

func (d *Dispatcher) persistGeofence(ctx context.Context, imei string, params map[string]any, createdAt time.Time) error {
	raw, _ := params["coordinates"].([]any)
	coords := make([]domain.Coordinate, 0, len(raw))
	for _, c := range raw {
		pair, _ := c.(map[string]any)
		coords = append(coords, domain.Coordinate{
			Latitude:  asFloat(pair["latitude"]),
			Longitude: asFloat(pair["longitude"]),
		})
	}

	slot, _ := params["geofence_number"].(string)
	id, _ := params["geofence_id"].(string)

	return d.geofences.Insert(ctx, &domain.GeofenceRegion{
		IMEI:        imei,
		Slot:        slot,
		GeofenceID:  id,
		Coordinates: coords,
		CreatedAt:   createdAt,
	})
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, _ := x.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	default:
		return 0
	}
}
