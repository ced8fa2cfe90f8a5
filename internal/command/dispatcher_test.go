package command

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/richd0tcom/waypoint/internal/broker"
	"github.com/richd0tcom/waypoint/internal/domain"
)

const testIMEI = "864200000000001"

type publishCall struct {
	topic   string
	qos     byte
	payload []byte
}

type stubBroker struct {
	published []publishCall
	err       error
}

func (b *stubBroker) Publish(_ context.Context, topic string, qos byte, payload []byte) error {
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, publishCall{topic: topic, qos: qos, payload: payload})
	return nil
}

func (b *stubBroker) Subscribe(string, byte, broker.Handler) error { return nil }
func (b *stubBroker) Close() error                                 { return nil }

type stubCommandStore struct {
	inserted  []*domain.DeviceCommand
	insertErr error
}

func (s *stubCommandStore) Insert(_ context.Context, cmd *domain.DeviceCommand) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, cmd)
	return nil
}

func (s *stubCommandStore) ListByIMEI(context.Context, string, int64) ([]domain.DeviceCommand, error) {
	return nil, nil
}

func (s *stubCommandStore) LatestByIMEI(context.Context, string) (*domain.DeviceCommand, error) {
	return nil, nil
}

func (s *stubCommandStore) LatestPublished(_ context.Context, imei string) (*domain.DeviceCommand, error) {
	for i := len(s.inserted) - 1; i >= 0; i-- {
		if s.inserted[i].IMEI == imei && s.inserted[i].Status == domain.StatusPublished {
			return s.inserted[i], nil
		}
	}
	return nil, nil
}

func (s *stubCommandStore) FindPublished(_ context.Context, imei, cmdID string) (*domain.DeviceCommand, error) {
	for _, cmd := range s.inserted {
		if cmd.IMEI == imei && cmd.CmdID == cmdID && cmd.Status == domain.StatusPublished {
			return cmd, nil
		}
	}
	return nil, nil
}

func (s *stubCommandStore) MarkDelivered(_ context.Context, cmdID string, at time.Time) error {
	for _, cmd := range s.inserted {
		if cmd.CmdID == cmdID {
			cmd.Status = domain.StatusDelivered
			cmd.UpdatedAt = &at
			return nil
		}
	}
	return errors.New("command not found")
}

type stubGeofenceStore struct {
	inserted  []*domain.GeofenceRegion
	insertErr error
}

func (s *stubGeofenceStore) Insert(_ context.Context, region *domain.GeofenceRegion) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, region)
	return nil
}

func (s *stubGeofenceStore) ListByIMEI(context.Context, string) ([]domain.GeofenceRegion, error) {
	return s.slice(), nil
}

func (s *stubGeofenceStore) slice() []domain.GeofenceRegion {
	out := make([]domain.GeofenceRegion, 0, len(s.inserted))
	for _, r := range s.inserted {
		out = append(out, *r)
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(b *stubBroker, commands *stubCommandStore, geofences *stubGeofenceStore) *Dispatcher {
	return NewDispatcher(Default(), b, commands, geofences, nil, testLogger())
}

func TestDispatchPersistsPublishedRecord(t *testing.T) {
	b := &stubBroker{}
	commands := &stubCommandStore{}
	d := newTestDispatcher(b, commands, &stubGeofenceStore{})

	receipt, err := d.Dispatch(context.Background(), testIMEI, "STOP_SOS", nil)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if len(b.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(b.published))
	}
	if b.published[0].topic != testIMEI+"/sub" {
		t.Errorf("published to wrong topic: %s", b.published[0].topic)
	}
	if b.published[0].qos != 2 {
		t.Errorf("STOP_SOS should publish at qos 2, got %d", b.published[0].qos)
	}

	if len(commands.inserted) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(commands.inserted))
	}
	record := commands.inserted[0]
	if record.Status != domain.StatusPublished {
		t.Errorf("record status = %s, want %s; broker acceptance is not device execution", record.Status, domain.StatusPublished)
	}
	if record.Payload["SOS"] != "Stop_SOS" {
		t.Errorf("template field missing from payload: %v", record.Payload)
	}
	if record.CmdID == "" || record.CmdID != receipt.CmdID {
		t.Errorf("record and receipt must share a command id")
	}

	var wire map[string]any
	if err := json.Unmarshal(b.published[0].payload, &wire); err != nil {
		t.Fatalf("published payload is not JSON: %v", err)
	}
	if wire["CmdID"] != record.CmdID {
		t.Errorf("outbound payload must carry the command id")
	}
}

func TestDispatchMergesParamsOverTemplate(t *testing.T) {
	b := &stubBroker{}
	commands := &stubCommandStore{}
	d := newTestDispatcher(b, commands, &stubGeofenceStore{})

	params := map[string]any{"NormalSendingInterval": "300", "extra": "1"}
	receipt, err := d.Dispatch(context.Background(), testIMEI, "GPS_DISABLE", params)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	// params win on collision with the template
	if receipt.Payload["NormalSendingInterval"] != "300" {
		t.Errorf("param should override template, got %v", receipt.Payload["NormalSendingInterval"])
	}
	if receipt.Payload["extra"] != "1" {
		t.Errorf("param keys must be carried into the payload")
	}
}

func TestDispatchValidationFailureHasNoSideEffects(t *testing.T) {
	b := &stubBroker{}
	commands := &stubCommandStore{}
	d := newTestDispatcher(b, commands, &stubGeofenceStore{})

	params := map[string]any{"phonenum1": "abc", "phonenum2": "123", "controlroomnum": "456"}
	_, err := d.Dispatch(context.Background(), testIMEI, "SET_CONTACTS", params)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Field != "phonenum1" {
		t.Errorf("expected phonenum1 flagged, got %q", vErr.Field)
	}
	if len(b.published) != 0 {
		t.Error("validation failure must not publish")
	}
	if len(commands.inserted) != 0 {
		t.Error("validation failure must not persist a record")
	}
}

func TestDispatchUnsupportedCommand(t *testing.T) {
	b := &stubBroker{}
	d := newTestDispatcher(b, &stubCommandStore{}, &stubGeofenceStore{})

	_, err := d.Dispatch(context.Background(), testIMEI, "REBOOT_UNIVERSE", nil)
	if !errors.Is(err, ErrUnsupportedCommand) {
		t.Fatalf("expected ErrUnsupportedCommand, got %v", err)
	}
	if len(b.published) != 0 {
		t.Error("unsupported command must not publish")
	}
}

func TestDispatchRejectsBadIMEI(t *testing.T) {
	b := &stubBroker{}
	d := newTestDispatcher(b, &stubCommandStore{}, &stubGeofenceStore{})

	_, err := d.Dispatch(context.Background(), "12345", "STOP_SOS", nil)
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "imei" {
		t.Fatalf("expected imei validation error, got %v", err)
	}
}

func TestDispatchTransportFailureDoesNotPersist(t *testing.T) {
	b := &stubBroker{err: errors.New("not connected to broker")}
	commands := &stubCommandStore{}
	d := newTestDispatcher(b, commands, &stubGeofenceStore{})

	_, err := d.Dispatch(context.Background(), testIMEI, "LED_ON", nil)
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if len(commands.inserted) != 0 {
		t.Error("a persisted record implies the broker accepted the publish")
	}
}

func TestDispatchPersistenceFailureReturnsWarningReceipt(t *testing.T) {
	b := &stubBroker{}
	commands := &stubCommandStore{insertErr: errors.New("write concern failed")}
	d := newTestDispatcher(b, commands, &stubGeofenceStore{})

	receipt, err := d.Dispatch(context.Background(), testIMEI, "STOP_SOS", nil)
	var pErr *PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if receipt == nil {
		t.Fatal("receipt must still be returned: the command reached the device")
	}
	if receipt.Note == "" {
		t.Error("receipt should explain the inconsistency window")
	}
}

func TestDispatchGeofencePersistsRegion(t *testing.T) {
	b := &stubBroker{}
	commands := &stubCommandStore{}
	geofences := &stubGeofenceStore{}
	d := newTestDispatcher(b, commands, geofences)

	_, err := d.Dispatch(context.Background(), testIMEI, "SET_GEOFENCE", geofenceParams(5))
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if len(geofences.inserted) != 1 {
		t.Fatalf("expected 1 geofence region, got %d", len(geofences.inserted))
	}
	region := geofences.inserted[0]
	if len(region.Coordinates) != domain.GeofenceCoordinateCount {
		t.Errorf("region must keep exactly %d coordinates, got %d", domain.GeofenceCoordinateCount, len(region.Coordinates))
	}
	if region.Slot != "GEO2" || region.GeofenceID != "office-perimeter" {
		t.Errorf("region fields not carried over: %+v", region)
	}
}

func TestDispatchGeofenceRejectedBeforePublish(t *testing.T) {
	b := &stubBroker{}
	geofences := &stubGeofenceStore{}
	d := newTestDispatcher(b, &stubCommandStore{}, geofences)

	_, err := d.Dispatch(context.Background(), testIMEI, "SET_GEOFENCE", geofenceParams(4))
	if err == nil {
		t.Fatal("expected validation error for 4 coordinate pairs")
	}
	if len(b.published) != 0 {
		t.Error("invalid geofence must fail before any publish")
	}
	if len(geofences.inserted) != 0 {
		t.Error("invalid geofence must not be persisted")
	}
}

func TestDispatchAllRegisteredCommands(t *testing.T) {
	registry := Default()

	validParams := map[string]map[string]any{
		"SET_CONTACTS": {"phonenum1": "111", "phonenum2": "222", "controlroomnum": "333"},
		"SET_GEOFENCE": geofenceParams(5),
		"DEVICE_SETTINGS": {
			"NormalSendingInterval": "150", "SOSSendingInterval": "30",
			"NormalScanningInterval": "60", "AirplaneInterval": "3600",
			"TemperatureLimit": "55", "SpeedLimit": "80", "LowbatLimit": "15",
		},
		"FOTA_UPDATE": {"FOTA": "begin", "CRC": "a1b2", "size": 4096.0, "vc": "2.1.0"},
	}

	for _, name := range registry.Names() {
		b := &stubBroker{}
		commands := &stubCommandStore{}
		d := newTestDispatcher(b, commands, &stubGeofenceStore{})

		receipt, err := d.Dispatch(context.Background(), testIMEI, name, validParams[name])
		if err != nil {
			t.Errorf("%s: dispatch failed: %v", name, err)
			continue
		}
		if len(commands.inserted) != 1 || commands.inserted[0].Status != domain.StatusPublished {
			t.Errorf("%s: expected one PUBLISHED record", name)
			continue
		}

		def, _ := registry.Lookup(name)
		for key, want := range def.Payload {
			if params := validParams[name]; params != nil {
				if _, overridden := params[key]; overridden {
					continue
				}
			}
			if got := receipt.Payload[key]; got != want {
				t.Errorf("%s: template key %q = %v, want %v", name, key, got, want)
			}
		}
		for key := range validParams[name] {
			if _, ok := receipt.Payload[key]; !ok {
				t.Errorf("%s: param key %q missing from payload", name, key)
			}
		}
	}
}
