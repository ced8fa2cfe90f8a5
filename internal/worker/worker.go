package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/richd0tcom/waypoint/internal/audit"
	"github.com/richd0tcom/waypoint/internal/broker"
	"github.com/richd0tcom/waypoint/internal/command"
	"github.com/richd0tcom/waypoint/internal/domain"
	"github.com/richd0tcom/waypoint/internal/metrics"
	"github.com/richd0tcom/waypoint/internal/state"
)

// uplinkFilter matches every device's uplink topic.
const uplinkFilter = "+/pub"

type uplink struct {
	topic      string
	payload    []byte
	receivedAt time.Time
}

// Worker consumes the uplink stream: normalize, persist, correlate to
// outstanding commands, refresh the state cache.
type Worker struct {
	telemetry   domain.TelemetryStore
	tracker     *command.Tracker
	cache       *state.Cache
	feed        *audit.Feed
	log         *slog.Logger
	workerCount int
	queueSize   int
}

func New(telemetry domain.TelemetryStore, tracker *command.Tracker, cache *state.Cache, feed *audit.Feed, log *slog.Logger, workerCount, queueSize int) *Worker {
	return &Worker{
		telemetry:   telemetry,
		tracker:     tracker,
		cache:       cache,
		feed:        feed,
		log:         log,
		workerCount: workerCount,
		queueSize:   queueSize,
	}
}

// Start subscribes to the uplink filter and blocks until ctx is done.
func (w *Worker) Start(ctx context.Context, b broker.Broker) error {
	queue := make(chan uplink, w.queueSize)

	err := b.Subscribe(uplinkFilter, 1, func(topic string, payload []byte) {
		select {
		case queue <- uplink{topic: topic, payload: payload, receivedAt: time.Now().UTC()}:
		default:
			metrics.IncUplinkDropped()
			w.log.Warn("uplink queue full, dropping message", "topic", topic)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to uplinks: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.log.Info("uplink worker started", "worker", workerID)
			defer w.log.Info("uplink worker stopped", "worker", workerID)

			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-queue:
					w.process(ctx, msg)
				}
			}
		}(i)
	}

	wg.Wait()
	return nil
}

func (w *Worker) process(ctx context.Context, msg uplink) {
	imei := strings.TrimSuffix(msg.topic, "/pub")
	if !command.ValidIMEI(imei) {
		w.log.Warn("uplink on malformed topic", "topic", msg.topic)
		return
	}

	rec := ParseUplink(msg.topic, msg.payload, msg.receivedAt)

	if err := w.telemetry.Insert(ctx, rec); err != nil {
		w.log.Error("failed to persist uplink", "imei", imei, "error", err)
		return
	}
	metrics.IncUplinkProcessed()

	w.tracker.OnUplink(ctx, imei, rec)

	if w.cache != nil {
		if err := w.cache.Update(ctx, rec); err != nil {
			w.log.Warn("state cache update failed", "imei", imei, "error", err)
		}
	}

	w.feed.Emit(audit.Event{Kind: audit.KindUplinkReceived, IMEI: imei, Detail: rec.Packet})
}

// ParseUplink normalizes one raw device packet. Firmware field names
// are mixed-case on the wire; values stay strings so malformed numbers
// survive ingestion and degrade later in analytics instead.
func ParseUplink(topic string, payload []byte, receivedAt time.Time) *domain.TelemetryRecord {
	imei := strings.TrimSuffix(topic, "/pub")
	rec := &domain.TelemetryRecord{
		Topic:      topic,
		IMEI:       imei,
		RawText:    string(payload),
		ReceivedAt: receivedAt,
	}

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return rec
	}

	rec.Packet = stringField(fields, "packet", "Packet")
	rec.GeoID = stringField(fields, "Geoid", "geoid")
	rec.Latitude = stringField(fields, "latitude", "Latitude")
	rec.Longitude = stringField(fields, "longitude", "Longitude")
	rec.Speed = stringField(fields, "speed", "Speed")
	rec.Battery = stringField(fields, "Battery", "battery")
	rec.Signal = stringField(fields, "Signal", "signal")
	rec.Temperature = stringField(fields, "Temp", "temperature", "Temperature")
	rec.Alert = stringField(fields, "Alert", "alert")
	rec.Ack = stringField(fields, "Ack", "ack")

	if v, ok := fields["interval"].(float64); ok {
		rec.Interval = int(v)
	}

	if ts := parseDeviceTime(fields); ts != nil {
		rec.DeviceTime = ts
	}

	return rec
}

func stringField(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := fields[key]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case string:
			return x
		case float64:
			return trimFloat(x)
		case bool:
			if x {
				return "1"
			}
			return "0"
		}
	}
	return ""
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

// parseDeviceTime normalizes the device-local timestamp to IST. The
// firmware sends either "2006-01-02 15:04:05" device-local strings or
// unix seconds.
func parseDeviceTime(fields map[string]any) *time.Time {
	v, ok := fields["timestamp"]
	if !ok {
		v, ok = fields["Timestamp"]
	}
	if !ok || v == nil {
		return nil
	}

	switch x := v.(type) {
	case string:
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", x, domain.IST); err == nil {
			return &t
		}
		if t, err := time.Parse(time.RFC3339, x); err == nil {
			t = t.In(domain.IST)
			return &t
		}
	case float64:
		t := time.Unix(int64(x), 0).In(domain.IST)
		return &t
	}
	return nil
}
