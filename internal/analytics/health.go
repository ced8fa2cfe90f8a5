package analytics

import (
	"context"

	"github.com/richd0tcom/waypoint/internal/domain"
)

// gpsWindow is how many recent normal packets feed the GPS score.
const gpsWindow = 10

// HealthSnapshot is the on-demand device health projection: GPS fix
// quality, movement, thermal health and battery, all derived from the
// stored uplink history. Computed per query, never persisted.
type HealthSnapshot struct {
	IMEI        string            `json:"imei"`
	GpsScore    float64           `json:"gps_score"`
	Movement    string            `json:"movement"`
	MovementMix map[string]int    `json:"movement_histogram"`
	Temperature TemperatureHealth `json:"temperature"`
	Battery     *float64          `json:"battery,omitempty"`
}

// HealthReporter assembles health snapshots.
type HealthReporter struct {
	telemetry domain.TelemetryStore
}

func NewHealthReporter(telemetry domain.TelemetryStore) *HealthReporter {
	return &HealthReporter{telemetry: telemetry}
}

func (h *HealthReporter) Snapshot(ctx context.Context, imei string) (*HealthSnapshot, error) {
	recent, err := h.telemetry.RecentNormal(ctx, imei, gpsWindow)
	if err != nil {
		return nil, err
	}

	snap := &HealthSnapshot{
		IMEI:        imei,
		GpsScore:    GpsScore(recent),
		Movement:    MovementUnknown,
		MovementMix: MovementHistogram(recent),
	}

	// newest-first temperature trail and latest speed/battery
	var temps []float64
	for i := range recent {
		if t, ok := domain.Float(recent[i].Temperature); ok {
			temps = append(temps, t)
		}
	}
	snap.Temperature = TemperatureHealthIndex(temps)

	if len(recent) > 0 {
		snap.Movement = ClassifyRecord(&recent[0])
		if b, ok := domain.Float(recent[0].Battery); ok {
			snap.Battery = &b
		}
	}

	return snap, nil
}
