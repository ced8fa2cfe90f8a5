package analytics

import "github.com/richd0tcom/waypoint/internal/domain"

const (
	MovementUnknown    = "unknown"
	MovementStationary = "stationary"
	MovementCrawling   = "crawling"
	MovementCruising   = "cruising"
	MovementHighway    = "highway"
	MovementOverspeed  = "overspeed"
)

// ClassifyMovement maps a speed reading to a movement state. Upper
// bounds are inclusive; a nil speed is unknown.
func ClassifyMovement(speed *float64) string {
	switch {
	case speed == nil:
		return MovementUnknown
	case *speed <= 1:
		return MovementStationary
	case *speed <= 5:
		return MovementCrawling
	case *speed <= 45:
		return MovementCruising
	case *speed <= 70:
		return MovementHighway
	default:
		return MovementOverspeed
	}
}

// ClassifyRecord classifies one telemetry record's speed field.
func ClassifyRecord(rec *domain.TelemetryRecord) string {
	if v, ok := domain.Float(rec.Speed); ok {
		return ClassifyMovement(&v)
	}
	return ClassifyMovement(nil)
}

// MovementHistogram counts movement states across a set of records.
func MovementHistogram(records []domain.TelemetryRecord) map[string]int {
	hist := make(map[string]int)
	for i := range records {
		hist[ClassifyRecord(&records[i])]++
	}
	return hist
}
