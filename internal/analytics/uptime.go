package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/richd0tcom/waypoint/internal/domain"
)

const (
	// nominalIntervalSeconds is the device's normal reporting cadence.
	nominalIntervalSeconds = 150
	// dropoutGapSeconds is the gap length treated as a connectivity loss.
	dropoutGapSeconds = 600
)

// UptimeReport is the packet-cadence composite for one device.
type UptimeReport struct {
	Score             float64 `json:"score"`
	ExpectedPackets   int     `json:"expected_packets"`
	ReceivedPackets   int     `json:"received_packets"`
	LargestGapSeconds float64 `json:"largest_gap_seconds"`
	Dropouts          int     `json:"dropouts"`
}

// UptimeScorer rates expected-vs-received cadence over the trailing
// 24 hours.
type UptimeScorer struct {
	telemetry domain.TelemetryStore
	now       func() time.Time
}

func NewUptimeScorer(telemetry domain.TelemetryStore) *UptimeScorer {
	return &UptimeScorer{telemetry: telemetry, now: time.Now}
}

func (u *UptimeScorer) Uptime(ctx context.Context, imei string) (UptimeReport, error) {
	now := u.now()
	from := now.Add(-24 * time.Hour)
	expected := 86400 / nominalIntervalSeconds

	records, err := u.telemetry.Since(ctx, imei, from)
	if err != nil {
		return UptimeReport{}, err
	}

	var stamps []time.Time
	for _, rec := range records {
		if rec.DeviceTime == nil || rec.DeviceTime.Before(from) {
			continue
		}
		stamps = append(stamps, *rec.DeviceTime)
	}

	report := UptimeReport{ExpectedPackets: expected}
	if len(stamps) == 0 {
		return report, nil
	}

	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	var largestGap float64
	dropouts := 0
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1]).Seconds()
		if gap > largestGap {
			largestGap = gap
		}
		if gap > dropoutGapSeconds {
			dropouts++
		}
	}

	received := len(stamps)
	consistency := clamp(100*float64(received)/float64(expected), 0, 100)
	gapScore := gapStepScore(largestGap)
	dropoutScore := clamp(100-15*float64(dropouts), 0, 100)

	score := 0.5*consistency + 0.3*gapScore + 0.2*dropoutScore

	report.Score = round1(clamp(score, 0, 100))
	report.ReceivedPackets = received
	report.LargestGapSeconds = largestGap
	report.Dropouts = dropouts
	return report, nil
}

func gapStepScore(gapSeconds float64) float64 {
	switch {
	case gapSeconds <= 180:
		return 100
	case gapSeconds <= 600:
		return 80
	case gapSeconds <= 1800:
		return 50
	case gapSeconds <= 3600:
		return 20
	default:
		return 0
	}
}
