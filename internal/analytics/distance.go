package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/richd0tcom/waypoint/internal/domain"
)

const earthRadiusKm = 6371.0

// HourBucket is one slot of the trailing 24-hour distance window.
type HourBucket struct {
	HourLabel    string  `json:"hour_label"`
	BucketStart  string  `json:"bucket_start_iso"`
	DistanceKm   float64 `json:"distance_km"`
	CumulativeKm float64 `json:"cumulative_km"`
}

// DistanceAggregator buckets great-circle travel per hour over the
// trailing 24 hours.
type DistanceAggregator struct {
	telemetry domain.TelemetryStore
	now       func() time.Time
}

func NewDistanceAggregator(telemetry domain.TelemetryStore) *DistanceAggregator {
	return &DistanceAggregator{telemetry: telemetry, now: time.Now}
}

// Last24h always returns exactly 24 buckets, oldest first, covering
// the window ending now. Missing or non-numeric coordinates never
// abort the aggregation; they just contribute no distance.
func (a *DistanceAggregator) Last24h(ctx context.Context, imei string) ([]HourBucket, error) {
	now := a.now().In(domain.IST)
	from := now.Add(-24 * time.Hour)

	records, err := a.telemetry.Since(ctx, imei, from)
	if err != nil {
		return nil, err
	}

	points := make([]domain.TelemetryRecord, 0, len(records))
	for _, rec := range records {
		if rec.DeviceTime == nil || rec.DeviceTime.Before(from) {
			continue
		}
		points = append(points, rec)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].DeviceTime.Before(*points[j].DeviceTime)
	})

	// collapse stationary repeats: consecutive points at numerically
	// identical coordinates
	retained := points[:0]
	for _, p := range points {
		if len(retained) > 0 {
			lat, lon, ok := p.Coordinates()
			prevLat, prevLon, prevOK := retained[len(retained)-1].Coordinates()
			if ok && prevOK && lat == prevLat && lon == prevLon {
				continue
			}
		}
		retained = append(retained, p)
	}

	perHour := make(map[time.Time]float64)
	for i := 1; i < len(retained); i++ {
		lat1, lon1, ok1 := retained[i-1].Coordinates()
		lat2, lon2, ok2 := retained[i].Coordinates()
		if !ok1 || !ok2 {
			continue
		}
		// distance accrues to the hour of the later point
		hour := truncateHourIST(*retained[i].DeviceTime)
		perHour[hour] += haversineKm(lat1, lon1, lat2, lon2)
	}

	buckets := make([]HourBucket, 0, 24)
	var cumulative float64
	latest := truncateHourIST(now)
	for i := 23; i >= 0; i-- {
		start := latest.Add(-time.Duration(i) * time.Hour)
		dist := round3(perHour[start])
		cumulative = round3(cumulative + dist)
		buckets = append(buckets, HourBucket{
			HourLabel:    start.Format("15:04"),
			BucketStart:  start.Format(time.RFC3339),
			DistanceKm:   dist,
			CumulativeKm: cumulative,
		})
	}
	return buckets, nil
}

// truncateHourIST snaps to the top of the wall-clock hour. Truncate
// alone would land on half-hour boundaries because of the +05:30 offset.
func truncateHourIST(t time.Time) time.Time {
	t = t.In(domain.IST)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, domain.IST)
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const deg = math.Pi / 180

	dLat := (lat2 - lat1) * deg
	dLon := (lon2 - lon1) * deg

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*deg)*math.Cos(lat2*deg)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
