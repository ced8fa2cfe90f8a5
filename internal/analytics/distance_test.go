package analytics

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/richd0tcom/waypoint/internal/domain"
)

const testIMEI = "864200000000001"

type stubTelemetry struct {
	records []domain.TelemetryRecord
}

func (s *stubTelemetry) Insert(context.Context, *domain.TelemetryRecord) error { return nil }

func (s *stubTelemetry) ListByIMEI(context.Context, string, int64) ([]domain.TelemetryRecord, error) {
	return s.records, nil
}

func (s *stubTelemetry) Since(_ context.Context, _ string, from time.Time) ([]domain.TelemetryRecord, error) {
	var out []domain.TelemetryRecord
	for _, rec := range s.records {
		if rec.DeviceTime != nil && !rec.DeviceTime.Before(from) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *stubTelemetry) RecentNormal(_ context.Context, _ string, limit int64) ([]domain.TelemetryRecord, error) {
	if int64(len(s.records)) < limit {
		return s.records, nil
	}
	return s.records[:limit], nil
}

func point(at time.Time, lat, lon string) domain.TelemetryRecord {
	t := at
	return domain.TelemetryRecord{
		IMEI:       testIMEI,
		Packet:     domain.PacketNormal,
		Latitude:   lat,
		Longitude:  lon,
		DeviceTime: &t,
		ReceivedAt: at,
	}
}

func fixedAggregator(store *stubTelemetry, now time.Time) *DistanceAggregator {
	agg := NewDistanceAggregator(store)
	agg.now = func() time.Time { return now }
	return agg
}

func TestDistanceAlwaysReturns24Buckets(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 30, 0, 0, domain.IST)

	for _, store := range []*stubTelemetry{
		{},
		{records: []domain.TelemetryRecord{point(now.Add(-time.Hour), "12.97", "77.59")}},
	} {
		buckets, err := fixedAggregator(store, now).Last24h(context.Background(), testIMEI)
		if err != nil {
			t.Fatalf("aggregation failed: %v", err)
		}
		if len(buckets) != 24 {
			t.Fatalf("expected 24 buckets, got %d", len(buckets))
		}
		prev := 0.0
		for i, b := range buckets {
			if b.CumulativeKm < prev {
				t.Errorf("bucket %d: cumulative decreased %f -> %f", i, prev, b.CumulativeKm)
			}
			prev = b.CumulativeKm
		}
	}
}

func TestDistanceOneDegreeLongitudeAtEquator(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 30, 0, 0, domain.IST)
	store := &stubTelemetry{records: []domain.TelemetryRecord{
		point(now.Add(-80*time.Minute), "0", "0"),
		point(now.Add(-70*time.Minute), "0", "1"),
	}}

	buckets, err := fixedAggregator(store, now).Last24h(context.Background(), testIMEI)
	if err != nil {
		t.Fatalf("aggregation failed: %v", err)
	}

	// segment lands in the hour of the later point, 11:00 IST
	var hit *HourBucket
	for i := range buckets {
		if buckets[i].HourLabel == "11:00" {
			hit = &buckets[i]
		}
	}
	if hit == nil {
		t.Fatal("no 11:00 bucket in window")
	}
	if math.Abs(hit.DistanceKm-111.195) > 0.05 {
		t.Errorf("1 degree of longitude at the equator should be ~111.2 km, got %f", hit.DistanceKm)
	}
	if buckets[23].CumulativeKm != hit.CumulativeKm {
		t.Errorf("cumulative total should carry to the final bucket")
	}
}

func TestDistanceDedupsStationaryRepeats(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 30, 0, 0, domain.IST)
	store := &stubTelemetry{records: []domain.TelemetryRecord{
		point(now.Add(-30*time.Minute), "12.971600", "77.594600"),
		point(now.Add(-25*time.Minute), "12.971600", "77.594600"),
		point(now.Add(-20*time.Minute), "12.971600", "77.594600"),
	}}

	buckets, err := fixedAggregator(store, now).Last24h(context.Background(), testIMEI)
	if err != nil {
		t.Fatalf("aggregation failed: %v", err)
	}
	for _, b := range buckets {
		if b.DistanceKm != 0 {
			t.Errorf("stationary device must accumulate no distance, bucket %s has %f", b.HourLabel, b.DistanceKm)
		}
	}
}

func TestDistanceSkipsNonNumericCoordinates(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 30, 0, 0, domain.IST)
	store := &stubTelemetry{records: []domain.TelemetryRecord{
		point(now.Add(-50*time.Minute), "0", "0"),
		point(now.Add(-45*time.Minute), "no-fix", ""),
		point(now.Add(-40*time.Minute), "0", "0.5"),
	}}

	buckets, err := fixedAggregator(store, now).Last24h(context.Background(), testIMEI)
	if err != nil {
		t.Fatalf("malformed coordinates must not abort aggregation: %v", err)
	}

	var total float64
	for _, b := range buckets {
		total += b.DistanceKm
	}
	// both segments touch the unusable point, so nothing accrues
	if total != 0 {
		t.Errorf("pairs with a non-numeric endpoint contribute zero, got %f", total)
	}
}

func TestDistanceIgnoresRecordsOutsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 30, 0, 0, domain.IST)
	store := &stubTelemetry{records: []domain.TelemetryRecord{
		point(now.Add(-26*time.Hour), "0", "0"),
		point(now.Add(-25*time.Hour), "0", "5"),
	}}

	buckets, err := fixedAggregator(store, now).Last24h(context.Background(), testIMEI)
	if err != nil {
		t.Fatalf("aggregation failed: %v", err)
	}
	if buckets[23].CumulativeKm != 0 {
		t.Errorf("records older than 24h must not contribute, cumulative = %f", buckets[23].CumulativeKm)
	}
}

func TestDistanceIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 30, 0, 0, domain.IST)
	store := &stubTelemetry{records: []domain.TelemetryRecord{
		point(now.Add(-3*time.Hour), "12.90", "77.50"),
		point(now.Add(-2*time.Hour), "12.95", "77.55"),
		point(now.Add(-1*time.Hour), "13.00", "77.60"),
	}}
	agg := fixedAggregator(store, now)

	first, err := agg.Last24h(context.Background(), testIMEI)
	if err != nil {
		t.Fatalf("aggregation failed: %v", err)
	}
	second, err := agg.Last24h(context.Background(), testIMEI)
	if err != nil {
		t.Fatalf("aggregation failed: %v", err)
	}
	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Error("same snapshot must yield identical buckets")
	}
}
