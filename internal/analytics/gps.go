package analytics

import (
	"math"

	"github.com/richd0tcom/waypoint/internal/domain"
)

// GpsScore rates fix quality from the most recent normal packets
// (callers pass at most 10). Fewer than 3 usable fixes is insufficient
// data and scores 0. Otherwise coordinate jitter and weak signal both
// pull the score down from 100.
func GpsScore(recentNormal []domain.TelemetryRecord) float64 {
	var lats, lons, signals []float64
	for _, rec := range recentNormal {
		lat, lon, ok := rec.Coordinates()
		if !ok {
			continue
		}
		lats = append(lats, lat)
		lons = append(lons, lon)
		if sig, ok := domain.Float(rec.Signal); ok {
			signals = append(signals, sig)
		}
	}

	if len(lats) < 3 {
		return 0
	}

	meanSignal := 0.0
	if len(signals) > 0 {
		meanSignal = mean(signals)
	}

	score := 100 - 5*stdev(lats) - 5*stdev(lons) - math.Max(0, 100-meanSignal)
	return round2(clamp(score, 0, 100))
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// stdev is the sample standard deviation.
func stdev(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	m := mean(vals)
	var ss float64
	for _, v := range vals {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
