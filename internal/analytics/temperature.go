package analytics

const (
	TempCritical = "critical"
	TempWarning  = "warning"
	TempWarm     = "warm"
	TempNormal   = "normal"
)

// TemperatureHealth holds the thermal health index and its band.
type TemperatureHealth struct {
	Index  int    `json:"index"`
	Status string `json:"status"`
}

// TemperatureHealthIndex scores thermal health from recent readings,
// newest first. No readings is healthy: partial telemetry is the
// common case for field devices.
func TemperatureHealthIndex(readings []float64) TemperatureHealth {
	if len(readings) == 0 {
		return TemperatureHealth{Index: 100, Status: TempNormal}
	}

	index := 100
	latest := readings[0]
	switch {
	case latest > 60:
		index -= 50
	case latest > 50:
		index -= 30
	case latest > 45:
		index -= 15
	}

	// fast rise across the last three readings
	if len(readings) >= 3 && readings[0]-readings[2] > 5 {
		index -= 20
	}

	if index < 0 {
		index = 0
	}
	if index > 100 {
		index = 100
	}

	status := TempNormal
	switch {
	case index < 40:
		status = TempCritical
	case index < 60:
		status = TempWarning
	case index < 80:
		status = TempWarm
	}

	return TemperatureHealth{Index: index, Status: status}
}
