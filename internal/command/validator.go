package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/richd0tcom/waypoint/internal/domain"
)

// Validate applies the command's per-field rules to operator-supplied
// params. Pure: no side effects beyond reading the static registry.
func (r *Registry) Validate(name string, params map[string]any) error {
	def, ok := r.Lookup(name)
	if !ok {
		return ErrUnsupportedCommand
	}
	if def.Validate == nil {
		return nil
	}
	if err := def.Validate(params); err != nil {
		return err
	}
	return nil
}

// validateContacts requires three numeric-only phone fields. The
// firmware rejects anything but decimal digits.
func validateContacts(params map[string]any) *ValidationError {
	for _, field := range []string{"phonenum1", "phonenum2", "controlroomnum"} {
		v, ok := params[field]
		if !ok {
			return invalidField("SET_CONTACTS", field, "required")
		}
		s, ok := v.(string)
		if !ok || !digitsOnly(s) {
			return invalidField("SET_CONTACTS", field, "must contain only decimal digits")
		}
	}
	return nil
}

func validateGeofence(params map[string]any) *ValidationError {
	slot, _ := params["geofence_number"].(string)
	if !domain.ValidGeofenceSlot(slot) {
		return &ValidationError{
			Command: "SET_GEOFENCE",
			Field:   "geofence_number",
			Reason:  fmt.Sprintf("must be one of %s", strings.Join(domain.GeofenceSlots, ", ")),
		}
	}

	coords, ok := params["coordinates"].([]any)
	if !ok || len(coords) != domain.GeofenceCoordinateCount {
		return &ValidationError{
			Command: "SET_GEOFENCE",
			Field:   "coordinates",
			Reason:  fmt.Sprintf("must be a list of exactly %d coordinate pairs", domain.GeofenceCoordinateCount),
		}
	}
	for i, c := range coords {
		pair, ok := c.(map[string]any)
		if !ok {
			return invalidField("SET_GEOFENCE", "coordinates", fmt.Sprintf("element %d is not a coordinate object", i))
		}
		if _, ok := pair["latitude"]; !ok {
			return invalidField("SET_GEOFENCE", "coordinates", fmt.Sprintf("element %d is missing latitude", i))
		}
		if _, ok := pair["longitude"]; !ok {
			return invalidField("SET_GEOFENCE", "coordinates", fmt.Sprintf("element %d is missing longitude", i))
		}
	}

	id, _ := params["geofence_id"].(string)
	if id == "" {
		return invalidField("SET_GEOFENCE", "geofence_id", "required")
	}
	return nil
}

var deviceSettingsKeys = []string{
	"NormalSendingInterval",
	"SOSSendingInterval",
	"NormalScanningInterval",
	"AirplaneInterval",
	"TemperatureLimit",
	"SpeedLimit",
	"LowbatLimit",
}

func validateDeviceSettings(params map[string]any) *ValidationError {
	if missing := missingKeys(params, deviceSettingsKeys); len(missing) > 0 {
		return &ValidationError{
			Command: "DEVICE_SETTINGS",
			Reason:  "missing required settings: " + strings.Join(missing, ", "),
		}
	}
	return nil
}

var fotaKeys = []string{"FOTA", "CRC", "size", "vc"}

func validateFota(params map[string]any) *ValidationError {
	if missing := missingKeys(params, fotaKeys); len(missing) > 0 {
		return &ValidationError{
			Command: "FOTA_UPDATE",
			Reason:  "missing required fields: " + strings.Join(missing, ", "),
		}
	}
	return nil
}

func missingKeys(params map[string]any, required []string) []string {
	var missing []string
	for _, key := range required {
		if _, ok := params[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidIMEI checks the 15-digit numeric device identity used on every
// device-scoped operation.
func ValidIMEI(imei string) bool {
	return len(imei) == 15 && digitsOnly(imei)
}
