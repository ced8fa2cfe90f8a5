package command

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateContacts(t *testing.T) {
	registry := Default()

	valid := map[string]any{
		"phonenum1":      "919876543210",
		"phonenum2":      "919876543211",
		"controlroomnum": "18001234567",
	}
	if err := registry.Validate("SET_CONTACTS", valid); err != nil {
		t.Fatalf("valid contacts rejected: %v", err)
	}

	cases := []struct {
		name   string
		params map[string]any
		field  string
	}{
		{"letters", map[string]any{"phonenum1": "abc", "phonenum2": "123", "controlroomnum": "456"}, "phonenum1"},
		{"missing", map[string]any{"phonenum1": "123", "controlroomnum": "456"}, "phonenum2"},
		{"empty", map[string]any{"phonenum1": "123", "phonenum2": "", "controlroomnum": "456"}, "phonenum2"},
		{"non-string", map[string]any{"phonenum1": "123", "phonenum2": "456", "controlroomnum": 789.0}, "controlroomnum"},
		{"spaces", map[string]any{"phonenum1": "12 3", "phonenum2": "456", "controlroomnum": "789"}, "phonenum1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := registry.Validate("SET_CONTACTS", tc.params)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tc.field {
				t.Fatalf("expected field %q flagged, got %q", tc.field, vErr.Field)
			}
		})
	}
}

func geofenceParams(coordCount int) map[string]any {
	coords := make([]any, 0, coordCount)
	for i := 0; i < coordCount; i++ {
		coords = append(coords, map[string]any{"latitude": 12.9 + float64(i)*0.01, "longitude": 77.5})
	}
	return map[string]any{
		"geofence_number": "GEO2",
		"geofence_id":     "office-perimeter",
		"coordinates":     coords,
	}
}

func TestValidateGeofence(t *testing.T) {
	registry := Default()

	if err := registry.Validate("SET_GEOFENCE", geofenceParams(5)); err != nil {
		t.Fatalf("valid geofence rejected: %v", err)
	}

	t.Run("four coordinates", func(t *testing.T) {
		if err := registry.Validate("SET_GEOFENCE", geofenceParams(4)); err == nil {
			t.Fatal("expected error for 4 coordinate pairs")
		}
	})

	t.Run("six coordinates", func(t *testing.T) {
		if err := registry.Validate("SET_GEOFENCE", geofenceParams(6)); err == nil {
			t.Fatal("expected error for 6 coordinate pairs")
		}
	})

	t.Run("bad slot", func(t *testing.T) {
		params := geofenceParams(5)
		params["geofence_number"] = "GEO4"
		err := registry.Validate("SET_GEOFENCE", params)
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Field != "geofence_number" {
			t.Fatalf("expected geofence_number error, got %v", err)
		}
	})

	t.Run("missing longitude", func(t *testing.T) {
		params := geofenceParams(5)
		params["coordinates"].([]any)[2] = map[string]any{"latitude": 12.9}
		err := registry.Validate("SET_GEOFENCE", params)
		if err == nil || !strings.Contains(err.Error(), "longitude") {
			t.Fatalf("expected missing longitude error, got %v", err)
		}
	})

	t.Run("empty geofence id", func(t *testing.T) {
		params := geofenceParams(5)
		params["geofence_id"] = ""
		err := registry.Validate("SET_GEOFENCE", params)
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Field != "geofence_id" {
			t.Fatalf("expected geofence_id error, got %v", err)
		}
	})
}

func TestValidateDeviceSettings(t *testing.T) {
	registry := Default()

	full := map[string]any{
		"NormalSendingInterval":  "150",
		"SOSSendingInterval":     "30",
		"NormalScanningInterval": "60",
		"AirplaneInterval":       "3600",
		"TemperatureLimit":       "55",
		"SpeedLimit":             "80",
		"LowbatLimit":            "15",
	}
	if err := registry.Validate("DEVICE_SETTINGS", full); err != nil {
		t.Fatalf("full settings rejected: %v", err)
	}

	partial := map[string]any{"NormalSendingInterval": "150", "SpeedLimit": "80"}
	err := registry.Validate("DEVICE_SETTINGS", partial)
	if err == nil {
		t.Fatal("expected error for missing settings keys")
	}
	for _, missing := range []string{"SOSSendingInterval", "TemperatureLimit", "LowbatLimit"} {
		if !strings.Contains(err.Error(), missing) {
			t.Errorf("error should name missing key %s: %v", missing, err)
		}
	}
}

func TestValidateFota(t *testing.T) {
	registry := Default()

	full := map[string]any{"FOTA": "begin", "CRC": "a1b2", "size": 4096.0, "vc": "2.1.0"}
	if err := registry.Validate("FOTA_UPDATE", full); err != nil {
		t.Fatalf("full fota params rejected: %v", err)
	}

	err := registry.Validate("FOTA_UPDATE", map[string]any{"FOTA": "begin", "size": 4096.0})
	if err == nil {
		t.Fatal("expected error for missing fota keys")
	}
	if !strings.Contains(err.Error(), "CRC") || !strings.Contains(err.Error(), "vc") {
		t.Fatalf("error should name CRC and vc: %v", err)
	}
}

func TestValidateUnknownCommand(t *testing.T) {
	registry := Default()
	if err := registry.Validate("SELF_DESTRUCT", nil); !errors.Is(err, ErrUnsupportedCommand) {
		t.Fatalf("expected ErrUnsupportedCommand, got %v", err)
	}
}

func TestCommandsWithoutRulesAcceptAnyParams(t *testing.T) {
	registry := Default()
	for _, name := range []string{"STOP_SOS", "QUERY_NORMAL", "LED_ON", "AIRPLANE_ENABLE", "GPS_DISABLE"} {
		if err := registry.Validate(name, map[string]any{"anything": true}); err != nil {
			t.Errorf("%s: unexpected validation error: %v", name, err)
		}
	}
}

func TestValidIMEI(t *testing.T) {
	cases := []struct {
		imei string
		want bool
	}{
		{"864200000000001", true},
		{"86420000000001", false},   // 14 digits
		{"8642000000000012", false}, // 16 digits
		{"86420000000000a", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidIMEI(tc.imei); got != tc.want {
			t.Errorf("ValidIMEI(%q) = %v, want %v", tc.imei, got, tc.want)
		}
	}
}
