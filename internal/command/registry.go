package command

import "maps"

// Definition is the firmware contract for one command kind.
type Definition struct {
	Name       string
	Payload    map[string]any
	QoS        byte
	ExpectsAck bool
	Validate   func(params map[string]any) *ValidationError
}

// Registry is the static command table. Read-only after Default() and
// safe for unsynchronized concurrent reads.
type Registry struct {
	defs map[string]Definition
}

func (r *Registry) Lookup(name string) (Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	return names
}

// PayloadTemplate returns a copy of the command's template so callers
// can merge params without mutating the registry.
func (d Definition) PayloadTemplate() map[string]any {
	tpl := make(map[string]any, len(d.Payload))
	maps.Copy(tpl, d.Payload)
	return tpl
}

// Default builds the command table. QoS 2 commands change device state
// and expect an acknowledgment uplink; QoS 0 queries are fire-and-forget.
func Default() *Registry {
	defs := map[string]Definition{
		"STOP_SOS": {
			Payload: map[string]any{"SOS": "Stop_SOS"},
			QoS:     2,
		},

		"QUERY_NORMAL": {
			Payload: map[string]any{"Query": "NormalPacket"},
			QoS:     0,
		},
		"QUERY_DEVICE_SETTINGS": {
			Payload: map[string]any{"Query": "DeviceSettings"},
			QoS:     0,
		},

		"SET_GEOFENCE": {
			Payload:  map[string]any{},
			QoS:      2,
			Validate: validateGeofence,
		},

		"SET_CONTACTS": {
			Payload:  map[string]any{},
			QoS:      2,
			Validate: validateContacts,
		},

		"DEVICE_SETTINGS": {
			Payload:  map[string]any{},
			QoS:      2,
			Validate: validateDeviceSettings,
		},

		"CALL_ENABLE": {
			Payload: map[string]any{"Call": "Enable"},
			QoS:     2,
		},
		"CALL_DISABLE": {
			Payload: map[string]any{"Call": "Disable"},
			QoS:     2,
		},

		"LED_ON": {
			Payload: map[string]any{"LED": "SwitchOnLed"},
			QoS:     2,
		},
		"LED_OFF": {
			Payload: map[string]any{"LED": "SwitchoffLed"},
			QoS:     2,
		},

		"AMBIENT_ENABLE": {
			Payload: map[string]any{"AmbientListen": "Enable"},
			QoS:     2,
		},
		"AMBIENT_DISABLE": {
			Payload: map[string]any{"AmbientListen": "Disable"},
			QoS:     2,
		},
		"AMBIENT_STOP": {
			Payload: map[string]any{"AmbientListen": "Stop"},
			QoS:     2,
		},

		"AIRPLANE_ENABLE": {
			Payload: map[string]any{"AirplaneMode": "enable"},
			QoS:     2,
		},

		"GPS_DISABLE": {
			Payload: map[string]any{"NormalSendingInterval": "0"},
			QoS:     2,
		},

		"FOTA_UPDATE": {
			Payload:  map[string]any{},
			QoS:      2,
			Validate: validateFota,
		},
	}

	for name, def := range defs {
		def.Name = name
		def.ExpectsAck = def.QoS > 0
		defs[name] = def
	}

	return &Registry{defs: defs}
}
