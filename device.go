// Package vda resolves a vendor device's declared type and live telemetry
// into a typed, platform-broken-down configuration. The Resolver façade
// orchestrates spec lookup, strategy selection, mapping and caching; the
// expression, devspec and bitmask packages supply the moving parts.
package vda

// IOValue is one live telemetry reading for a named I/O port: the vendor
// type tag, the raw integer value, and optionally a derived floating value
// with its timestamp.
type IOValue struct {
	Type  int
	Val   int64
	V     float64
	ValTS int64
}

// TelemetryTypeBitmask is the vendor type-tag flag marking a port whose
// integer packs independent sub-values, when the spec does not already say
// so.
const TelemetryTypeBitmask = 0x20

// Bitmask reports whether the reading is runtime-tagged as bitmask-packed.
func (v IOValue) Bitmask() bool {
	return v.Type&TelemetryTypeBitmask != 0
}

// Device is the raw descriptor the resolver accepts: identity fields plus
// the current telemetry snapshot keyed by io-port name.
type Device struct {
	Type      string
	ID        string
	HubID     string
	Telemetry map[string]IOValue
}

func (d Device) validate() error {
	if d.Type == "" {
		return &InvalidInputError{Field: "Type", Reason: "empty device type"}
	}

	if d.ID == "" {
		return &InvalidInputError{Field: "ID", Reason: "empty device id"}
	}

	if d.HubID == "" {
		return &InvalidInputError{Field: "HubID", Reason: "empty hub id"}
	}

	return nil
}

// vars exposes the telemetry snapshot to the expression evaluator as named
// integer variables.
func (d Device) vars() map[string]int64 {
	vars := make(map[string]int64, len(d.Telemetry))

	for name, v := range d.Telemetry {
		vars[name] = v.Val
	}

	return vars
}
