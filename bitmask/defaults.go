package bitmask

// DefaultConfigs returns the built-in bitmask families. Named families are
// registered alongside a generic catch-all; Expander ordering guarantees
// the named families are always consulted first.
func DefaultConfigs() []Config {
	return []Config{
		{
			Name:      "alarm",
			Pattern:   "ALM*",
			Platforms: []string{"binary_sensor"},
			Detection: DetectPerBit,
			Bits: map[int]BitDef{
				0:  {Name: "low_battery", DeviceClass: "battery"},
				1:  {Name: "tamper", DeviceClass: "tamper"},
				2:  {Name: "sensor_fault", DeviceClass: "problem"},
				3:  {Name: "mains_lost", DeviceClass: "power"},
				5:  {Name: "intrusion", DeviceClass: "safety"},
				7:  {Name: "overheat", DeviceClass: "heat"},
				11: {Name: "forced_open", DeviceClass: "door"},
			},
		},
		{
			Name:      "lock_event",
			Pattern:   "EVTLO",
			Platforms: []string{"sensor", "binary_sensor"},
			Detection: DetectPerField,
			Fields: []FieldDef{
				{
					Name:  "unlock_user",
					Start: 0,
					Width: 12,
				},
				{
					Name:  "unlock_method",
					Start: 12,
					Width: 4,
					EnumMap: map[int64]string{
						0: "none",
						1: "password",
						2: "fingerprint",
						3: "card",
						4: "key",
						5: "remote",
					},
				},
				{
					Name:        "unlock_success",
					Platform:    "binary_sensor",
					DeviceClass: "lock",
					Start:       16,
					Width:       1,
				},
			},
		},
		{
			Name:      "generic_flags",
			Pattern:   "*",
			Platforms: []string{"binary_sensor"},
			Detection: DetectPerBit,
			Bits: map[int]BitDef{
				0: {Name: "flag0"},
				1: {Name: "flag1"},
				2: {Name: "flag2"},
				3: {Name: "flag3"},
				4: {Name: "flag4"},
				5: {Name: "flag5"},
				6: {Name: "flag6"},
				7: {Name: "flag7"},
			},
		},
	}
}
