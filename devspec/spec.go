// Package devspec holds the declarative per-device-type specifications and
// the registry that loads, validates and serves them.
package devspec

// Access describes the read/write permission of an I/O port.
type Access string

const (
	AccessRead      Access = "r"
	AccessWrite     Access = "w"
	AccessReadWrite Access = "rw"
)

func (a Access) Valid() bool {
	switch a {
	case AccessRead, AccessWrite, AccessReadWrite:
		return true
	default:
		return false
	}
}

func (a Access) Readable() bool {
	return a == AccessRead || a == AccessReadWrite
}

func (a Access) Writable() bool {
	return a == AccessWrite || a == AccessReadWrite
}

// Data type tags carried by IOSpec. The set is open ended; these cover the
// specs shipped with the engine.
const (
	DataTypeBinary  = "binary"
	DataTypeNumeric = "numeric"
	DataTypeEnum    = "enum"
	DataTypeBitmask = "bitmask"
	DataTypeRaw     = "raw"
)

// ExtractionParams direct a downstream collaborator in pulling a typed value
// out of a raw I/O integer: a single bit, a bit range, or a bit range mapped
// through an enum table.
type ExtractionParams struct {
	BitPos   *int             `yaml:"bit_pos,omitempty"`
	BitStart *int             `yaml:"bit_start,omitempty"`
	BitWidth *int             `yaml:"bit_width,omitempty"`
	EnumMap  map[int64]string `yaml:"enum_map,omitempty"`
}

// IOSpec describes one I/O port within a platform section.
type IOSpec struct {
	Access      Access            `yaml:"access"`
	DataType    string            `yaml:"data_type"`
	Conversion  string            `yaml:"conversion,omitempty"`
	DeviceClass string            `yaml:"device_class,omitempty"`
	Unit        string            `yaml:"unit,omitempty"`
	StateClass  string            `yaml:"state_class,omitempty"`
	Extraction  *ExtractionParams `yaml:"extraction,omitempty"`
}

// PlatformSection maps io-port name to its IOSpec.
type PlatformSection map[string]IOSpec

// PlatformMap maps platform name to its section.
type PlatformMap map[string]PlatformSection

// ModeDef is one runtime operating mode of a dynamic-mode device. Condition
// is a classification expression over live telemetry; modes are evaluated in
// declared order and the first true condition wins.
type ModeDef struct {
	Name      string      `yaml:"name"`
	Condition string      `yaml:"condition"`
	Platforms PlatformMap `yaml:"platforms"`
}

// DynamicSpec declares mode-dependent I/O layout. Fallback names the mode to
// assume when no condition can be decided; this mirrors observed vendor
// behaviour for devices that omit telemetry at startup.
type DynamicSpec struct {
	Modes    []ModeDef `yaml:"modes"`
	Fallback string    `yaml:"fallback,omitempty"`
}

// VersionMode is one named variant of a versioned device. Order is
// significant: the first declared variant is the terminal fallback.
type VersionMode struct {
	Version   string      `yaml:"version"`
	Platforms PlatformMap `yaml:"platforms"`
}

// DeviceSpec is the declarative description of one vendor device type.
type DeviceSpec struct {
	Type         string        `yaml:"type"`
	Name         string        `yaml:"name"`
	Manufacturer string        `yaml:"manufacturer,omitempty"`
	Model        string        `yaml:"model,omitempty"`
	Platforms    PlatformMap   `yaml:"platforms,omitempty"`
	Dynamic      *DynamicSpec  `yaml:"dynamic,omitempty"`
	VersionKey   string        `yaml:"version_key,omitempty"`
	VersionModes []VersionMode `yaml:"version_modes,omitempty"`
	BitmaskType  string        `yaml:"bitmask_type,omitempty"`
}

// HasBitmaskIO reports whether any declared io port is tagged as packing
// multiple sub-values into one integer.
func (s *DeviceSpec) HasBitmaskIO() bool {
	if s.BitmaskType != "" {
		return true
	}

	for _, section := range s.Platforms {
		for _, io := range section {
			if io.DataType == DataTypeBitmask {
				return true
			}
		}
	}

	return false
}

// FindVersionMode resolves a variant by exact version match, then the
// "default" key, then the first declared variant, in that order.
func (s *DeviceSpec) FindVersionMode(version string) (VersionMode, bool) {
	if len(s.VersionModes) == 0 {
		return VersionMode{}, false
	}

	for _, vm := range s.VersionModes {
		if vm.Version == version {
			return vm, true
		}
	}

	for _, vm := range s.VersionModes {
		if vm.Version == "default" {
			return vm, true
		}
	}

	return s.VersionModes[0], true
}

// FindMode returns the named dynamic mode.
func (s *DeviceSpec) FindMode(name string) (ModeDef, bool) {
	if s.Dynamic == nil {
		return ModeDef{}, false
	}

	for _, m := range s.Dynamic.Modes {
		if m.Name == name {
			return m, true
		}
	}

	return ModeDef{}, false
}
