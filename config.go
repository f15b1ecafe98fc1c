package vda

import (
	"sort"

	"github.com/cobaltgrove/vda/devspec"
)

// SupportLevel grades how much of a platform's declared io surface the
// device's current telemetry actually covers.
type SupportLevel int

const (
	SupportNone SupportLevel = iota
	SupportPartial
	SupportFull
)

func (s SupportLevel) String() string {
	switch s {
	case SupportFull:
		return "full"
	case SupportPartial:
		return "partial"
	default:
		return "none"
	}
}

// IOConfig is the typed, read/write-annotated mapping of one io key within
// a platform. Virtual entries are synthesized from a bitmask port and carry
// the source port they extract from.
type IOConfig struct {
	Key          string
	Platform     string
	Access       devspec.Access
	DataType     string
	Conversion   string
	DeviceClass  string
	Unit         string
	StateClass   string
	Extraction   *devspec.ExtractionParams
	SourceIO     string
	Virtual      bool
	FriendlyName string
}

// PlatformConfig is one platform's io mapping plus its computed support
// level.
type PlatformConfig struct {
	Platform string
	IO       map[string]IOConfig
	Support  SupportLevel
}

// ResolvedDeviceConfig is the immutable output of a resolution.
type ResolvedDeviceConfig struct {
	DeviceType      string
	Name            string
	Manufacturer    string
	Model           string
	Platforms       map[string]PlatformConfig
	PrimaryPlatform string
}

// GetPlatformConfig returns the named platform's configuration.
func (c *ResolvedDeviceConfig) GetPlatformConfig(platform string) (PlatformConfig, bool) {
	pc, found := c.Platforms[platform]
	return pc, found
}

// GetIOConfig returns one io key's configuration within a platform.
func (c *ResolvedDeviceConfig) GetIOConfig(platform string, io string) (IOConfig, bool) {
	pc, found := c.Platforms[platform]
	if !found {
		return IOConfig{}, false
	}

	ioc, found := pc.IO[io]
	return ioc, found
}

// GetSupportedPlatforms returns the sorted names of every platform with at
// least partial telemetry support.
func (c *ResolvedDeviceConfig) GetSupportedPlatforms() []string {
	var platforms []string

	for name, pc := range c.Platforms {
		if pc.Support != SupportNone {
			platforms = append(platforms, name)
		}
	}

	sort.Strings(platforms)
	return platforms
}

// platformPreference orders the primary-platform heuristic: the first
// supported entry wins; platforms outside the list are considered last by
// io count, then name.
var platformPreference = []string{
	"switch",
	"light",
	"cover",
	"climate",
	"lock",
	"sensor",
	"binary_sensor",
}

func primaryPlatform(platforms map[string]PlatformConfig) string {
	if len(platforms) == 0 {
		return ""
	}

	supported := func(pc PlatformConfig) bool {
		return pc.Support != SupportNone
	}

	for _, name := range platformPreference {
		if pc, found := platforms[name]; found && supported(pc) {
			return name
		}
	}

	// Nothing preferred is supported; fall back to the busiest platform,
	// deterministically.
	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		ci, cj := len(platforms[names[i]].IO), len(platforms[names[j]].IO)
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})

	return names[0]
}
