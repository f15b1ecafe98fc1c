package vda

import (
	"testing"

	"github.com/cobaltgrove/vda/devspec"
	"github.com/stretchr/testify/assert"
)

func TestBuildConfigSupport(t *testing.T) {
	spec := &devspec.DeviceSpec{Type: "SL_SW_IF2", Name: "Dual Switch"}

	mapping := platformMapping{
		"switch": {
			"L1": {Spec: devspec.IOSpec{Access: devspec.AccessReadWrite}, SourceIO: "L1"},
			"L2": {Spec: devspec.IOSpec{Access: devspec.AccessReadWrite}, SourceIO: "L2"},
		},
		"sensor": {
			"P4": {Spec: devspec.IOSpec{Access: devspec.AccessRead}, SourceIO: "P4"},
		},
	}

	t.Run("full support when every source port reports telemetry", func(t *testing.T) {
		d := Device{Telemetry: map[string]IOValue{
			"L1": {Val: 1}, "L2": {Val: 0}, "P4": {Val: 12},
		}}

		config := buildConfig(spec, d, mapping)

		sw, _ := config.GetPlatformConfig("switch")
		assert.Equal(t, SupportFull, sw.Support)

		sensor, _ := config.GetPlatformConfig("sensor")
		assert.Equal(t, SupportFull, sensor.Support)
	})

	t.Run("partial support when only some source ports report", func(t *testing.T) {
		d := Device{Telemetry: map[string]IOValue{"L1": {Val: 1}}}

		config := buildConfig(spec, d, mapping)

		sw, _ := config.GetPlatformConfig("switch")
		assert.Equal(t, SupportPartial, sw.Support)

		sensor, _ := config.GetPlatformConfig("sensor")
		assert.Equal(t, SupportNone, sensor.Support)
	})

	t.Run("supported platforms lists every platform above none, sorted", func(t *testing.T) {
		d := Device{Telemetry: map[string]IOValue{"L1": {Val: 1}, "P4": {Val: 12}}}

		config := buildConfig(spec, d, mapping)
		assert.Equal(t, []string{"sensor", "switch"}, config.GetSupportedPlatforms())
	})

	t.Run("virtual entries count telemetry presence of their source port", func(t *testing.T) {
		virtual := platformMapping{
			"binary_sensor": {
				"ALM_tamper":      {Spec: devspec.IOSpec{Access: devspec.AccessRead}, SourceIO: "ALM", Virtual: true},
				"ALM_low_battery": {Spec: devspec.IOSpec{Access: devspec.AccessRead}, SourceIO: "ALM", Virtual: true},
			},
		}

		d := Device{Telemetry: map[string]IOValue{"ALM": {Val: 2}}}

		config := buildConfig(spec, d, virtual)

		bs, _ := config.GetPlatformConfig("binary_sensor")
		assert.Equal(t, SupportFull, bs.Support)
	})

	t.Run("device name falls back to the type when the spec has none", func(t *testing.T) {
		unnamed := &devspec.DeviceSpec{Type: "SL_SW_IF2"}
		config := buildConfig(unnamed, Device{}, platformMapping{})
		assert.Equal(t, "SL_SW_IF2", config.Name)
	})
}

func TestResolvedDeviceConfigAccessors(t *testing.T) {
	config := &ResolvedDeviceConfig{
		Platforms: map[string]PlatformConfig{
			"switch": {
				Platform: "switch",
				Support:  SupportFull,
				IO: map[string]IOConfig{
					"L1": {Key: "L1", Platform: "switch"},
				},
			},
		},
	}

	t.Run("known platform and io are found", func(t *testing.T) {
		pc, found := config.GetPlatformConfig("switch")
		assert.True(t, found)
		assert.Equal(t, "switch", pc.Platform)

		io, found := config.GetIOConfig("switch", "L1")
		assert.True(t, found)
		assert.Equal(t, "L1", io.Key)
	})

	t.Run("unknown platform or io is not found", func(t *testing.T) {
		_, found := config.GetPlatformConfig("light")
		assert.False(t, found)

		_, found = config.GetIOConfig("switch", "L9")
		assert.False(t, found)

		_, found = config.GetIOConfig("light", "L1")
		assert.False(t, found)
	})
}

func TestPrimaryPlatform(t *testing.T) {
	pc := func(support SupportLevel, ios int) PlatformConfig {
		io := make(map[string]IOConfig, ios)
		for i := 0; i < ios; i++ {
			io[string(rune('a'+i))] = IOConfig{}
		}
		return PlatformConfig{Support: support, IO: io}
	}

	t.Run("preferred supported platform wins over a busier unpreferred one", func(t *testing.T) {
		platforms := map[string]PlatformConfig{
			"switch":        pc(SupportFull, 1),
			"binary_sensor": pc(SupportFull, 5),
		}

		assert.Equal(t, "switch", primaryPlatform(platforms))
	})

	t.Run("preference order applies among supported platforms", func(t *testing.T) {
		platforms := map[string]PlatformConfig{
			"sensor": pc(SupportFull, 1),
			"lock":   pc(SupportPartial, 1),
		}

		assert.Equal(t, "lock", primaryPlatform(platforms))
	})

	t.Run("unsupported preferred platforms are passed over", func(t *testing.T) {
		platforms := map[string]PlatformConfig{
			"switch": pc(SupportNone, 1),
			"sensor": pc(SupportFull, 1),
		}

		assert.Equal(t, "sensor", primaryPlatform(platforms))
	})

	t.Run("nothing supported falls back to the busiest platform by name", func(t *testing.T) {
		platforms := map[string]PlatformConfig{
			"fan":    pc(SupportNone, 2),
			"siren":  pc(SupportNone, 2),
			"camera": pc(SupportNone, 1),
		}

		assert.Equal(t, "fan", primaryPlatform(platforms))
	})

	t.Run("no platforms yields an empty primary", func(t *testing.T) {
		assert.Equal(t, "", primaryPlatform(nil))
	})
}
