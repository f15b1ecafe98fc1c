package vda

import (
	"context"
	"testing"

	"github.com/cobaltgrove/vda/devspec"
	"github.com/stretchr/testify/assert"
)

func versionedSpec() *devspec.DeviceSpec {
	return &devspec.DeviceSpec{
		Type:       "SL_TH",
		VersionKey: "VER",
		Platforms: devspec.PlatformMap{
			"sensor": {
				"T": {Access: devspec.AccessRead, DataType: devspec.DataTypeNumeric, DeviceClass: "temperature"},
			},
		},
		VersionModes: []devspec.VersionMode{
			{
				Version: "2",
				Platforms: devspec.PlatformMap{
					"sensor": {
						"H": {Access: devspec.AccessRead, DataType: devspec.DataTypeNumeric, DeviceClass: "humidity"},
					},
				},
			},
			{
				Version: "default",
				Platforms: devspec.PlatformMap{
					"sensor": {
						"T": {Access: devspec.AccessRead, DataType: devspec.DataTypeNumeric, DeviceClass: "temperature", Unit: "°F"},
					},
				},
			},
		},
	}
}

func TestVersionedStrategy(t *testing.T) {
	s := &versionedStrategy{logger: discardLogger()}

	t.Run("matches only specs with declared variants", func(t *testing.T) {
		matched, err := s.CanHandle(versionedSpec(), Device{})
		assert.NoError(t, err)
		assert.True(t, matched)

		matched, err = s.CanHandle(&devspec.DeviceSpec{Type: "SL_SW_IF1"}, Device{})
		assert.NoError(t, err)
		assert.False(t, matched)
	})

	t.Run("exact version match selects its variant", func(t *testing.T) {
		d := Device{Telemetry: map[string]IOValue{"VER": {Val: 2}}}

		mapping, err := s.Resolve(context.Background(), versionedSpec(), d)
		assert.NoError(t, err)
		assert.Contains(t, mapping["sensor"], "H")
		assert.Contains(t, mapping["sensor"], "T")
	})

	t.Run("absent version telemetry falls through to the default variant", func(t *testing.T) {
		d := Device{Telemetry: map[string]IOValue{}}

		mapping, err := s.Resolve(context.Background(), versionedSpec(), d)
		assert.NoError(t, err)
		assert.NotContains(t, mapping["sensor"], "H")
		assert.Equal(t, "°F", mapping["sensor"]["T"].Spec.Unit)
	})

	t.Run("unknown version without a default variant uses the first declared", func(t *testing.T) {
		spec := versionedSpec()
		spec.VersionModes = spec.VersionModes[:1]

		d := Device{Telemetry: map[string]IOValue{"VER": {Val: 99}}}

		mapping, err := s.Resolve(context.Background(), spec, d)
		assert.NoError(t, err)
		assert.Contains(t, mapping["sensor"], "H")
	})

	t.Run("variant sections overlay the inherent sections", func(t *testing.T) {
		d := Device{Telemetry: map[string]IOValue{"VER": {Val: 7}}}

		mapping, err := s.Resolve(context.Background(), versionedSpec(), d)
		assert.NoError(t, err)
		assert.Equal(t, "°F", mapping["sensor"]["T"].Spec.Unit)
	})
}
