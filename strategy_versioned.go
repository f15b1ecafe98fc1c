package vda

import (
	"context"
	"strconv"

	"github.com/cobaltgrove/vda/devspec"
	"github.com/shimmeringbee/logwrap"
)

// versionedStrategy resolves one of a spec's named variant configurations:
// exact version match first, then the "default" key, then the first
// declared variant.
type versionedStrategy struct {
	logger logwrap.Logger
}

func (s *versionedStrategy) Name() string {
	return "versioned"
}

func (s *versionedStrategy) Priority() int {
	return 20
}

func (s *versionedStrategy) CanHandle(spec *devspec.DeviceSpec, _ Device) (bool, error) {
	return len(spec.VersionModes) > 0, nil
}

func (s *versionedStrategy) Resolve(ctx context.Context, spec *devspec.DeviceSpec, d Device) (platformMapping, error) {
	version := s.deviceVersion(spec, d)

	vm, _ := spec.FindVersionMode(version)
	s.logger.LogDebug(ctx, "Resolved versioned variant.",
		logwrap.Datum("DeviceType", spec.Type),
		logwrap.Datum("RequestedVersion", version),
		logwrap.Datum("Variant", vm.Version))

	mapping := mappingFromPlatformMap(spec.Platforms)
	mergeMapping(mapping, mappingFromPlatformMap(vm.Platforms), true)

	return mapping, nil
}

// deviceVersion reads the variant selector from the io port the spec names.
// An absent key or reading yields an empty version, which falls through to
// the default variant.
func (s *versionedStrategy) deviceVersion(spec *devspec.DeviceSpec, d Device) string {
	if spec.VersionKey == "" {
		return ""
	}

	iv, found := d.Telemetry[spec.VersionKey]
	if !found {
		return ""
	}

	return strconv.FormatInt(iv.Val, 10)
}
