package vda

import (
	"context"
	"sort"

	"github.com/cobaltgrove/vda/bitmask"
	"github.com/cobaltgrove/vda/devspec"
	"github.com/shimmeringbee/logwrap"
)

// virtualBitmaskStrategy expands bitmask-packed io ports into synthesized
// virtual-device entries and merges them with the spec's ordinary sections.
// On a key collision the ordinary section wins.
type virtualBitmaskStrategy struct {
	expander *bitmask.Expander
	logger   logwrap.Logger
}

func (s *virtualBitmaskStrategy) Name() string {
	return "virtual-bitmask"
}

func (s *virtualBitmaskStrategy) Priority() int {
	return 30
}

func (s *virtualBitmaskStrategy) CanHandle(spec *devspec.DeviceSpec, d Device) (bool, error) {
	return len(s.bitmaskPorts(spec, d)) > 0, nil
}

func (s *virtualBitmaskStrategy) Resolve(ctx context.Context, spec *devspec.DeviceSpec, d Device) (platformMapping, error) {
	mapping := make(platformMapping)

	for _, port := range s.bitmaskPorts(spec, d) {
		family, found := s.familyFor(spec, port)
		if !found {
			s.logger.LogWarn(ctx, "Bitmask port has no registered family.",
				logwrap.Datum("DeviceType", spec.Type),
				logwrap.Datum("IO", port))
			continue
		}

		descriptors, err := s.expander.Expand(family, port)
		if err != nil {
			return nil, err
		}

		detection := bitmask.DetectPerBit
		if c, found := s.expander.Family(family); found {
			detection = c.Detection
		}

		for _, vd := range descriptors {
			extraction := vd.Extraction

			section, found := mapping[vd.Platform]
			if !found {
				section = make(map[string]mappedIO)
				mapping[vd.Platform] = section
			}

			dataType := devspec.DataTypeBinary
			if extraction.BitStart != nil {
				dataType = devspec.DataTypeNumeric
				if len(extraction.EnumMap) > 0 {
					dataType = devspec.DataTypeEnum
				}
			}

			section[vd.Key] = mappedIO{
				Spec: devspec.IOSpec{
					Access:      devspec.AccessRead,
					DataType:    dataType,
					Conversion:  string(detection),
					DeviceClass: vd.DeviceClass,
					Extraction:  &extraction,
				},
				SourceIO:     port,
				Virtual:      true,
				FriendlyName: vd.FriendlyName,
			}
		}
	}

	// Ordinary sections overlay the synthesized entries, so an explicitly
	// declared io key always beats a virtual one.
	mergeMapping(mapping, mappingFromPlatformMap(s.nonBitmaskSections(spec)), true)

	return mapping, nil
}

// bitmaskPorts collects, sorted, every io port considered bitmask-packed:
// declared as such by the spec, covered by a named registered family, or
// runtime-tagged in telemetry.
func (s *virtualBitmaskStrategy) bitmaskPorts(spec *devspec.DeviceSpec, d Device) []string {
	ports := map[string]bool{}

	for _, section := range spec.Platforms {
		for ioName, io := range section {
			if io.DataType == devspec.DataTypeBitmask {
				ports[ioName] = true
			}
		}
	}

	for ioName, reading := range d.Telemetry {
		if reading.Bitmask() {
			ports[ioName] = true
			continue
		}

		if _, found := s.expander.MatchNamed(ioName); found {
			ports[ioName] = true
		}
	}

	out := make([]string, 0, len(ports))
	for p := range ports {
		out = append(out, p)
	}

	sort.Strings(out)
	return out
}

// familyFor picks the bitmask family for a port: an explicit spec override
// first, then pattern matching, named families before the catch-all.
func (s *virtualBitmaskStrategy) familyFor(spec *devspec.DeviceSpec, port string) (string, bool) {
	if spec.BitmaskType != "" {
		return spec.BitmaskType, true
	}

	if c, found := s.expander.Match(port); found {
		return c.Name, true
	}

	return "", false
}

// nonBitmaskSections strips bitmask-tagged io keys out of the declared
// sections before the merge.
func (s *virtualBitmaskStrategy) nonBitmaskSections(spec *devspec.DeviceSpec) devspec.PlatformMap {
	out := make(devspec.PlatformMap, len(spec.Platforms))

	for platform, section := range spec.Platforms {
		kept := make(devspec.PlatformSection)

		for ioName, io := range section {
			if io.DataType == devspec.DataTypeBitmask {
				continue
			}

			kept[ioName] = io
		}

		if len(kept) > 0 {
			out[platform] = kept
		}
	}

	return out
}
