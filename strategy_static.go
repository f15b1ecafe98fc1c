package vda

import (
	"context"

	"github.com/cobaltgrove/vda/devspec"
	"github.com/shimmeringbee/logwrap"
)

// staticStrategy is the terminal fallback: it always matches and passes the
// declared platform sections through, skipping entries that would not
// survive typed conversion. Every device resolves to something, even if
// that something is empty.
type staticStrategy struct {
	logger logwrap.Logger
}

func (s *staticStrategy) Name() string {
	return "static"
}

func (s *staticStrategy) Priority() int {
	return 100
}

func (s *staticStrategy) CanHandle(_ *devspec.DeviceSpec, _ Device) (bool, error) {
	return true, nil
}

func (s *staticStrategy) Resolve(ctx context.Context, spec *devspec.DeviceSpec, _ Device) (platformMapping, error) {
	mapping := make(platformMapping)

	for platform, section := range spec.Platforms {
		if platform == "" {
			continue
		}

		entries := make(map[string]mappedIO)

		for ioName, io := range section {
			if ioName == "" || !io.Access.Valid() {
				s.logger.LogWarn(ctx, "Skipping malformed io entry in static pass-through.",
					logwrap.Datum("DeviceType", spec.Type),
					logwrap.Datum("Platform", platform),
					logwrap.Datum("IO", ioName))
				continue
			}

			entries[ioName] = mappedIO{
				Spec:     io,
				SourceIO: ioName,
			}
		}

		mapping[platform] = entries
	}

	return mapping, nil
}
