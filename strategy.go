package vda

import (
	"context"
	"sort"

	"github.com/cobaltgrove/vda/devspec"
	"github.com/shimmeringbee/logwrap"
)

// mappedIO is one raw mapping entry produced by a strategy, before typed
// conversion. SourceIO names the physical port the value comes from; for
// ordinary entries it equals the io key.
type mappedIO struct {
	Spec         devspec.IOSpec
	SourceIO     string
	Virtual      bool
	FriendlyName string
}

// platformMapping is a strategy's raw output: platform → io key → entry.
type platformMapping map[string]map[string]mappedIO

// mappingStrategy is one member of the priority-ordered chain. Lower
// priority wins. CanHandle must be side-effect free; an error from it is
// isolated by the chain, never fatal.
type mappingStrategy interface {
	Name() string
	Priority() int
	CanHandle(spec *devspec.DeviceSpec, d Device) (bool, error)
	Resolve(ctx context.Context, spec *devspec.DeviceSpec, d Device) (platformMapping, error)
}

// strategyChain holds the strategies sorted ascending by priority at
// construction; selection walks them in order and returns the first match.
type strategyChain struct {
	logger     logwrap.Logger
	strategies []mappingStrategy
}

func newStrategyChain(logger logwrap.Logger, strategies ...mappingStrategy) *strategyChain {
	sorted := make([]mappingStrategy, len(strategies))
	copy(sorted, strategies)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	return &strategyChain{
		logger:     logger,
		strategies: sorted,
	}
}

// selectStrategy returns the first strategy whose predicate matches. A
// predicate that errors is logged and skipped so a single defective
// strategy can never abort the scan.
func (c *strategyChain) selectStrategy(ctx context.Context, spec *devspec.DeviceSpec, d Device) (mappingStrategy, error) {
	for _, s := range c.strategies {
		matched, err := s.CanHandle(spec, d)
		if err != nil {
			c.logger.LogWarn(ctx, "Strategy predicate failed; continuing scan.",
				logwrap.Datum("Strategy", s.Name()),
				logwrap.Datum("DeviceType", spec.Type),
				logwrap.Err(err))
			continue
		}

		if matched {
			return s, nil
		}
	}

	return nil, ErrNoStrategyMatched
}

// mergeMapping overlays src onto dst. When overlayWins is false an existing
// dst entry survives a key collision.
func mergeMapping(dst platformMapping, src platformMapping, overlayWins bool) {
	for platform, section := range src {
		existing, found := dst[platform]
		if !found {
			existing = make(map[string]mappedIO, len(section))
			dst[platform] = existing
		}

		for key, entry := range section {
			if _, collision := existing[key]; collision && !overlayWins {
				continue
			}

			existing[key] = entry
		}
	}
}

// mappingFromPlatformMap lifts declared spec sections into a raw mapping.
func mappingFromPlatformMap(pm devspec.PlatformMap) platformMapping {
	mapping := make(platformMapping, len(pm))

	for platform, section := range pm {
		entries := make(map[string]mappedIO, len(section))

		for ioName, io := range section {
			entries[ioName] = mappedIO{
				Spec:     io,
				SourceIO: ioName,
			}
		}

		mapping[platform] = entries
	}

	return mapping
}
