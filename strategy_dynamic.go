package vda

import (
	"context"
	"fmt"

	"github.com/cobaltgrove/vda/devspec"
	"github.com/cobaltgrove/vda/expression"
	"github.com/shimmeringbee/logwrap"
)

// dynamicModeStrategy classifies a device's active operating mode from live
// telemetry and merges that mode's io layout over the spec's inherent
// sections. Highest priority: a spec that declares modes means them.
type dynamicModeStrategy struct {
	evaluator *expression.Evaluator
	logger    logwrap.Logger
}

func (s *dynamicModeStrategy) Name() string {
	return "dynamic-mode"
}

func (s *dynamicModeStrategy) Priority() int {
	return 10
}

func (s *dynamicModeStrategy) CanHandle(spec *devspec.DeviceSpec, _ Device) (bool, error) {
	return spec.Dynamic != nil && len(spec.Dynamic.Modes) > 0, nil
}

func (s *dynamicModeStrategy) Resolve(ctx context.Context, spec *devspec.DeviceSpec, d Device) (platformMapping, error) {
	mode, err := s.classify(ctx, spec, d)
	if err != nil {
		return nil, err
	}

	s.logger.LogDebug(ctx, "Classified dynamic mode.",
		logwrap.Datum("DeviceType", spec.Type),
		logwrap.Datum("Mode", mode.Name))

	mapping := mappingFromPlatformMap(spec.Platforms)
	mergeMapping(mapping, mappingFromPlatformMap(mode.Platforms), true)

	return mapping, nil
}

// classify evaluates mode conditions in declared order and picks the first
// that holds. A mode whose referenced telemetry is absent is skipped rather
// than evaluated; if nothing matches, the spec's declared fallback mode is
// assumed. The fallback mirrors observed vendor behaviour for devices that
// report no telemetry at startup and is intentionally preserved as-is.
func (s *dynamicModeStrategy) classify(ctx context.Context, spec *devspec.DeviceSpec, d Device) (devspec.ModeDef, error) {
	vars := d.vars()

	for _, mode := range spec.Dynamic.Modes {
		refs, err := s.evaluator.ReferencedVariables(mode.Condition)
		if err != nil {
			// A condition that does not parse is a spec defect; fail closed
			// rather than guessing a mode.
			return devspec.ModeDef{}, fmt.Errorf("mode %q condition: %w", mode.Name, err)
		}

		if missing := missingVariables(refs, vars); len(missing) > 0 {
			s.logger.LogDebug(ctx, "Skipping mode with absent telemetry.",
				logwrap.Datum("Mode", mode.Name),
				logwrap.Datum("Missing", missing))
			continue
		}

		matched, err := s.evaluator.EvaluateBool(mode.Condition, vars)
		if err != nil {
			return devspec.ModeDef{}, fmt.Errorf("mode %q condition: %w", mode.Name, err)
		}

		if matched {
			return mode, nil
		}
	}

	if spec.Dynamic.Fallback != "" {
		if mode, found := spec.FindMode(spec.Dynamic.Fallback); found {
			s.logger.LogDebug(ctx, "No mode condition held; assuming fallback mode.",
				logwrap.Datum("DeviceType", spec.Type),
				logwrap.Datum("Mode", mode.Name))
			return mode, nil
		}
	}

	return devspec.ModeDef{}, fmt.Errorf("no dynamic mode matched and no fallback declared for %s", spec.Type)
}

func missingVariables(refs []string, vars map[string]int64) []string {
	var missing []string

	for _, name := range refs {
		if _, found := vars[name]; !found {
			missing = append(missing, name)
		}
	}

	return missing
}
