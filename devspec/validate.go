package devspec

import (
	"fmt"

	"github.com/cobaltgrove/vda/expression"
)

// validateSpec records findings for one spec and reports whether it is
// structurally invalid. A spec missing canonical platform sections is run
// through the special-device pre-classifier first: recognised special forms
// (versioned, dynamic, bitmask, known types, descriptive names) are accepted
// as-is rather than treated as defects.
func (r *Registry) validateSpec(spec *DeviceSpec) ([]Problem, bool) {
	var problems []Problem
	invalid := false

	record := func(level ProblemLevel, format string, args ...any) {
		problems = append(problems, Problem{
			Level:      level,
			DeviceType: spec.Type,
			Message:    fmt.Sprintf(format, args...),
		})

		if level == ProblemError {
			invalid = true
		}
	}

	if spec.Name == "" {
		record(ProblemWarning, "spec has no display name")
	}

	if len(spec.Platforms) == 0 {
		class, rule := r.classifier.Classify(buildTraits(spec))
		if class == SpecialNone {
			record(ProblemError, "no platform sections and no recognised special form")
		} else {
			record(ProblemWarning, "no inherent platform sections; accepted as %s (%s)", class, rule)
		}
	}

	validatePlatformMap(spec.Platforms, record)

	if spec.Dynamic != nil {
		validateDynamic(spec.Dynamic, record)
	}

	if len(spec.VersionModes) > 0 {
		validateVersionModes(spec, record)
	}

	return problems, invalid
}

type recordFunc func(level ProblemLevel, format string, args ...any)

func validatePlatformMap(pm PlatformMap, record recordFunc) {
	for platform, section := range pm {
		if platform == "" {
			record(ProblemError, "platform section with empty name")
			continue
		}

		if len(section) == 0 {
			record(ProblemWarning, "platform %q declares no io ports", platform)
		}

		for ioName, io := range section {
			validateIOSpec(platform, ioName, io, record)
		}
	}
}

func validateIOSpec(platform string, ioName string, io IOSpec, record recordFunc) {
	if ioName == "" {
		record(ProblemError, "platform %q contains an io port with an empty name", platform)
		return
	}

	if !io.Access.Valid() {
		record(ProblemError, "io %s/%s has invalid access %q", platform, ioName, io.Access)
	}

	if io.DataType == "" {
		record(ProblemWarning, "io %s/%s has no data type tag", platform, ioName)
	}

	if io.Extraction != nil {
		validateExtraction(platform, ioName, io.Extraction, record)
	}
}

func validateExtraction(platform string, ioName string, e *ExtractionParams, record recordFunc) {
	if e.BitPos != nil && (*e.BitPos < 0 || *e.BitPos > 63) {
		record(ProblemError, "io %s/%s bit position %d out of range", platform, ioName, *e.BitPos)
	}

	if (e.BitStart == nil) != (e.BitWidth == nil) {
		record(ProblemError, "io %s/%s declares an incomplete bit range", platform, ioName)
		return
	}

	if e.BitStart != nil {
		if *e.BitStart < 0 || *e.BitStart > 63 {
			record(ProblemError, "io %s/%s bit range start %d out of range", platform, ioName, *e.BitStart)
		}

		if *e.BitWidth < 1 || *e.BitStart+*e.BitWidth > 64 {
			record(ProblemError, "io %s/%s bit range width %d out of range", platform, ioName, *e.BitWidth)
		}
	}

	if e.EnumMap != nil && len(e.EnumMap) == 0 {
		record(ProblemWarning, "io %s/%s declares an empty enum table", platform, ioName)
	}
}

func validateDynamic(d *DynamicSpec, record recordFunc) {
	if len(d.Modes) == 0 {
		record(ProblemError, "dynamic block declares no modes")
		return
	}

	seen := map[string]bool{}

	for _, m := range d.Modes {
		if m.Name == "" {
			record(ProblemError, "dynamic mode with empty name")
			continue
		}

		if seen[m.Name] {
			record(ProblemError, "duplicate dynamic mode %q", m.Name)
		}
		seen[m.Name] = true

		// A condition that does not parse is a spec defect caught at load
		// time, never during resolution.
		if _, err := expression.Parse(m.Condition); err != nil {
			record(ProblemError, "dynamic mode %q condition: %v", m.Name, err)
		}

		validatePlatformMap(m.Platforms, record)
	}

	if d.Fallback != "" && !seen[d.Fallback] {
		record(ProblemError, "dynamic fallback names unknown mode %q", d.Fallback)
	}
}

func validateVersionModes(spec *DeviceSpec, record recordFunc) {
	if spec.VersionKey == "" {
		record(ProblemWarning, "version_modes without version_key; variant selection always falls back")
	}

	seen := map[string]bool{}

	for _, vm := range spec.VersionModes {
		if vm.Version == "" {
			record(ProblemError, "version mode with empty version")
			continue
		}

		if seen[vm.Version] {
			record(ProblemError, "duplicate version mode %q", vm.Version)
		}
		seen[vm.Version] = true

		validatePlatformMap(vm.Platforms, record)
	}
}
