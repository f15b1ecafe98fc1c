package devspec

import (
	"strings"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
)

// SpecialClass identifies why a spec that is missing canonical fields is
// still acceptable. SpecialNone means the spec has no recognised special
// form and must satisfy full validation.
type SpecialClass string

const (
	SpecialNone        SpecialClass = ""
	SpecialVersioned   SpecialClass = "versioned"
	SpecialDynamic     SpecialClass = "dynamic"
	SpecialBitmask     SpecialClass = "bitmask"
	SpecialKnownType   SpecialClass = "known-type"
	SpecialDescriptive SpecialClass = "descriptive"
)

// SpecTraits is the structural summary of a spec that the pre-classifier
// rules are evaluated against.
type SpecTraits struct {
	Type             string
	Name             string
	PlatformCount    int
	IOCount          int
	HasDynamic       bool
	HasVersionModes  bool
	HasBitmask       bool
	ModeSuffixedKeys bool
}

type classifierRule struct {
	Description string
	Filter      string
	Class       SpecialClass
}

// Rules run in order; the first filter that evaluates true decides the
// class. Filters are ordinary expr programs over SpecTraits.
var classifierRules = []classifierRule{
	{
		Description: "versioned multi-variant device",
		Filter:      `HasVersionModes`,
		Class:       SpecialVersioned,
	},
	{
		Description: "dynamic-mode device with mode-suffixed io keys",
		Filter:      `HasDynamic and ModeSuffixedKeys`,
		Class:       SpecialDynamic,
	},
	{
		Description: "dynamic-mode device",
		Filter:      `HasDynamic`,
		Class:       SpecialDynamic,
	},
	{
		Description: "bitmask-packed device",
		Filter:      `HasBitmask`,
		Class:       SpecialBitmask,
	},
	{
		Description: "known special device type",
		Filter:      `Type in ["SL_NATURE", "SL_P", "SL_JEMA"]`,
		Class:       SpecialKnownType,
	},
	{
		Description: "descriptive special device name",
		Filter:      `Name contains "Controller" or Name contains "Panel"`,
		Class:       SpecialDescriptive,
	},
}

type compiledClassifierRule struct {
	description string
	program     *vm.Program
	class       SpecialClass
}

type specClassifier struct {
	rules []compiledClassifierRule
}

func newSpecClassifier() (*specClassifier, error) {
	c := &specClassifier{}

	for _, r := range classifierRules {
		p, err := expr.Compile(r.Filter, expr.Env(SpecTraits{}), expr.AsBool())
		if err != nil {
			return nil, err
		}

		c.rules = append(c.rules, compiledClassifierRule{
			description: r.Description,
			program:     p,
			class:       r.Class,
		})
	}

	return c, nil
}

// Classify returns the first matching special class and the description of
// the rule that matched. A rule that fails at runtime is skipped, never
// fatal, matching the error isolation of the strategy chain.
func (c *specClassifier) Classify(t SpecTraits) (SpecialClass, string) {
	for _, r := range c.rules {
		out, err := expr.Run(r.program, t)
		if err != nil {
			continue
		}

		if matched, ok := out.(bool); ok && matched {
			return r.class, r.description
		}
	}

	return SpecialNone, ""
}

func buildTraits(s *DeviceSpec) SpecTraits {
	t := SpecTraits{
		Type:            s.Type,
		Name:            s.Name,
		PlatformCount:   len(s.Platforms),
		HasDynamic:      s.Dynamic != nil && len(s.Dynamic.Modes) > 0,
		HasVersionModes: len(s.VersionModes) > 0,
		HasBitmask:      s.HasBitmaskIO(),
	}

	for _, section := range s.Platforms {
		t.IOCount += len(section)
	}

	if s.Dynamic != nil {
		for _, section := range s.Platforms {
			for key := range section {
				for _, m := range s.Dynamic.Modes {
					if strings.HasSuffix(key, "_"+m.Name) {
						t.ModeSuffixedKeys = true
					}
				}
			}
		}
	}

	return t
}
