// Package bitmask decodes bitmask-packed I/O ports into synthesized virtual
// device entries, using precomputed per-family tables.
package bitmask

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cobaltgrove/vda/devspec"
)

// DetectionMode selects how a family's table is interpreted: one virtual
// device per flag bit, or one per multi-bit field.
type DetectionMode string

const (
	DetectPerBit   DetectionMode = "per-bit"
	DetectPerField DetectionMode = "per-field"
)

// BitDef describes one flag bit of a per-bit family.
type BitDef struct {
	Name        string `yaml:"name"`
	Platform    string `yaml:"platform,omitempty"`
	DeviceClass string `yaml:"device_class,omitempty"`
}

// FieldDef describes one multi-bit field of a per-field family.
type FieldDef struct {
	Name        string           `yaml:"name"`
	Platform    string           `yaml:"platform,omitempty"`
	DeviceClass string           `yaml:"device_class,omitempty"`
	Start       int              `yaml:"start"`
	Width       int              `yaml:"width"`
	EnumMap     map[int64]string `yaml:"enum_map,omitempty"`
}

// Config declares one bitmask family: which io port names it covers, which
// platforms its virtual devices prefer, and its per-bit or per-field table.
type Config struct {
	Name        string         `yaml:"name"`
	Pattern     string         `yaml:"pattern"`
	Platforms   []string       `yaml:"platforms"`
	Detection   DetectionMode  `yaml:"detection"`
	KeyTemplate string         `yaml:"key_template,omitempty"`
	Bits        map[int]BitDef `yaml:"bits,omitempty"`
	Fields      []FieldDef     `yaml:"fields,omitempty"`
}

// DefaultKeyTemplate names a virtual device after its source port and table
// entry. Supported tokens: {io}, {name}, {index}.
const DefaultKeyTemplate = "{io}_{name}"

func (c *Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("bitmask config with empty family name")
	}

	if c.Pattern == "" {
		return fmt.Errorf("bitmask family %s: empty io pattern", c.Name)
	}

	if len(c.Platforms) == 0 {
		return fmt.Errorf("bitmask family %s: empty platform priority list", c.Name)
	}

	switch c.Detection {
	case DetectPerBit:
		if len(c.Bits) == 0 {
			return fmt.Errorf("bitmask family %s: per-bit detection without a bit table", c.Name)
		}

		for pos, def := range c.Bits {
			if pos < 0 || pos > 63 {
				return fmt.Errorf("bitmask family %s: bit position %d out of range", c.Name, pos)
			}
			if def.Name == "" {
				return fmt.Errorf("bitmask family %s: bit %d has no name", c.Name, pos)
			}
		}

	case DetectPerField:
		if len(c.Fields) == 0 {
			return fmt.Errorf("bitmask family %s: per-field detection without a field table", c.Name)
		}

		seen := map[string]bool{}
		for _, f := range c.Fields {
			if f.Name == "" {
				return fmt.Errorf("bitmask family %s: field with no name", c.Name)
			}
			if seen[f.Name] {
				return fmt.Errorf("bitmask family %s: duplicate field %q", c.Name, f.Name)
			}
			seen[f.Name] = true

			if f.Start < 0 || f.Start > 63 || f.Width < 1 || f.Start+f.Width > 64 {
				return fmt.Errorf("bitmask family %s: field %q range out of bounds", c.Name, f.Name)
			}
		}

	default:
		return fmt.Errorf("bitmask family %s: unknown detection mode %q", c.Name, c.Detection)
	}

	return nil
}

// matches reports whether the family covers the named io port. Patterns are
// an exact name, a "prefix*" wildcard, or the generic catch-all "*".
func (c *Config) matches(ioName string) bool {
	if c.Pattern == "*" {
		return true
	}

	if strings.HasSuffix(c.Pattern, "*") {
		return strings.HasPrefix(ioName, strings.TrimSuffix(c.Pattern, "*"))
	}

	return c.Pattern == ioName
}

// specificity orders families for matching: exact names outrank prefix
// wildcards, longer prefixes outrank shorter ones, and the generic
// catch-all always sorts last. This ordering is load-bearing: a catch-all
// checked first would shadow every named family.
func (c *Config) specificity() int {
	if c.Pattern == "*" {
		return 0
	}

	if strings.HasSuffix(c.Pattern, "*") {
		return 1 + len(c.Pattern)
	}

	return 1 << 16
}

// expand synthesizes the virtual-device list for one io port, in a
// deterministic order (ascending bit position, declared field order).
func (c *Config) expand(ioName string) []VirtualDeviceDescriptor {
	tmpl := c.KeyTemplate
	if tmpl == "" {
		tmpl = DefaultKeyTemplate
	}

	var out []VirtualDeviceDescriptor

	switch c.Detection {
	case DetectPerBit:
		positions := make([]int, 0, len(c.Bits))
		for pos := range c.Bits {
			positions = append(positions, pos)
		}
		sort.Ints(positions)

		for _, pos := range positions {
			def := c.Bits[pos]
			bit := pos

			out = append(out, VirtualDeviceDescriptor{
				Key:          renderKey(tmpl, ioName, pos, def.Name),
				Platform:     c.platformFor(def.Platform),
				DeviceClass:  def.DeviceClass,
				FriendlyName: def.Name,
				Extraction:   devspec.ExtractionParams{BitPos: &bit},
			})
		}

	case DetectPerField:
		for i, f := range c.Fields {
			start, width := f.Start, f.Width

			out = append(out, VirtualDeviceDescriptor{
				Key:          renderKey(tmpl, ioName, i, f.Name),
				Platform:     c.platformFor(f.Platform),
				DeviceClass:  f.DeviceClass,
				FriendlyName: f.Name,
				Extraction: devspec.ExtractionParams{
					BitStart: &start,
					BitWidth: &width,
					EnumMap:  f.EnumMap,
				},
			})
		}
	}

	return out
}

func (c *Config) platformFor(declared string) string {
	if declared != "" {
		return declared
	}

	return c.Platforms[0]
}

func renderKey(tmpl string, ioName string, index int, name string) string {
	key := strings.ReplaceAll(tmpl, "{io}", ioName)
	key = strings.ReplaceAll(key, "{name}", name)
	key = strings.ReplaceAll(key, "{index}", strconv.Itoa(index))
	return key
}
