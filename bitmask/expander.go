package bitmask

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cobaltgrove/vda/devspec"
)

// VirtualDeviceDescriptor is one synthesized sub-entity of a bitmask io
// port. It has no independent network identity; the key is deterministic
// per (family, io port, table entry).
type VirtualDeviceDescriptor struct {
	Key          string
	Platform     string
	DeviceClass  string
	FriendlyName string
	Extraction   devspec.ExtractionParams
}

type tableKey struct {
	family string
	ioName string
}

// Expander matches io ports against registered bitmask families and lazily
// builds the virtual-device table per (family, port). Matching and lookup
// are read-locked; registration is serialized and drops the affected
// family's cached tables, so concurrent readers see the old complete table
// or the new one, never a mix.
type Expander struct {
	m       sync.RWMutex
	configs []*Config
	tables  map[tableKey][]VirtualDeviceDescriptor
}

func NewExpander() *Expander {
	return &Expander{
		tables: make(map[tableKey][]VirtualDeviceDescriptor),
	}
}

// NewExpanderWithDefaults returns an expander pre-loaded with the built-in
// families.
func NewExpanderWithDefaults() *Expander {
	e := NewExpander()

	for _, c := range DefaultConfigs() {
		if err := e.Register(c); err != nil {
			// Built-in families are static; failing to register one is a
			// programming defect.
			panic(err)
		}
	}

	return e
}

// Register adds or replaces a bitmask family. Replacement drops every cached
// table the family produced.
func (e *Expander) Register(c Config) error {
	if err := c.validate(); err != nil {
		return err
	}

	e.m.Lock()
	defer e.m.Unlock()

	replaced := false
	for i, existing := range e.configs {
		if existing.Name == c.Name {
			e.configs[i] = &c
			replaced = true
			break
		}
	}

	if !replaced {
		e.configs = append(e.configs, &c)
	}

	// Stable sort keeps registration order for equal specificity.
	sort.SliceStable(e.configs, func(i, j int) bool {
		return e.configs[i].specificity() > e.configs[j].specificity()
	})

	for k := range e.tables {
		if k.family == c.Name {
			delete(e.tables, k)
		}
	}

	return nil
}

// Match returns the most specific family covering the io port name. Named
// families are always consulted before the generic catch-all.
func (e *Expander) Match(ioName string) (Config, bool) {
	e.m.RLock()
	defer e.m.RUnlock()

	for _, c := range e.configs {
		if c.matches(ioName) {
			return *c, true
		}
	}

	return Config{}, false
}

// MatchNamed behaves like Match but ignores the generic catch-all, for
// callers deciding whether a port is bitmask at all.
func (e *Expander) MatchNamed(ioName string) (Config, bool) {
	e.m.RLock()
	defer e.m.RUnlock()

	for _, c := range e.configs {
		if c.Pattern != "*" && c.matches(ioName) {
			return *c, true
		}
	}

	return Config{}, false
}

// Family returns a registered family by name.
func (e *Expander) Family(name string) (Config, bool) {
	e.m.RLock()
	defer e.m.RUnlock()

	for _, c := range e.configs {
		if c.Name == name {
			return *c, true
		}
	}

	return Config{}, false
}

// Families returns the registered family names in match order.
func (e *Expander) Families() []string {
	e.m.RLock()
	defer e.m.RUnlock()

	names := make([]string, 0, len(e.configs))
	for _, c := range e.configs {
		names = append(names, c.Name)
	}

	return names
}

// Expand returns the virtual-device list for (family, io port), building
// and caching it on first use.
func (e *Expander) Expand(family string, ioName string) ([]VirtualDeviceDescriptor, error) {
	key := tableKey{family: family, ioName: ioName}

	e.m.RLock()
	table, found := e.tables[key]
	e.m.RUnlock()

	if found {
		return table, nil
	}

	e.m.Lock()
	defer e.m.Unlock()

	if table, found := e.tables[key]; found {
		return table, nil
	}

	var config *Config
	for _, c := range e.configs {
		if c.Name == family {
			config = c
			break
		}
	}

	if config == nil {
		return nil, fmt.Errorf("unknown bitmask family %q", family)
	}

	// The pattern gates Match, not Expand: a spec may explicitly bind a
	// family to a port the pattern would not have claimed.
	table = config.expand(ioName)
	e.tables[key] = table

	return table, nil
}

// cachedTables reports how many tables have been built, for tests.
func (e *Expander) cachedTables() int {
	e.m.RLock()
	defer e.m.RUnlock()

	return len(e.tables)
}
