package devspec

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/shimmeringbee/callbacks"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/logwrap/impl/golog"
)

// ValidationLevel controls what happens to a spec that fails validation at
// load time.
type ValidationLevel int

const (
	// ValidationNone performs no validation; every parsed spec is kept.
	ValidationNone ValidationLevel = iota
	// ValidationLenient keeps invalid specs and records warnings.
	ValidationLenient
	// ValidationStrict drops invalid specs and records errors.
	ValidationStrict
)

// ProblemLevel distinguishes recorded validation errors from warnings.
type ProblemLevel int

const (
	ProblemWarning ProblemLevel = iota
	ProblemError
)

// Problem is one validation finding recorded at load time. Problems never
// surface from resolution; they are a load-time record only.
type Problem struct {
	Level      ProblemLevel
	DeviceType string
	Message    string
}

// ReloadEvent is sent to registered callbacks after a forced reload has
// completed, so collaborators can drop anything derived from old specs.
type ReloadEvent struct {
	SpecCount int
}

type document struct {
	name string
	data []byte
}

// Registry is the in-memory store of device specifications. Loading is
// additive and idempotent (a device type is keyed once; re-loading the same
// document is a no-op), queries are cached per key, and Reload re-parses
// every retained document from scratch.
type Registry struct {
	m          sync.RWMutex
	level      ValidationLevel
	specs      map[string]*DeviceSpec
	queryCache map[string][]string
	problems   []Problem
	documents  []document

	classifier *specClassifier
	callbacks  callbacks.AdderCaller
	logger     logwrap.Logger
}

func NewRegistry(level ValidationLevel) *Registry {
	classifier, err := newSpecClassifier()
	if err != nil {
		// The classifier rules are compiled from static source; failure to
		// compile is a programming defect, not a runtime condition.
		panic(err)
	}

	return &Registry{
		level:      level,
		specs:      make(map[string]*DeviceSpec),
		queryCache: make(map[string][]string),
		classifier: classifier,
		callbacks:  callbacks.Create(),
		logger:     logwrap.New(discard.Discard()),
	}
}

func (r *Registry) WithGoLogger(parent *log.Logger) {
	r.WithLogWrapLogger(logwrap.New(golog.Wrap(parent)))
}

func (r *Registry) WithLogWrapLogger(lw logwrap.Logger) {
	r.logger = lw
}

// OnReload registers a callback invoked after every forced reload.
func (r *Registry) OnReload(f func(context.Context, ReloadEvent) error) {
	r.callbacks.Add(f)
}

// Loaded reports whether any spec document has been loaded.
func (r *Registry) Loaded() bool {
	r.m.RLock()
	defer r.m.RUnlock()

	return len(r.documents) > 0
}

// GetSpec returns the spec for a device type.
func (r *Registry) GetSpec(deviceType string) (*DeviceSpec, bool) {
	r.m.RLock()
	defer r.m.RUnlock()

	s, found := r.specs[deviceType]
	return s, found
}

// ListTypes returns every loaded device type, sorted.
func (r *Registry) ListTypes() []string {
	return r.query("types", func(s *DeviceSpec) bool {
		return true
	})
}

// FindByPlatform returns the device types that expose the given platform in
// any of their sections, including dynamic modes and versioned variants.
func (r *Registry) FindByPlatform(platform string) []string {
	return r.query("platform:"+platform, func(s *DeviceSpec) bool {
		return specHasPlatform(s, platform)
	})
}

// FindByDeviceClass returns the device types with at least one io port of
// the given device class.
func (r *Registry) FindByDeviceClass(deviceClass string) []string {
	return r.query("deviceclass:"+deviceClass, func(s *DeviceSpec) bool {
		return specHasDeviceClass(s, deviceClass)
	})
}

// Problems returns the validation findings recorded since the last reload.
func (r *Registry) Problems() []Problem {
	r.m.RLock()
	defer r.m.RUnlock()

	out := make([]Problem, len(r.problems))
	copy(out, r.problems)
	return out
}

// Reset clears the derived query cache without touching loaded specs.
func (r *Registry) Reset() {
	r.m.Lock()
	defer r.m.Unlock()

	r.queryCache = make(map[string][]string)
}

// Reload drops every loaded spec and derived cache, re-parses the retained
// documents and then notifies reload callbacks. Readers observe either the
// old complete table or the new one, never a mix.
func (r *Registry) Reload(ctx context.Context) error {
	r.m.Lock()

	docs := r.documents
	r.specs = make(map[string]*DeviceSpec)
	r.queryCache = make(map[string][]string)
	r.problems = nil
	r.documents = nil

	var firstErr error
	for _, d := range docs {
		if err := r.addDocumentLocked(ctx, d); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	count := len(r.specs)
	r.m.Unlock()

	r.logger.LogInfo(ctx, "Reloaded device spec registry.", logwrap.Datum("SpecCount", count))

	if err := r.callbacks.Call(ctx, ReloadEvent{SpecCount: count}); err != nil {
		r.logger.LogWarn(ctx, "Reload callback returned error.", logwrap.Err(err))
	}

	return firstErr
}

// query serves a read-only lookup through the per-key cache.
func (r *Registry) query(key string, match func(*DeviceSpec) bool) []string {
	r.m.RLock()
	cached, found := r.queryCache[key]
	r.m.RUnlock()

	if found {
		return cached
	}

	r.m.Lock()
	defer r.m.Unlock()

	// Another writer may have populated the key while the lock was released.
	if cached, found := r.queryCache[key]; found {
		return cached
	}

	var types []string
	for t, s := range r.specs {
		if match(s) {
			types = append(types, t)
		}
	}

	sort.Strings(types)
	r.queryCache[key] = types

	return types
}

func specHasPlatform(s *DeviceSpec, platform string) bool {
	if _, found := s.Platforms[platform]; found {
		return true
	}

	if s.Dynamic != nil {
		for _, m := range s.Dynamic.Modes {
			if _, found := m.Platforms[platform]; found {
				return true
			}
		}
	}

	for _, vm := range s.VersionModes {
		if _, found := vm.Platforms[platform]; found {
			return true
		}
	}

	return false
}

func specHasDeviceClass(s *DeviceSpec, deviceClass string) bool {
	sections := []PlatformMap{s.Platforms}

	if s.Dynamic != nil {
		for _, m := range s.Dynamic.Modes {
			sections = append(sections, m.Platforms)
		}
	}

	for _, vm := range s.VersionModes {
		sections = append(sections, vm.Platforms)
	}

	for _, pm := range sections {
		for _, section := range pm {
			for _, io := range section {
				if io.DeviceClass == deviceClass {
					return true
				}
			}
		}
	}

	return false
}
