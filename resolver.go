package vda

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cobaltgrove/vda/bitmask"
	"github.com/cobaltgrove/vda/devspec"
	"github.com/cobaltgrove/vda/expression"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"golang.org/x/sync/singleflight"
)

// CacheKey identifies one resolution: a device never resolves differently
// without a registry reload or bitmask re-registration, both of which clear
// the cache.
type CacheKey struct {
	HubID      string
	DeviceID   string
	DeviceType string
}

func (k CacheKey) String() string {
	return k.HubID + "|" + k.DeviceID + "|" + k.DeviceType
}

// Resolution is the explicit result object of one Resolve call.
type Resolution struct {
	Config   *ResolvedDeviceConfig
	Strategy string
	CacheHit bool
	Duration time.Duration
}

// CacheStats exposes the cache counters accumulated since the last clear.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Errors  uint64
	Size    int
	HitRate float64
}

// Resolver is the engine façade: spec lookup, strategy dispatch, typed
// conversion and the resolution cache behind one call. Safe for concurrent
// use; each Resolve is CPU-bound with no suspension points.
type Resolver struct {
	registry  *devspec.Registry
	expander  *bitmask.Expander
	evaluator *expression.Evaluator
	chain     *strategyChain
	logger    logwrap.Logger

	m     sync.RWMutex
	cache map[CacheKey]*ResolvedDeviceConfig

	hits   atomic.Uint64
	misses atomic.Uint64
	errors atomic.Uint64

	group singleflight.Group
}

// New wires a resolver over a spec registry and bitmask expander. The
// resolver subscribes to registry reloads and drops its cache when one
// happens.
func New(registry *devspec.Registry, expander *bitmask.Expander) *Resolver {
	r := &Resolver{
		registry:  registry,
		expander:  expander,
		evaluator: expression.NewEvaluator(),
		logger:    logwrap.New(discard.Discard()),
		cache:     make(map[CacheKey]*ResolvedDeviceConfig),
	}

	r.buildChain()

	registry.OnReload(func(ctx context.Context, _ devspec.ReloadEvent) error {
		r.ClearCache()
		return nil
	})

	return r
}

func (r *Resolver) buildChain() {
	r.chain = newStrategyChain(r.logger,
		&dynamicModeStrategy{evaluator: r.evaluator, logger: r.logger},
		&versionedStrategy{logger: r.logger},
		&virtualBitmaskStrategy{expander: r.expander, logger: r.logger},
		&staticStrategy{logger: r.logger},
	)
}

type resolved struct {
	config   *ResolvedDeviceConfig
	strategy string
}

// Resolve turns a raw device descriptor into its typed configuration.
// Structural failures come back as typed errors; one device's failure never
// blocks resolution of another.
func (r *Resolver) Resolve(ctx context.Context, d Device) (Resolution, error) {
	start := time.Now()

	if err := d.validate(); err != nil {
		r.errors.Add(1)
		return Resolution{Duration: time.Since(start)}, err
	}

	key := CacheKey{HubID: d.HubID, DeviceID: d.ID, DeviceType: d.Type}

	if config, found := r.cacheGet(key); found {
		r.hits.Add(1)
		return Resolution{Config: config, CacheHit: true, Duration: time.Since(start)}, nil
	}

	r.misses.Add(1)

	// Concurrent resolutions of the same key perform the work once.
	v, err, _ := r.group.Do(key.String(), func() (any, error) {
		return r.resolveUncached(ctx, d, key)
	})
	if err != nil {
		r.errors.Add(1)
		return Resolution{Duration: time.Since(start)}, err
	}

	res := v.(resolved)

	return Resolution{
		Config:   res.config,
		Strategy: res.strategy,
		Duration: time.Since(start),
	}, nil
}

func (r *Resolver) resolveUncached(ctx context.Context, d Device, key CacheKey) (resolved, error) {
	// A coalesced caller may find the entry already stored.
	if config, found := r.cacheGet(key); found {
		return resolved{config: config}, nil
	}

	spec, found := r.registry.GetSpec(d.Type)
	if !found {
		r.logger.LogDebug(ctx, "No spec for device type.", logwrap.Datum("DeviceType", d.Type))
		return resolved{}, &SpecNotFoundError{DeviceType: d.Type}
	}

	strategy, err := r.chain.selectStrategy(ctx, spec, d)
	if err != nil {
		// The static fallback matches everything; reaching this is a defect.
		r.logger.LogError(ctx, "No strategy matched device.", logwrap.Datum("DeviceType", d.Type), logwrap.Err(err))
		return resolved{}, err
	}

	mapping, err := strategy.Resolve(ctx, spec, d)
	if err != nil {
		r.logger.LogWarn(ctx, "Strategy failed to resolve device.",
			logwrap.Datum("DeviceType", d.Type),
			logwrap.Datum("Strategy", strategy.Name()),
			logwrap.Err(err))
		return resolved{}, &StrategyFailedError{Strategy: strategy.Name(), Err: err}
	}

	config := buildConfig(spec, d, mapping)
	r.cacheStore(key, config)

	r.logger.LogDebug(ctx, "Resolved device.",
		logwrap.Datum("DeviceType", d.Type),
		logwrap.Datum("Strategy", strategy.Name()),
		logwrap.Datum("Platforms", len(config.Platforms)))

	return resolved{config: config, strategy: strategy.Name()}, nil
}

// buildConfig converts a strategy's raw mapping into the typed output,
// computing per-platform support from telemetry presence.
func buildConfig(spec *devspec.DeviceSpec, d Device, mapping platformMapping) *ResolvedDeviceConfig {
	platforms := make(map[string]PlatformConfig, len(mapping))

	for platform, entries := range mapping {
		ios := make(map[string]IOConfig, len(entries))
		present := 0

		for key, e := range entries {
			ios[key] = IOConfig{
				Key:          key,
				Platform:     platform,
				Access:       e.Spec.Access,
				DataType:     e.Spec.DataType,
				Conversion:   e.Spec.Conversion,
				DeviceClass:  e.Spec.DeviceClass,
				Unit:         e.Spec.Unit,
				StateClass:   e.Spec.StateClass,
				Extraction:   e.Spec.Extraction,
				SourceIO:     e.SourceIO,
				Virtual:      e.Virtual,
				FriendlyName: e.FriendlyName,
			}

			if _, found := d.Telemetry[e.SourceIO]; found {
				present++
			}
		}

		support := SupportNone
		switch {
		case len(ios) > 0 && present == len(ios):
			support = SupportFull
		case present > 0:
			support = SupportPartial
		}

		platforms[platform] = PlatformConfig{
			Platform: platform,
			IO:       ios,
			Support:  support,
		}
	}

	name := spec.Name
	if name == "" {
		name = spec.Type
	}

	return &ResolvedDeviceConfig{
		DeviceType:      spec.Type,
		Name:            name,
		Manufacturer:    spec.Manufacturer,
		Model:           spec.Model,
		Platforms:       platforms,
		PrimaryPlatform: primaryPlatform(platforms),
	}
}

func (r *Resolver) cacheGet(key CacheKey) (*ResolvedDeviceConfig, bool) {
	r.m.RLock()
	defer r.m.RUnlock()

	config, found := r.cache[key]
	return config, found
}

// cacheStore inserts atomically: readers see the entry absent or fully
// formed, never partially constructed.
func (r *Resolver) cacheStore(key CacheKey, config *ResolvedDeviceConfig) {
	r.m.Lock()
	defer r.m.Unlock()

	r.cache[key] = config
}

// ClearCache resets entries and counters. Safe under concurrent
// resolutions: in-flight work simply repopulates the fresh map.
func (r *Resolver) ClearCache() {
	r.m.Lock()
	r.cache = make(map[CacheKey]*ResolvedDeviceConfig)
	r.m.Unlock()

	r.hits.Store(0)
	r.misses.Store(0)
	r.errors.Store(0)
}

// CacheStats returns the monotonic counters accumulated since the last
// clear.
func (r *Resolver) CacheStats() CacheStats {
	r.m.RLock()
	size := len(r.cache)
	r.m.RUnlock()

	stats := CacheStats{
		Hits:   r.hits.Load(),
		Misses: r.misses.Load(),
		Errors: r.errors.Load(),
		Size:   size,
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	return stats
}

// RegisterDynamicBitmaskConfig adds or replaces a bitmask family at
// runtime. The expander rebuild is write-locked and the resolution cache is
// cleared so stale expansions cannot survive the change.
func (r *Resolver) RegisterDynamicBitmaskConfig(config bitmask.Config) error {
	if err := r.expander.Register(config); err != nil {
		return err
	}

	r.ClearCache()
	return nil
}
