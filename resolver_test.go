package vda

import (
	"context"
	"sync"
	"testing"

	"github.com/cobaltgrove/vda/bitmask"
	"github.com/cobaltgrove/vda/devspec"
	"github.com/stretchr/testify/assert"
)

const relayDocument = `
specs:
  - type: SL_SW_IF1
    name: Single Channel Switch
    manufacturer: Cobalt
    model: CG-SW1
    platforms:
      switch:
        L1:
          access: rw
          data_type: binary
      sensor:
        P4:
          access: r
          data_type: numeric
          device_class: power
          unit: W
`

func newTestResolver(t *testing.T, documents ...string) *Resolver {
	registry := devspec.NewRegistry(devspec.ValidationStrict)

	for _, d := range documents {
		assert.NoError(t, registry.LoadString(context.Background(), d))
	}

	return New(registry, bitmask.NewExpanderWithDefaults())
}

func relayDevice() Device {
	return Device{
		Type:  "SL_SW_IF1",
		ID:    "a1b2c3",
		HubID: "hub-1",
		Telemetry: map[string]IOValue{
			"L1": {Type: 0x81, Val: 1},
			"P4": {Type: 0x08, Val: 1500},
		},
	}
}

func TestResolverResolve(t *testing.T) {
	t.Run("resolves a static spec into a typed configuration", func(t *testing.T) {
		r := newTestResolver(t, relayDocument)

		res, err := r.Resolve(context.Background(), relayDevice())
		assert.NoError(t, err)
		assert.False(t, res.CacheHit)
		assert.Equal(t, "static", res.Strategy)

		assert.Equal(t, "Single Channel Switch", res.Config.Name)
		assert.Equal(t, "Cobalt", res.Config.Manufacturer)
		assert.Equal(t, "switch", res.Config.PrimaryPlatform)

		io, found := res.Config.GetIOConfig("switch", "L1")
		assert.True(t, found)
		assert.Equal(t, devspec.AccessReadWrite, io.Access)
		assert.Equal(t, "L1", io.SourceIO)
		assert.False(t, io.Virtual)

		power, found := res.Config.GetIOConfig("sensor", "P4")
		assert.True(t, found)
		assert.Equal(t, "W", power.Unit)
	})

	t.Run("second resolution of the same device is a cache hit with the identical config", func(t *testing.T) {
		r := newTestResolver(t, relayDocument)

		first, err := r.Resolve(context.Background(), relayDevice())
		assert.NoError(t, err)
		assert.False(t, first.CacheHit)

		second, err := r.Resolve(context.Background(), relayDevice())
		assert.NoError(t, err)
		assert.True(t, second.CacheHit)
		assert.Same(t, first.Config, second.Config)

		stats := r.CacheStats()
		assert.Equal(t, uint64(1), stats.Hits)
		assert.Equal(t, uint64(1), stats.Misses)
		assert.Equal(t, 1, stats.Size)
		assert.Equal(t, 0.5, stats.HitRate)
	})

	t.Run("devices are cached per hub and id, not only per type", func(t *testing.T) {
		r := newTestResolver(t, relayDocument)

		d := relayDevice()
		_, err := r.Resolve(context.Background(), d)
		assert.NoError(t, err)

		d.ID = "other"
		res, err := r.Resolve(context.Background(), d)
		assert.NoError(t, err)
		assert.False(t, res.CacheHit)

		assert.Equal(t, 2, r.CacheStats().Size)
	})

	t.Run("unknown device type is a typed error and the cache is untouched", func(t *testing.T) {
		r := newTestResolver(t, relayDocument)

		d := relayDevice()
		d.Type = "SL_UNKNOWN"

		_, err := r.Resolve(context.Background(), d)

		var notFound *SpecNotFoundError
		assert.ErrorAs(t, err, &notFound)
		assert.Equal(t, "SL_UNKNOWN", notFound.DeviceType)

		stats := r.CacheStats()
		assert.Equal(t, 0, stats.Size)
		assert.Equal(t, uint64(1), stats.Errors)
	})

	t.Run("descriptor with missing identity fields is rejected before lookup", func(t *testing.T) {
		r := newTestResolver(t, relayDocument)

		var invalid *InvalidInputError

		d := relayDevice()
		d.Type = ""
		_, err := r.Resolve(context.Background(), d)
		assert.ErrorAs(t, err, &invalid)
		assert.Equal(t, "Type", invalid.Field)

		d = relayDevice()
		d.ID = ""
		_, err = r.Resolve(context.Background(), d)
		assert.ErrorAs(t, err, &invalid)
		assert.Equal(t, "ID", invalid.Field)

		d = relayDevice()
		d.HubID = ""
		_, err = r.Resolve(context.Background(), d)
		assert.ErrorAs(t, err, &invalid)
		assert.Equal(t, "HubID", invalid.Field)
	})
}

func TestResolverCache(t *testing.T) {
	t.Run("clear cache resets entries and counters", func(t *testing.T) {
		r := newTestResolver(t, relayDocument)

		_, err := r.Resolve(context.Background(), relayDevice())
		assert.NoError(t, err)

		_, err = r.Resolve(context.Background(), relayDevice())
		assert.NoError(t, err)

		r.ClearCache()

		stats := r.CacheStats()
		assert.Equal(t, uint64(0), stats.Hits)
		assert.Equal(t, uint64(0), stats.Misses)
		assert.Equal(t, 0, stats.Size)
		assert.Equal(t, 0.0, stats.HitRate)

		res, err := r.Resolve(context.Background(), relayDevice())
		assert.NoError(t, err)
		assert.False(t, res.CacheHit)
	})

	t.Run("registry reload drops the resolution cache", func(t *testing.T) {
		registry := devspec.NewRegistry(devspec.ValidationStrict)
		assert.NoError(t, registry.LoadString(context.Background(), relayDocument))

		r := New(registry, bitmask.NewExpanderWithDefaults())

		_, err := r.Resolve(context.Background(), relayDevice())
		assert.NoError(t, err)
		assert.Equal(t, 1, r.CacheStats().Size)

		assert.NoError(t, registry.Reload(context.Background()))
		assert.Equal(t, 0, r.CacheStats().Size)
	})

	t.Run("registering a bitmask family clears the cache", func(t *testing.T) {
		r := newTestResolver(t, relayDocument)

		_, err := r.Resolve(context.Background(), relayDevice())
		assert.NoError(t, err)
		assert.Equal(t, 1, r.CacheStats().Size)

		assert.NoError(t, r.RegisterDynamicBitmaskConfig(bitmask.Config{
			Name:      "valve_state",
			Pattern:   "VLV*",
			Platforms: []string{"binary_sensor"},
			Detection: bitmask.DetectPerBit,
			Bits: map[int]bitmask.BitDef{
				0: {Name: "open"},
			},
		}))

		assert.Equal(t, 0, r.CacheStats().Size)
	})

	t.Run("registering an invalid bitmask family leaves the cache alone", func(t *testing.T) {
		r := newTestResolver(t, relayDocument)

		_, err := r.Resolve(context.Background(), relayDevice())
		assert.NoError(t, err)

		assert.Error(t, r.RegisterDynamicBitmaskConfig(bitmask.Config{Name: "", Pattern: "*"}))
		assert.Equal(t, 1, r.CacheStats().Size)
	})

	t.Run("concurrent resolutions and clears never observe a torn entry", func(t *testing.T) {
		r := newTestResolver(t, relayDocument)

		var wg sync.WaitGroup

		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				for j := 0; j < 50; j++ {
					res, err := r.Resolve(context.Background(), relayDevice())
					assert.NoError(t, err)
					assert.NotNil(t, res.Config)
					assert.Equal(t, "SL_SW_IF1", res.Config.DeviceType)

					_, found := res.Config.GetIOConfig("switch", "L1")
					assert.True(t, found)
				}
			}()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			for j := 0; j < 50; j++ {
				r.ClearCache()
			}
		}()

		wg.Wait()
	})
}
