package bitmask

import (
	"testing"

	"github.com/cobaltgrove/vda/devspec"
	"github.com/stretchr/testify/assert"
)

func TestExtractBit(t *testing.T) {
	t.Run("alarm value with bits 0, 1, 5 and 11 set decodes exactly those flags on", func(t *testing.T) {
		var v int64 = 1<<0 | 1<<1 | 1<<5 | 1<<11
		set := map[int]bool{0: true, 1: true, 5: true, 11: true}

		e := NewExpanderWithDefaults()
		table, err := e.Expand("alarm", "ALM")
		assert.NoError(t, err)

		for _, vd := range table {
			assert.Equal(t, set[*vd.Extraction.BitPos], ExtractBit(v, *vd.Extraction.BitPos), vd.Key)
		}
	})

	t.Run("round-trips every bit position", func(t *testing.T) {
		for pos := 0; pos < 64; pos++ {
			v := int64(1) << uint(pos)

			for b := 0; b < 64; b++ {
				assert.Equal(t, b == pos, ExtractBit(v, b))
			}
		}
	})
}

func TestExtractRange(t *testing.T) {
	t.Run("pulls a field out of the middle of a value", func(t *testing.T) {
		var v int64 = 0x0002_3045
		assert.Equal(t, int64(0x45), ExtractRange(v, 0, 8))
		assert.Equal(t, int64(0x3), ExtractRange(v, 12, 4))
		assert.Equal(t, int64(0x2), ExtractRange(v, 16, 8))
	})

	t.Run("a full-width range returns the value", func(t *testing.T) {
		assert.Equal(t, int64(-1), ExtractRange(-1, 0, 64))
	})
}

func TestExtractMapped(t *testing.T) {
	t.Run("maps a field through an enum table", func(t *testing.T) {
		enum := map[int64]string{2: "fingerprint", 3: "card"}

		name, found := ExtractMapped(2<<12, 12, 4, enum)
		assert.True(t, found)
		assert.Equal(t, "fingerprint", name)

		_, found = ExtractMapped(9<<12, 12, 4, enum)
		assert.False(t, found)
	})
}

func TestApply(t *testing.T) {
	t.Run("selects extraction by descriptor parameters", func(t *testing.T) {
		pos, start, width := 5, 12, 4

		v, err := Apply(1<<5, devspec.ExtractionParams{BitPos: &pos})
		assert.NoError(t, err)
		assert.Equal(t, true, v)

		v, err = Apply(3<<12, devspec.ExtractionParams{BitStart: &start, BitWidth: &width})
		assert.NoError(t, err)
		assert.Equal(t, int64(3), v)

		v, err = Apply(3<<12, devspec.ExtractionParams{
			BitStart: &start,
			BitWidth: &width,
			EnumMap:  map[int64]string{3: "card"},
		})
		assert.NoError(t, err)
		assert.Equal(t, "card", v)
	})

	t.Run("fails on empty parameters or missing enum entry", func(t *testing.T) {
		_, err := Apply(0, devspec.ExtractionParams{})
		assert.Error(t, err)

		start, width := 0, 4
		_, err = Apply(9, devspec.ExtractionParams{
			BitStart: &start,
			BitWidth: &width,
			EnumMap:  map[int64]string{1: "one"},
		})
		assert.Error(t, err)
	})
}
