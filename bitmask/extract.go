package bitmask

import (
	"fmt"

	"github.com/cobaltgrove/vda/devspec"
)

// ExtractBit reports whether bit pos of v is set.
func ExtractBit(v int64, pos int) bool {
	return (v>>uint(pos))&1 == 1
}

// ExtractRange pulls width bits of v starting at start.
func ExtractRange(v int64, start int, width int) int64 {
	if width >= 64 {
		return v >> uint(start)
	}

	return (v >> uint(start)) & ((1 << uint(width)) - 1)
}

// ExtractMapped pulls a bit range and maps it through an enum table. The
// second return is false when the raw value has no table entry.
func ExtractMapped(v int64, start int, width int, enum map[int64]string) (string, bool) {
	raw := ExtractRange(v, start, width)
	name, found := enum[raw]
	return name, found
}

// Apply performs the extraction a descriptor's parameters call for: a bool
// for single-bit extraction, a string for mapped ranges, an int64 for plain
// ranges.
func Apply(v int64, p devspec.ExtractionParams) (any, error) {
	switch {
	case p.BitPos != nil:
		return ExtractBit(v, *p.BitPos), nil

	case p.BitStart != nil && p.BitWidth != nil:
		if len(p.EnumMap) > 0 {
			name, found := ExtractMapped(v, *p.BitStart, *p.BitWidth, p.EnumMap)
			if !found {
				return nil, fmt.Errorf("raw value %d has no enum table entry", ExtractRange(v, *p.BitStart, *p.BitWidth))
			}
			return name, nil
		}

		return ExtractRange(v, *p.BitStart, *p.BitWidth), nil

	default:
		return nil, fmt.Errorf("extraction parameters select no bits")
	}
}
