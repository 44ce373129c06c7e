package dfu

import (
	"strconv"
	"strings"
)

// pageUnitMultiplier maps the single-character unit suffix in a
// memory-layout entry to a byte multiplier, per spec.md §4.2.
func pageUnitMultiplier(unit byte) (uint64, bool) {
	switch unit {
	case ' ':
		return 1, true
	case 'K':
		return 1024, true
	case 'M':
		return 1024 * 1024, true
	default:
		return 0, false
	}
}

// ParseMemoryLayout parses a DfuSe memory-layout string such as
// "04*032Kg,01*128Kg" into an ordered sequence of page sizes in bytes, per
// spec.md §4.2. Each comma-separated entry has the form
// "<count>*<size><unit>g", where unit is one of ' ', 'K', 'M'; it expands
// to count consecutive pages of size*multiplier bytes, preserving order.
// Both zero-padded ("04*032Kg") and unpadded ("4*32Kg") counts and sizes
// are accepted.
func ParseMemoryLayout(s string) ([]uint32, error) {
	var pages []uint32

	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return nil, newError("ParseMemoryLayout", ErrCodeInvalidPageFormat)
		}
		if !strings.HasSuffix(entry, "g") {
			return nil, newError("ParseMemoryLayout", ErrCodeInvalidPageFormat)
		}
		entry = entry[:len(entry)-1]

		star := strings.IndexByte(entry, '*')
		if star < 0 {
			return nil, newError("ParseMemoryLayout", ErrCodeInvalidPageFormat)
		}
		countStr := entry[:star]
		sizeStr := entry[star+1:]
		if len(sizeStr) == 0 {
			return nil, newError("ParseMemoryLayout", ErrCodeInvalidPageFormat)
		}

		count, err := strconv.ParseUint(countStr, 10, 32)
		if err != nil {
			return nil, newError("ParseMemoryLayout", ErrCodeParsePageCount)
		}

		unit := sizeStr[len(sizeStr)-1]
		multiplier, ok := pageUnitMultiplier(unit)
		if !ok {
			return nil, newError("ParseMemoryLayout", ErrCodeInvalidPrefix)
		}
		numStr := sizeStr[:len(sizeStr)-1]

		size, err := strconv.ParseUint(numStr, 10, 32)
		if err != nil {
			return nil, newError("ParseMemoryLayout", ErrCodeParsePageSize)
		}

		pageBytes := uint32(size * multiplier)
		for i := uint64(0); i < count; i++ {
			pages = append(pages, pageBytes)
		}
	}

	return pages, nil
}
