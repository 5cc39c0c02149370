package mm

import "strconv"

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// Pages returns the number of pages needed to hold s bytes.
func (s Size) Pages() uint64 {
	return (uint64(s) + uint64(PageSize) - 1) >> PageShift
}

// String renders s using the largest unit that divides it evenly.
func (s Size) String() string {
	for _, unit := range []struct {
		size   Size
		suffix string
	}{{Gb, "Gb"}, {Mb, "Mb"}, {Kb, "Kb"}} {
		if s != 0 && s%unit.size == 0 {
			return strconv.FormatUint(uint64(s/unit.size), 10) + unit.suffix
		}
	}
	return strconv.FormatUint(uint64(s), 10) + "b"
}
