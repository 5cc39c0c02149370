package vmm

import "strings"

// Option controls how a range gets mapped or unmapped.
type Option uint32

const (
	// OptOverwrite allows mapping over pages that are already mapped.
	OptOverwrite Option = 1 << iota

	// OptDevice maps the range with uncached device-memory attributes.
	// It is meant for memory-mapped hardware registers.
	OptDevice

	// OptUser makes the range accessible from user mode.
	OptUser

	// OptReadOnly maps the range without write access.
	OptReadOnly

	// OptFreePhys releases the physical pages backing an unmapped range
	// to the physical allocator. It is only valid for unmap calls.
	OptFreePhys

	mapOptions   = OptOverwrite | OptDevice | OptUser | OptReadOnly
	unmapOptions = OptFreePhys
)

var optionNames = [...]string{"overwrite", "device", "user", "ro", "free-phys"}

// String returns a human-readable list of the options in o.
func (o Option) String() string {
	var parts []string
	for bit, name := range optionNames {
		if o&(1<<uint(bit)) != 0 {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return "rw"
	}
	return strings.Join(parts, ",")
}

func checkMapOptions(opts Option) bool {
	return opts&^mapOptions == 0 && opts&(OptDevice|OptUser) != OptDevice|OptUser
}

func checkUnmapOptions(opts Option) bool {
	return opts&^unmapOptions == 0
}
