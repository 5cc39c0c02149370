package mm

const (
	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert an address to a page number (shift right by
	// PageShift) and vice-versa.
	PageShift = uintptr(12)

	// PageSize defines the system's page size in bytes.
	PageSize = uintptr(1 << PageShift)

	// MaxPhysAddr is the highest physical address (exclusive) that the
	// memory manager can track. It also bounds the virtual address space.
	MaxPhysAddr = uint64(1) << 32

	// MaxPages is the number of pages below MaxPhysAddr.
	MaxPages = uintptr(MaxPhysAddr >> PageShift)

	// LargePageSize defines the size in bytes of a large page (a mapping
	// installed directly in the top-level table).
	LargePageSize = uintptr(1 << LargePageShift)
)
