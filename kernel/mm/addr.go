package mm

// PhysAddr is a physical memory address. It is a location descriptor only
// and does not imply ownership of the memory it points to.
type PhysAddr uintptr

// Add returns a + n.
func (a PhysAddr) Add(n uintptr) PhysAddr { return a + PhysAddr(n) }

// Sub returns a - n.
func (a PhysAddr) Sub(n uintptr) PhysAddr { return a - PhysAddr(n) }

// Diff returns the distance in bytes between a and other (a - other).
func (a PhysAddr) Diff(other PhysAddr) uintptr { return uintptr(a - other) }

// Page returns the page that contains a.
func (a PhysAddr) Page() Page { return PageOf(uintptr(a)) }

// Offset returns the offset of a inside its page.
func (a PhysAddr) Offset() uintptr { return uintptr(a) & (PageSize - 1) }

// IsNull returns true if a lies inside the reserved page 0.
func (a PhysAddr) IsNull() bool { return a.Page().IsNull() }

// IsPageAligned returns true if a points to the start of a page.
func (a PhysAddr) IsPageAligned() bool { return a.Offset() == 0 }

// Raw returns the untyped address. It should only be used when programming
// the hardware or when printing diagnostics.
func (a PhysAddr) Raw() uintptr { return uintptr(a) }

// VirtAddr is a virtual memory address. It is a location descriptor only
// and does not imply ownership of the memory it points to.
type VirtAddr uintptr

// Add returns a + n.
func (a VirtAddr) Add(n uintptr) VirtAddr { return a + VirtAddr(n) }

// Sub returns a - n.
func (a VirtAddr) Sub(n uintptr) VirtAddr { return a - VirtAddr(n) }

// Diff returns the distance in bytes between a and other (a - other).
func (a VirtAddr) Diff(other VirtAddr) uintptr { return uintptr(a - other) }

// Page returns the page that contains a.
func (a VirtAddr) Page() Page { return PageOf(uintptr(a)) }

// Offset returns the offset of a inside its page.
func (a VirtAddr) Offset() uintptr { return uintptr(a) & (PageSize - 1) }

// IsNull returns true if a lies inside the reserved page 0.
func (a VirtAddr) IsNull() bool { return a.Page().IsNull() }

// IsPageAligned returns true if a points to the start of a page.
func (a VirtAddr) IsPageAligned() bool { return a.Offset() == 0 }

// Raw returns the untyped address. It should only be used when programming
// the hardware or when printing diagnostics.
func (a VirtAddr) Raw() uintptr { return uintptr(a) }
