package mm

// Region describes a contiguous range of physical memory.
type Region struct {
	Addr   PhysAddr
	Length uintptr
}

// End returns the address of the first byte past the region. On 32-bit
// targets a region that ends at MaxPhysAddr wraps to 0; use Limit or
// EndPage for arithmetic.
func (r Region) End() PhysAddr { return r.Addr.Add(r.Length) }

// Limit returns the address of the first byte past the region without
// wrapping.
func (r Region) Limit() uint64 { return uint64(r.Addr) + uint64(r.Length) }

// endPageLimit is one past the highest page index an address can reach.
const endPageLimit = uint64(^uintptr(0))>>PageShift + 1

// EndPage returns the index of the first page that lies entirely past the
// region. Regions that run past the end of the address space are cut at
// its last page.
func (r Region) EndPage() uintptr {
	return uintptr(clampPage((r.Limit() + uint64(PageSize) - 1) >> PageShift))
}

func clampPage(index uint64) uint64 {
	if index > endPageLimit {
		return endPageLimit
	}
	return index
}

// IsEmpty returns true if the region has a zero length.
func (r Region) IsEmpty() bool { return r.Length == 0 }

// Overlaps returns true if the two regions share at least one byte.
func (r Region) Overlaps(other Region) bool {
	if r.IsEmpty() || other.IsEmpty() {
		return false
	}
	return uint64(r.Addr) < other.Limit() && uint64(other.Addr) < r.Limit()
}

// Contains returns true if addr lies inside the region.
func (r Region) Contains(addr PhysAddr) bool {
	return addr >= r.Addr && uint64(addr) < r.Limit()
}

// PageAligned returns the largest page-aligned region that fits inside r.
// The result has a zero length if r does not cover a whole page.
func (r Region) PageAligned() Region {
	first := (uint64(r.Addr) + uint64(PageSize) - 1) >> PageShift
	end := clampPage(r.Limit() >> PageShift)
	if end <= first {
		return Region{Addr: PhysAddr(RoundDown(r.Addr.Raw(), PageSize))}
	}
	return Region{Addr: PhysAddr(first << PageShift), Length: uintptr((end - first) << PageShift)}
}

// PageCovering returns the smallest page-aligned region that covers r.
func (r Region) PageCovering() Region {
	if r.IsEmpty() {
		return Region{Addr: PhysAddr(r.Addr.Page())}
	}
	first := r.Addr.Page().Index()
	return Region{Addr: PhysAddr(r.Addr.Page()), Length: (r.EndPage() - first) << PageShift}
}
