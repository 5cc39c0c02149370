package mm

import "github.com/jamesMFelder/FelineOS-sub000/kernel"

// ErrNoMemoryMap is returned when the boot environment did not report any
// available memory.
var ErrNoMemoryMap = &kernel.Error{Module: "mm", Message: "no memory map supplied by the boot environment"}

// BootInfo is the normalized hand-off from the boot collaborators. It lists
// the physical memory layout and the location of the kernel image.
type BootInfo struct {
	// Available lists the regions that the boot environment reported as
	// usable RAM.
	Available []Region

	// Unavailable lists regions reserved by firmware or the boot loader.
	Unavailable []Region

	// Physical and virtual bounds of the loaded kernel image.
	KernelPhysStart, KernelPhysEnd PhysAddr
	KernelVirtStart, KernelVirtEnd VirtAddr

	// BootBlob is the configuration blob supplied by the boot loader. It
	// may be empty.
	BootBlob Region

	// PhysLimit is the highest physical address that can be tracked. A
	// zero value selects MaxPhysAddr.
	PhysLimit uint64
}

// Ceiling returns the effective physical address ceiling.
func (b *BootInfo) Ceiling() uint64 {
	if b.PhysLimit == 0 || b.PhysLimit > MaxPhysAddr {
		return MaxPhysAddr
	}
	return b.PhysLimit
}

// PageLimit returns the number of pages below the ceiling.
func (b *BootInfo) PageLimit() uintptr {
	return uintptr(b.Ceiling() >> PageShift)
}

// HighestAddress returns the highest end address referenced by the
// available or unavailable region lists clamped to the ceiling.
func (b *BootInfo) HighestAddress() uint64 {
	var highest uint64
	for _, list := range [][]Region{b.Available, b.Unavailable} {
		for _, r := range list {
			if end := uint64(r.Addr) + uint64(r.Length); end > highest {
				highest = end
			}
		}
	}

	if ceiling := b.Ceiling(); highest > ceiling {
		return ceiling
	}
	return highest
}

// KernelImage returns the physical region occupied by the kernel image.
func (b *BootInfo) KernelImage() Region {
	return Region{Addr: b.KernelPhysStart, Length: b.KernelPhysEnd.Diff(b.KernelPhysStart)}
}

// Validate checks that the boot information is usable.
func (b *BootInfo) Validate() *kernel.Error {
	for _, r := range b.Available {
		if !r.IsEmpty() {
			return nil
		}
	}
	return ErrNoMemoryMap
}
