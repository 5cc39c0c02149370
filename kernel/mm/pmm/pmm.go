// Package pmm implements a bitmap-based physical memory manager.
//
// Every physical page below the configured ceiling is tracked by a single
// bit which is set while the page is in use. The bitmap storage is carved
// out of the available memory reported by the boot environment and mapped
// through the virtual memory mapper before first use. Page 0 is permanently
// reserved so that a zero address can act as a null sentinel.
package pmm

import (
	"github.com/jamesMFelder/FelineOS-sub000/kernel"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/klog"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm/vmm"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/sync"
)

// Kernel is the physical memory manager instance used by the kernel.
var Kernel Manager

// Mapper is implemented by virtual memory managers that can map a physical
// range to a free virtual address. It is satisfied by *vmm.Mapper.
type Mapper interface {
	MapRangeAnyVirt(phys mm.PhysAddr, length uintptr, opts vmm.Option) (mm.VirtAddr, *kernel.Error)
}

// Manager tracks physical page reservations using a bitmap.
type Manager struct {
	// lock guards every access to the fields below.
	lock sync.Spinlock

	bitmap bitmap

	// storage is the physical region that backs the bitmap and
	// storageVirt is the address where it is mapped.
	storage     mm.Region
	storageVirt mm.VirtAddr

	totalPages uintptr
	freePages  uintptr

	ready bool
}

// Bootstrap sizes the bitmap using the supplied boot information, locates
// and maps its backing storage and marks every page that is not reported as
// available as in use. Bootstrap must be invoked exactly once. The storage
// is mapped before the manager lock is taken so the mapper lock is never
// acquired while holding it.
func (m *Manager) Bootstrap(info *mm.BootInfo, mapper Mapper, mem mm.Memory) *kernel.Error {
	m.lock.Acquire()
	ready := m.ready
	m.lock.Release()

	if ready {
		klog.Panic(errAlreadyBootstrapped)
		return errAlreadyBootstrapped
	}

	if err := info.Validate(); err != nil {
		klog.Errorf("pmm", "bootstrap failed: %s", err.Message)
		return err
	}

	totalPages := uintptr((info.HighestAddress() + uint64(mm.PageSize) - 1) >> mm.PageShift)
	bitmapBytes := (totalPages + 7) >> 3
	storageSize := mm.RoundUp(bitmapBytes, mm.PageSize)

	storage, found := locateStorage(info, storageSize, totalPages)
	if !found {
		klog.Errorf("pmm", "bootstrap failed: %s (need %d bytes)", ErrNoBitmapSpace.Message, storageSize)
		return ErrNoBitmapSpace
	}

	virt, err := mapper.MapRangeAnyVirt(storage.Addr, storage.Length, 0)
	if err != nil {
		klog.Errorf("pmm", "unable to map bitmap storage at 0x%x: %s", storage.Addr.Raw(), err.Message)
		return err
	}

	m.lock.Acquire()
	defer m.lock.Release()

	if m.ready {
		klog.Panic(errAlreadyBootstrapped)
		return errAlreadyBootstrapped
	}

	m.storage = storage
	m.storageVirt = virt
	m.populate(bitmap(mem.Bytes(virt.Raw(), bitmapBytes)), totalPages, info)
	m.ready = true

	klog.Infof("pmm", "bitmap for %d pages stored at phys 0x%x, virt 0x%x", totalPages, storage.Addr.Raw(), virt.Raw())
	return nil
}

// populate initializes the bitmap from the boot memory map. Entries past
// totalPages are silently dropped.
func (m *Manager) populate(bm bitmap, totalPages uintptr, info *mm.BootInfo) {
	m.bitmap = bm
	m.totalPages = totalPages

	kernel.Memset(bm, 0xff)
	for _, r := range info.Available {
		m.applyRegion(r.PageAligned(), bm.clearRange)
	}

	for _, r := range info.Unavailable {
		m.applyRegion(r.PageCovering(), bm.setRange)
	}
	m.applyRegion(info.KernelImage().PageCovering(), bm.setRange)
	m.applyRegion(info.BootBlob.PageCovering(), bm.setRange)
	m.applyRegion(m.storage.PageCovering(), bm.setRange)
	bm.set(0)

	m.freePages = bm.countClear(totalPages)
}

// applyRegion invokes fn for the pages of r that are covered by the bitmap.
func (m *Manager) applyRegion(r mm.Region, fn func(first, count uintptr)) {
	first := r.Addr.Page().Index()
	last := r.EndPage()
	if last > m.totalPages {
		last = m.totalPages
	}
	if first < last {
		fn(first, last-first)
	}
}

// AllocPages reserves the first run of count contiguous free pages and
// returns the address of the first page. Requests for as many pages as the
// system has or more can never be satisfied and cause a kernel panic.
func (m *Manager) AllocPages(count uintptr) (mm.PhysAddr, *kernel.Error) {
	if count == 0 {
		klog.Warnf("pmm", "alloc: %s", ErrInvalidPageCount.Message)
		return 0, ErrInvalidPageCount
	}

	m.lock.Acquire()
	defer m.lock.Release()

	if !m.ready {
		klog.Warnf("pmm", "alloc: %s", ErrNotReady.Message)
		return 0, ErrNotReady
	}

	if count >= m.totalPages {
		klog.Panic(errUnsatisfiable)
		return 0, ErrNoMemory
	}

	first, found := m.bitmap.findClearRun(1, count, m.totalPages)
	if !found {
		klog.Warnf("pmm", "alloc of %d pages failed: %s", count, ErrNoMemory.Message)
		return 0, ErrNoMemory
	}

	m.bitmap.setRange(first, count)
	m.freePages -= count
	return mm.PhysAddr(mm.PageFromIndex(first)), nil
}

// AllocPage reserves a single free page.
func (m *Manager) AllocPage() (mm.PhysAddr, *kernel.Error) {
	return m.AllocPages(1)
}

// Reserve marks count pages starting at the page that contains addr as in
// use. If any of the pages is already in use, the call fails and the bitmap
// is left untouched.
func (m *Manager) Reserve(addr mm.PhysAddr, count uintptr) *kernel.Error {
	if addr.IsNull() {
		klog.Warnf("pmm", "reserve: %s", ErrNullAddress.Message)
		return ErrNullAddress
	}

	if count == 0 {
		klog.Warnf("pmm", "reserve: %s", ErrInvalidPageCount.Message)
		return ErrInvalidPageCount
	}

	m.lock.Acquire()
	defer m.lock.Release()

	if !m.ready {
		klog.Warnf("pmm", "reserve: %s", ErrNotReady.Message)
		return ErrNotReady
	}

	first := addr.Page().Index()
	if err := m.checkRange(first, count); err != nil {
		klog.Warnf("pmm", "reserve 0x%x (%d pages): %s", addr.Raw(), count, err.Message)
		return err
	}

	for i := uintptr(0); i < count; i++ {
		if m.bitmap.isSet(first + i) {
			m.bitmap.clearRange(first, i)
			klog.Warnf("pmm", "reserve 0x%x (%d pages): page 0x%x %s", addr.Raw(), count, mm.PageFromIndex(first+i).Address(), ErrAlreadyInUse.Message)
			return ErrAlreadyInUse
		}
		m.bitmap.set(first + i)
	}

	m.freePages -= count
	return nil
}

// Free releases count pages starting at the page that contains addr. All
// pages must currently be in use; otherwise the call fails without
// modifying the bitmap.
func (m *Manager) Free(addr mm.PhysAddr, count uintptr) *kernel.Error {
	m.lock.Acquire()
	defer m.lock.Release()

	return m.free(addr, count)
}

// FreePage releases a single page.
func (m *Manager) FreePage(addr mm.PhysAddr) *kernel.Error {
	return m.Free(addr, 1)
}

// TryFree behaves like Free but never spins on the lock. If the lock is
// held by another context, TryFree returns false without touching the
// bitmap. It is meant for cleanup paths that run in interrupt context.
func (m *Manager) TryFree(addr mm.PhysAddr, count uintptr) (bool, *kernel.Error) {
	if !m.lock.TryToAcquire() {
		return false, nil
	}
	defer m.lock.Release()

	return true, m.free(addr, count)
}

func (m *Manager) free(addr mm.PhysAddr, count uintptr) *kernel.Error {
	if addr.IsNull() {
		klog.Warnf("pmm", "free: %s", ErrNullAddress.Message)
		return ErrNullAddress
	}

	if !m.ready {
		klog.Warnf("pmm", "free: %s", ErrNotReady.Message)
		return ErrNotReady
	}

	if count > m.totalPages {
		klog.Panic(errFreeTooManyPages)
		return ErrOutOfRange
	}

	if count == 0 {
		klog.Warnf("pmm", "free: %s", ErrInvalidPageCount.Message)
		return ErrInvalidPageCount
	}

	first := addr.Page().Index()
	if err := m.checkRange(first, count); err != nil {
		klog.Warnf("pmm", "free 0x%x (%d pages): %s", addr.Raw(), count, err.Message)
		return err
	}

	if !m.bitmap.allSet(first, count) {
		klog.Warnf("pmm", "free 0x%x (%d pages): %s", addr.Raw(), count, ErrNotUsed.Message)
		return ErrNotUsed
	}

	m.bitmap.clearRange(first, count)
	m.freePages += count
	return nil
}

func (m *Manager) checkRange(first, count uintptr) *kernel.Error {
	if first >= m.totalPages || count > m.totalPages-first {
		return ErrOutOfRange
	}
	return nil
}

// InUse returns true if every page in the range is currently reserved.
func (m *Manager) InUse(addr mm.PhysAddr, count uintptr) bool {
	m.lock.Acquire()
	defer m.lock.Release()

	first := addr.Page().Index()
	if !m.ready || count == 0 || m.checkRange(first, count) != nil {
		return false
	}
	return m.bitmap.allSet(first, count)
}

// TotalPages returns the number of pages tracked by the bitmap.
func (m *Manager) TotalPages() uintptr {
	m.lock.Acquire()
	defer m.lock.Release()
	return m.totalPages
}

// FreePages returns the number of pages that are currently free.
func (m *Manager) FreePages() uintptr {
	m.lock.Acquire()
	defer m.lock.Release()
	return m.freePages
}

// Storage returns the physical region that backs the bitmap.
func (m *Manager) Storage() mm.Region {
	m.lock.Acquire()
	defer m.lock.Release()
	return m.storage
}

// Snapshot returns a copy of the bitmap.
func (m *Manager) Snapshot() []byte {
	m.lock.Acquire()
	defer m.lock.Release()

	out := make([]byte, len(m.bitmap))
	copy(out, m.bitmap)
	return out
}

// PrintMemoryMap logs the system memory map followed by the page totals
// and the location of the kernel image.
func (m *Manager) PrintMemoryMap(info *mm.BootInfo) {
	klog.Infof("pmm", "system memory map:")

	var avail mm.Size
	for _, r := range info.Available {
		klog.Infof("pmm", "  [0x%08x - 0x%08x], size: %10d, type: available", r.Addr.Raw(), r.Limit(), r.Length)
		avail += mm.Size(r.Length)
	}
	for _, r := range info.Unavailable {
		klog.Infof("pmm", "  [0x%08x - 0x%08x], size: %10d, type: reserved", r.Addr.Raw(), r.Limit(), r.Length)
	}
	if !info.BootBlob.IsEmpty() {
		klog.Infof("pmm", "  [0x%08x - 0x%08x], size: %10d, type: boot blob", info.BootBlob.Addr.Raw(), info.BootBlob.Limit(), info.BootBlob.Length)
	}

	kernelImage := info.KernelImage()
	klog.Infof("pmm", "available memory: %s", avail)
	klog.Infof("pmm", "kernel loaded at 0x%x - 0x%x", info.KernelPhysStart.Raw(), info.KernelPhysEnd.Raw())
	klog.Infof("pmm", "size: %d bytes, reserved pages: %d", kernelImage.Length, mm.PageCount(kernelImage.PageCovering().Length))
	klog.Infof("pmm", "pages: %d total, %d free", m.TotalPages(), m.FreePages())
}
