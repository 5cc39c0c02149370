package vmm

import (
	"github.com/jamesMFelder/FelineOS-sub000/kernel"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/klog"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
)

var (
	// mapPageFn is used by tests to inject failures into the single page
	// mapping step.
	mapPageFn = (*Mapper).mapPage
)

// undoRecord captures the state of a page before it was (re)mapped.
type undoRecord struct {
	virt   mm.VirtAddr
	entry  pageTableEntry
	mapped bool
}

// MapRange maps length bytes starting at phys to the virtual range starting
// at virt. Both addresses must have the same offset inside their page. The
// destination range must be unmapped unless OptOverwrite is specified. If
// the call fails, no page of the range is left modified.
func (m *Mapper) MapRange(phys mm.PhysAddr, length uintptr, virt mm.VirtAddr, opts Option) *kernel.Error {
	if err := checkMapArgs(length, opts); err != nil {
		return fail("map", err)
	}

	if phys.Offset() != virt.Offset() {
		return fail("map", ErrInvalidAlignment)
	}

	if phys.IsNull() || virt.IsNull() {
		return fail("map", ErrNullAddress)
	}

	pages := mm.PageCount(virt.Offset() + length)
	if !rangeFits(virt.Page().Index(), pages) {
		return fail("map", ErrNoVirtualSpace)
	}
	if !rangeFits(phys.Page().Index(), pages) {
		return fail("map", ErrNoPhysicalSpace)
	}

	m.lock.Acquire()
	defer m.lock.Release()

	if !m.ready {
		return fail("map", ErrNotReady)
	}

	return m.mapRange(phys.Page(), virt.Page(), pages, opts)
}

// MapRangeAnyVirt maps length bytes starting at phys to the first free
// virtual range that can hold them. The returned address has the same page
// offset as phys.
func (m *Mapper) MapRangeAnyVirt(phys mm.PhysAddr, length uintptr, opts Option) (mm.VirtAddr, *kernel.Error) {
	if err := checkMapArgs(length, opts); err != nil {
		return 0, fail("map any virt", err)
	}

	if phys.IsNull() {
		return 0, fail("map any virt", ErrNullAddress)
	}

	pages := mm.PageCount(phys.Offset() + length)
	if !rangeFits(phys.Page().Index(), pages) {
		return 0, fail("map any virt", ErrNoPhysicalSpace)
	}

	m.lock.Acquire()
	defer m.lock.Release()

	if !m.ready {
		return 0, fail("map any virt", ErrNotReady)
	}

	first, found := m.searchable.findClearRun(pages)
	if !found {
		return 0, fail("map any virt", ErrNoVirtualSpace)
	}

	virt := mm.PageFromIndex(first)
	if err := m.mapRange(phys.Page(), virt, pages, opts); err != nil {
		return 0, err
	}

	return mm.VirtAddr(virt).Add(phys.Offset()), nil
}

// MapRangeAnyPhys allocates enough physical pages to back length bytes
// starting at virt and maps them. If mapping fails the pages are released.
func (m *Mapper) MapRangeAnyPhys(virt mm.VirtAddr, length uintptr, opts Option) *kernel.Error {
	if err := checkMapArgs(length, opts); err != nil {
		return fail("map any phys", err)
	}

	if virt.IsNull() {
		return fail("map any phys", ErrNullAddress)
	}

	pages := mm.PageCount(virt.Offset() + length)
	if !rangeFits(virt.Page().Index(), pages) {
		return fail("map any phys", ErrNoVirtualSpace)
	}

	m.lock.Acquire()
	defer m.lock.Release()

	if !m.ready {
		return fail("map any phys", ErrNotReady)
	}

	if opts&OptOverwrite == 0 && !m.rangeUnmapped(virt.Page().Index(), pages) {
		return fail("map any phys", ErrAlreadyMapped)
	}

	_, err := m.mapAllocated(virt.Page(), pages, opts)
	return err
}

// MapRangeAny allocates enough physical pages to back length bytes and
// maps them to the first free virtual range.
func (m *Mapper) MapRangeAny(length uintptr, opts Option) (mm.VirtAddr, *kernel.Error) {
	if err := checkMapArgs(length, opts); err != nil {
		return 0, fail("map any", err)
	}

	pages := mm.PageCount(length)

	m.lock.Acquire()
	defer m.lock.Release()

	if !m.ready {
		return 0, fail("map any", ErrNotReady)
	}

	first, found := m.searchable.findClearRun(pages)
	if !found {
		return 0, fail("map any", ErrNoVirtualSpace)
	}

	virt := mm.PageFromIndex(first)
	if _, err := m.mapAllocated(virt, pages, opts); err != nil {
		return 0, err
	}

	return mm.VirtAddr(virt), nil
}

// mapAllocated backs pages pages starting at virt with freshly allocated
// physical memory. The caller must hold the lock.
func (m *Mapper) mapAllocated(virt mm.Page, pages uintptr, opts Option) (mm.PhysAddr, *kernel.Error) {
	if m.alloc == nil {
		return 0, fail("map", ErrNoAllocator)
	}

	phys, err := m.alloc.AllocPages(pages)
	if err != nil {
		return 0, err
	}

	if err = m.mapRange(phys.Page(), virt, pages, opts); err != nil {
		if freeErr := m.alloc.Free(phys, pages); freeErr != nil {
			klog.Errorf("vmm", "unable to release 0x%x after a failed mapping: %s", phys.Raw(), freeErr.Message)
		}
		return 0, err
	}

	return phys, nil
}

func checkMapArgs(length uintptr, opts Option) *kernel.Error {
	if !checkMapOptions(opts) {
		return ErrInvalidOption
	}
	if length == 0 {
		return ErrInvalidLength
	}
	return nil
}

// rangeUnmapped returns true if none of the pages in the range is mapped.
func (m *Mapper) rangeUnmapped(first, pages uintptr) bool {
	_, conflict := m.searchable.lastSetIn(first, pages)
	return !conflict
}

// mapRange maps pages pages one at a time. Every committed step records the
// previous state of its page so that a failure can be rolled back in
// reverse order. The caller must hold the lock.
func (m *Mapper) mapRange(phys, virt mm.Page, pages uintptr, opts Option) *kernel.Error {
	if opts&OptOverwrite == 0 && !m.rangeUnmapped(virt.Index(), pages) {
		return fail("map", ErrAlreadyMapped)
	}

	undo := make([]undoRecord, 0, pages)
	for i := uintptr(0); i < pages; i++ {
		rec, err := m.capture(mm.VirtAddr(virt))
		if err == nil {
			err = mapPageFn(m, mm.VirtAddr(virt), mm.PhysAddr(phys), opts)
		}

		if err != nil {
			klog.Warnf("vmm", "map 0x%x -> 0x%x failed: %s; rolling back %d pages", virt.Address(), phys.Address(), err.Message, len(undo))
			m.rollback(undo)
			return err
		}

		undo = append(undo, rec)
		virt, phys = virt.Next(), phys.Next()
	}

	return nil
}

// mapPage installs a single page mapping. The caller must hold the lock.
func (m *Mapper) mapPage(virt mm.VirtAddr, phys mm.PhysAddr, opts Option) *kernel.Error {
	entry, err := m.leaf(virt)
	if err != nil {
		return err
	}

	*entry = m.format.pageEntry(phys, opts)
	m.markMapped(virt.Page().Index())
	m.mmu.FlushTLBEntry(virt.Raw())
	return nil
}

// capture returns an undo record describing the current state of virt.
func (m *Mapper) capture(virt mm.VirtAddr) (undoRecord, *kernel.Error) {
	entry, err := m.leaf(virt)
	if err != nil {
		return undoRecord{}, err
	}

	return undoRecord{virt: virt, entry: *entry, mapped: m.searchable.isSet(virt.Page().Index())}, nil
}

// rollback replays undo records in reverse order. Failing to restore a page
// means the tables are corrupted and is fatal.
func (m *Mapper) rollback(undo []undoRecord) {
	for i := len(undo) - 1; i >= 0; i-- {
		rec := undo[i]
		entry, err := m.leaf(rec.virt)
		if err != nil {
			klog.Panic(errRollbackFailed)
			return
		}

		*entry = rec.entry
		if rec.mapped {
			m.markMapped(rec.virt.Page().Index())
		} else {
			m.markUnmapped(rec.virt.Page().Index())
		}
		m.mmu.FlushTLBEntry(rec.virt.Raw())
	}
}

func (m *Mapper) markMapped(page uintptr) {
	if !m.searchable.isSet(page) {
		m.searchable.set(page)
		m.mappedPages++
	}
}

func (m *Mapper) markUnmapped(page uintptr) {
	if m.searchable.isSet(page) {
		m.searchable.clear(page)
		m.mappedPages--
	}
}
