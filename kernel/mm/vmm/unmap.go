package vmm

import (
	"github.com/jamesMFelder/FelineOS-sub000/kernel"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/klog"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
)

// UnmapPage removes the mapping for the page that contains virt.
func (m *Mapper) UnmapPage(virt mm.VirtAddr) *kernel.Error {
	return m.UnmapRange(mm.VirtAddr(virt.Page()), mm.PageSize, 0)
}

// UnmapRange removes the mappings for every page overlapping the range
// [virt, virt+length). Every page must be mapped; otherwise the call fails
// without side effects. With OptFreePhys the physical pages backing the
// range are also released to the attached PhysAllocator; a backing page
// that is not reserved, or that backs more than one page of the range,
// fails the call with ErrNotOwned before anything is unmapped.
func (m *Mapper) UnmapRange(virt mm.VirtAddr, length uintptr, opts Option) *kernel.Error {
	if !checkUnmapOptions(opts) {
		return fail("unmap", ErrInvalidOption)
	}

	if length == 0 {
		return fail("unmap", ErrInvalidLength)
	}

	if virt.IsNull() {
		return fail("unmap", ErrNullAddress)
	}

	first, pages := virt.Page().Index(), mm.PageCount(virt.Offset()+length)
	if !rangeFits(first, pages) {
		return fail("unmap", ErrNoVirtualSpace)
	}

	m.lock.Acquire()
	defer m.lock.Release()

	if !m.ready {
		return fail("unmap", ErrNotReady)
	}

	for page := first; page < first+pages; page++ {
		if !m.searchable.isSet(page) {
			return fail("unmap", ErrNotMapped)
		}
	}

	freePhys := opts&OptFreePhys != 0
	if freePhys {
		if m.alloc == nil {
			return fail("unmap", ErrNoAllocator)
		}

		// Each physical page may back only one page of the range;
		// otherwise it would be freed twice.
		seen := make(map[mm.Page]struct{}, pages)
		for page := first; page < first+pages; page++ {
			phys, err := m.translate(mm.VirtAddr(mm.PageFromIndex(page)))
			if err != nil {
				return fail("unmap", err)
			}
			if _, dup := seen[phys.Page()]; dup || !m.alloc.InUse(phys, 1) {
				return fail("unmap", ErrNotOwned)
			}
			seen[phys.Page()] = struct{}{}
		}
	}

	for page := first; page < first+pages; page++ {
		pageVirt := mm.VirtAddr(mm.PageFromIndex(page))
		entry, err := m.leaf(pageVirt)
		if err != nil {
			klog.Panic(err)
			return err
		}

		phys := m.format.pageAddr(*entry)
		*entry = m.format.clearPage(*entry)
		m.markUnmapped(page)
		m.mmu.FlushTLBEntry(pageVirt.Raw())

		if freePhys {
			if err = m.alloc.Free(phys, 1); err != nil {
				klog.Panic(errUnmapFreeFailed)
				return err
			}
		}
	}

	return nil
}
