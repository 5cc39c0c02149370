package vmm

import (
	"github.com/jamesMFelder/FelineOS-sub000/kernel"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
)

// IsMapped returns true if the page that contains virt is mapped.
func (m *Mapper) IsMapped(virt mm.VirtAddr) bool {
	m.lock.Acquire()
	defer m.lock.Release()

	page := virt.Page().Index()
	return page < mm.MaxPages && m.searchable.isSet(page)
}

// FindFreeVirtMem returns the lowest virtual address above page 0 where
// length bytes can be mapped without overlapping an existing mapping. It
// returns 0 if the address space is exhausted or paging has not been set
// up.
func (m *Mapper) FindFreeVirtMem(length uintptr) mm.VirtAddr {
	m.lock.Acquire()
	defer m.lock.Release()

	if !m.ready {
		return 0
	}

	first, found := m.searchable.findClearRun(mm.PageCount(length))
	if !found {
		return 0
	}
	return mm.VirtAddr(mm.PageFromIndex(first))
}

// Translate returns the physical address that virt is mapped to.
func (m *Mapper) Translate(virt mm.VirtAddr) (mm.PhysAddr, *kernel.Error) {
	m.lock.Acquire()
	defer m.lock.Release()

	if !m.ready {
		return 0, ErrNotReady
	}

	return m.translate(virt)
}

// translate looks up virt in the tables. The caller must hold the lock.
func (m *Mapper) translate(virt mm.VirtAddr) (mm.PhysAddr, *kernel.Error) {
	page := virt.Page().Index()
	if page >= mm.MaxPages || !m.searchable.isSet(page) {
		return 0, ErrNotMapped
	}

	entry, err := m.leaf(virt)
	if err != nil {
		return 0, err
	}

	if !m.format.pagePresent(*entry) {
		return 0, ErrNotMapped
	}

	return m.format.pageAddr(*entry).Add(virt.Offset()), nil
}
