// Package vmm manages the kernel's page tables.
//
// The Mapper keeps a statically sized table storage block (a directory
// followed by one table per directory slot) together with a searchable
// bitmap that mirrors which virtual pages are mapped. All structural
// changes are serialized by a spinlock. When a map operation needs
// physical pages the Mapper calls into the attached PhysAllocator while
// holding its own lock, so callers must never invoke the Mapper while
// holding the physical allocator's lock.
package vmm

import (
	"unsafe"

	"github.com/jamesMFelder/FelineOS-sub000/kernel"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/cpu"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/klog"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/sync"
)

// Kernel is the Mapper that manages the kernel address space.
var Kernel Mapper

// PhysAllocator is implemented by physical memory managers that can back
// mappings with physical pages.
type PhysAllocator interface {
	AllocPages(count uintptr) (mm.PhysAddr, *kernel.Error)
	Free(addr mm.PhysAddr, count uintptr) *kernel.Error
	InUse(addr mm.PhysAddr, count uintptr) bool
}

// Mapper manages a single address space.
type Mapper struct {
	// lock serializes every change to the tables and the searchable
	// bitmap.
	lock sync.Spinlock

	format Format
	geom   layout
	mem    mm.Memory
	mmu    cpu.MMU

	// The table storage block. dir overlays the directory and tables
	// overlays all second-level tables, which are laid out back to back
	// right after the directory.
	storageVirt mm.VirtAddr
	storagePhys mm.PhysAddr
	storage     []byte
	dir         []pageTableEntry
	tables      []pageTableEntry

	searchable searchBitmap

	alloc PhysAllocator

	mappedPages uintptr

	initialized bool
	ready       bool
}

// Init attaches the Mapper to its table storage. The storage must be
// format.StorageSize() bytes long, accessible at storageVirt through mem
// and aligned to format.RootAlign() in physical memory.
func (m *Mapper) Init(format Format, mem mm.Memory, mmu cpu.MMU, storageVirt mm.VirtAddr, storagePhys mm.PhysAddr) *kernel.Error {
	m.lock.Acquire()
	defer m.lock.Release()

	if m.ready {
		klog.Panic(errAlreadySetup)
		return errAlreadySetup
	}

	if storagePhys.Raw()&(format.RootAlign()-1) != 0 || storagePhys.IsNull() {
		return fail("init", errStorageAlignment)
	}

	m.format = format
	m.geom = format.layout()
	m.mem = mem
	m.mmu = mmu
	m.storageVirt = storageVirt
	m.storagePhys = storagePhys
	m.storage = mem.Bytes(storageVirt.Raw(), format.StorageSize())

	entries := unsafe.Slice((*pageTableEntry)(unsafe.Pointer(&m.storage[0])), len(m.storage)/entrySize)
	m.dir = entries[:m.geom.dirEntries]
	m.tables = entries[m.geom.dirEntries:]
	m.initialized = true

	return nil
}

// SetAllocator attaches the physical allocator used by MapRangeAnyPhys,
// MapRangeAny and UnmapRange with OptFreePhys.
func (m *Mapper) SetAllocator(alloc PhysAllocator) {
	m.lock.Acquire()
	m.alloc = alloc
	m.lock.Release()
}

// Format returns the page table format managed by m.
func (m *Mapper) Format() Format { return m.format }

// Root returns the physical address of the directory.
func (m *Mapper) Root() mm.PhysAddr { return m.storagePhys }

// Stats describes the state of the address space.
type Stats struct {
	MappedPages uintptr
}

// Stats returns the current address space statistics.
func (m *Mapper) Stats() Stats {
	m.lock.Acquire()
	defer m.lock.Release()
	return Stats{MappedPages: m.mappedPages}
}

// tablePhys returns the physical address of the table for directory slot
// index.
func (m *Mapper) tablePhys(index uintptr) mm.PhysAddr {
	return m.storagePhys.Add(m.geom.dirSize() + index*m.geom.tableSize())
}

// leaf returns a pointer to the table entry for the page that contains
// virt. It fails if the directory slot does not point to its static table.
func (m *Mapper) leaf(virt mm.VirtAddr) (*pageTableEntry, *kernel.Error) {
	dirIndex := m.geom.dirIndex(virt)
	dirEntry := m.dir[dirIndex]
	if m.format.dirKind(dirEntry) != dirTable || m.format.tableAddr(dirEntry) != m.tablePhys(dirIndex) {
		return nil, errNoTable
	}

	return &m.tables[dirIndex*m.geom.tableEntries+m.geom.tableIndex(virt)], nil
}

// rangeFits returns true if pages pages starting at page first lie inside
// the 4G address space.
func rangeFits(first, pages uintptr) bool {
	return first < mm.MaxPages && pages <= mm.MaxPages-first
}
