package vmm

import "github.com/jamesMFelder/FelineOS-sub000/kernel/mm"

// dirEntryKind classifies a directory entry.
type dirEntryKind uint8

const (
	dirInvalid dirEntryKind = iota
	dirTable
	dirLarge
)

// Format describes a two-level hardware page table layout: a directory
// whose entries either point to a second-level table or map a large page
// directly. The set of formats is closed; use X86, ARMv7 or Native.
type Format interface {
	// Name returns a short identifier for the format.
	Name() string

	// RootAlign returns the required alignment of the directory.
	RootAlign() uintptr

	// StorageSize returns the number of bytes needed to store the
	// directory followed by one table for every directory slot.
	StorageSize() uintptr

	layout() layout

	// tableEntry returns a directory entry that points to the table at
	// the supplied address.
	tableEntry(table mm.PhysAddr) pageTableEntry

	// largeEntry returns a directory entry that maps a large page.
	largeEntry(phys mm.PhysAddr, opts Option) pageTableEntry

	// pageEntry returns a table entry that maps a single page.
	pageEntry(phys mm.PhysAddr, opts Option) pageTableEntry

	dirKind(e pageTableEntry) dirEntryKind
	tableAddr(e pageTableEntry) mm.PhysAddr
	largeAddr(e pageTableEntry) mm.PhysAddr

	pagePresent(e pageTableEntry) bool
	pageAddr(e pageTableEntry) mm.PhysAddr

	// pageOptions decodes the attribute bits of a table entry.
	pageOptions(e pageTableEntry) Option

	// clearPage returns e with its present bits cleared.
	clearPage(e pageTableEntry) pageTableEntry
}

// layout captures the geometry shared by both supported formats.
type layout struct {
	// dirShift is the number of virtual address bits covered by a
	// single directory entry.
	dirShift uintptr

	dirEntries   uintptr
	tableEntries uintptr
}

const entrySize = 4

func (l layout) dirSize() uintptr   { return l.dirEntries * entrySize }
func (l layout) tableSize() uintptr { return l.tableEntries * entrySize }

func (l layout) storageSize() uintptr {
	return l.dirSize() + l.dirEntries*l.tableSize()
}

func (l layout) dirIndex(virt mm.VirtAddr) uintptr {
	return virt.Raw() >> l.dirShift
}

func (l layout) tableIndex(virt mm.VirtAddr) uintptr {
	return (virt.Raw() >> mm.PageShift) & (l.tableEntries - 1)
}

// Walk translates virt the way the hardware page walker would, starting at
// the directory located at root. The read function returns the 32-bit
// entry stored at a physical address.
func Walk(f Format, root mm.PhysAddr, virt mm.VirtAddr, read func(mm.PhysAddr) uint32) (mm.PhysAddr, bool) {
	l := f.layout()
	if virt.Raw()>>l.dirShift >= l.dirEntries {
		return 0, false
	}

	dirEntry := pageTableEntry(read(root.Add(l.dirIndex(virt) * entrySize)))
	switch f.dirKind(dirEntry) {
	case dirLarge:
		return f.largeAddr(dirEntry).Add(virt.Raw() & (1<<l.dirShift - 1)), true
	case dirTable:
		entry := pageTableEntry(read(f.tableAddr(dirEntry).Add(l.tableIndex(virt) * entrySize)))
		if !f.pagePresent(entry) {
			return 0, false
		}
		return f.pageAddr(entry).Add(virt.Offset()), true
	default:
		return 0, false
	}
}
