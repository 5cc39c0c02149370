package vmm

import "github.com/jamesMFelder/FelineOS-sub000/kernel/mm"

const (
	// x86FlagPresent is set when the entry is valid.
	x86FlagPresent entryFlag = 1 << iota

	// x86FlagRW is set if the page can be written to.
	x86FlagRW

	// x86FlagUser is set if user-mode code can access this page.
	x86FlagUser

	// x86FlagWriteThrough selects write-through caching.
	x86FlagWriteThrough

	// x86FlagNoCache prevents this page from being cached.
	x86FlagNoCache

	// x86FlagAccessed is set by the CPU when this page is accessed.
	x86FlagAccessed

	// x86FlagDirty is set by the CPU when this page is modified.
	x86FlagDirty

	// x86FlagLargePage is set on directory entries that map a 4M page.
	x86FlagLargePage

	// x86FlagGlobal prevents the TLB entry from being flushed when the
	// directory is switched.
	x86FlagGlobal
)

const (
	x86PageAddrMask  = uint32(0xfffff000)
	x86LargeAddrMask = uint32(0xffc00000)
)

// X86 is the 32-bit x86 two-level format: a 1024-entry directory where each
// entry covers 4M and either maps a PSE large page or points to a
// 1024-entry page table.
var X86 Format = x86Format{}

type x86Format struct{}

func (x86Format) Name() string           { return "x86" }
func (x86Format) RootAlign() uintptr     { return mm.PageSize }
func (f x86Format) StorageSize() uintptr { return f.layout().storageSize() }

func (x86Format) layout() layout {
	return layout{dirShift: 22, dirEntries: 1024, tableEntries: 1024}
}

func (x86Format) tableEntry(table mm.PhysAddr) pageTableEntry {
	var e pageTableEntry
	e.SetAddress(table, x86PageAddrMask)
	e.SetFlags(x86FlagPresent | x86FlagRW | x86FlagUser)
	return e
}

func (x86Format) attrFlags(opts Option) entryFlag {
	flags := x86FlagPresent
	if opts&OptReadOnly == 0 {
		flags |= x86FlagRW
	}
	if opts&OptUser != 0 {
		flags |= x86FlagUser
	}
	if opts&OptDevice != 0 {
		flags |= x86FlagNoCache | x86FlagWriteThrough
	}
	return flags
}

func (f x86Format) largeEntry(phys mm.PhysAddr, opts Option) pageTableEntry {
	var e pageTableEntry
	e.SetAddress(phys, x86LargeAddrMask)
	e.SetFlags(f.attrFlags(opts) | x86FlagLargePage)
	return e
}

func (f x86Format) pageEntry(phys mm.PhysAddr, opts Option) pageTableEntry {
	var e pageTableEntry
	e.SetAddress(phys, x86PageAddrMask)
	e.SetFlags(f.attrFlags(opts))
	return e
}

func (x86Format) dirKind(e pageTableEntry) dirEntryKind {
	switch {
	case !e.HasFlags(x86FlagPresent):
		return dirInvalid
	case e.HasFlags(x86FlagLargePage):
		return dirLarge
	default:
		return dirTable
	}
}

func (x86Format) tableAddr(e pageTableEntry) mm.PhysAddr { return e.Address(x86PageAddrMask) }
func (x86Format) largeAddr(e pageTableEntry) mm.PhysAddr { return e.Address(x86LargeAddrMask) }
func (x86Format) pagePresent(e pageTableEntry) bool      { return e.HasFlags(x86FlagPresent) }
func (x86Format) pageAddr(e pageTableEntry) mm.PhysAddr  { return e.Address(x86PageAddrMask) }

func (x86Format) pageOptions(e pageTableEntry) Option {
	var opts Option
	if !e.HasFlags(x86FlagRW) {
		opts |= OptReadOnly
	}
	if e.HasFlags(x86FlagUser) {
		opts |= OptUser
	}
	if e.HasAnyFlag(x86FlagNoCache | x86FlagWriteThrough) {
		opts |= OptDevice
	}
	return opts
}

func (x86Format) clearPage(e pageTableEntry) pageTableEntry {
	e.ClearFlags(x86FlagPresent)
	return e
}
