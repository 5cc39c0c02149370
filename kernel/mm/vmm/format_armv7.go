package vmm

import "github.com/jamesMFelder/FelineOS-sub000/kernel/mm"

// ARMv7 short-descriptor first-level entry bits.
const (
	armL1TypeTable   entryFlag = 0x1
	armL1TypeSection entryFlag = 0x2
	armL1TypeMask    entryFlag = 0x3

	armSectionB   entryFlag = 1 << 2
	armSectionC   entryFlag = 1 << 3
	armSectionAP0 entryFlag = 1 << 10
	armSectionAP1 entryFlag = 1 << 11
	armSectionTEX entryFlag = 1 << 12
	armSectionAP2 entryFlag = 1 << 15

	armL1TableAddrMask   = uint32(0xfffffc00)
	armL1SectionAddrMask = uint32(0xfff00000)
)

// ARMv7 short-descriptor second-level small page bits.
const (
	armPageXN    entryFlag = 1 << 0
	armPageSmall entryFlag = 1 << 1
	armPageB     entryFlag = 1 << 2
	armPageC     entryFlag = 1 << 3
	armPageAP0   entryFlag = 1 << 4
	armPageAP1   entryFlag = 1 << 5
	armPageTEX   entryFlag = 1 << 6
	armPageAP2   entryFlag = 1 << 9
	armPageS     entryFlag = 1 << 10
	armPageNG    entryFlag = 1 << 11

	armPageAddrMask = uint32(0xfffff000)
)

// ARMv7 is the short-descriptor format: a 4096-entry first-level table
// (16K aligned) where each entry covers 1M and either maps a section or
// points to a 256-entry coarse second-level table.
var ARMv7 Format = armv7Format{}

type armv7Format struct{}

func (armv7Format) Name() string           { return "armv7" }
func (armv7Format) RootAlign() uintptr     { return 16 << 10 }
func (f armv7Format) StorageSize() uintptr { return f.layout().storageSize() }

func (armv7Format) layout() layout {
	return layout{dirShift: 20, dirEntries: 4096, tableEntries: 256}
}

func (armv7Format) tableEntry(table mm.PhysAddr) pageTableEntry {
	var e pageTableEntry
	e.SetAddress(table, armL1TableAddrMask)
	e.SetFlags(armL1TypeTable)
	return e
}

func (armv7Format) largeEntry(phys mm.PhysAddr, opts Option) pageTableEntry {
	var e pageTableEntry
	e.SetAddress(phys, armL1SectionAddrMask)
	e.SetFlags(armL1TypeSection)

	// Memory type: TEX 001 C B is normal write-back memory while B on its
	// own selects shareable device memory.
	if opts&OptDevice != 0 {
		e.SetFlags(armSectionB)
	} else {
		e.SetFlags(armSectionTEX | armSectionC | armSectionB)
	}

	e.SetFlags(armSectionAP0)
	if opts&OptUser != 0 {
		e.SetFlags(armSectionAP1)
	}
	if opts&OptReadOnly != 0 {
		e.SetFlags(armSectionAP2)
	}
	return e
}

func (armv7Format) pageEntry(phys mm.PhysAddr, opts Option) pageTableEntry {
	var e pageTableEntry
	e.SetAddress(phys, armPageAddrMask)
	e.SetFlags(armPageSmall)

	if opts&OptDevice != 0 {
		e.SetFlags(armPageB)
	} else {
		e.SetFlags(armPageTEX | armPageC | armPageB)
	}

	e.SetFlags(armPageAP0)
	if opts&OptUser != 0 {
		e.SetFlags(armPageAP1)
	}
	if opts&OptReadOnly != 0 {
		e.SetFlags(armPageAP2)
	}
	return e
}

func (armv7Format) dirKind(e pageTableEntry) dirEntryKind {
	switch entryFlag(e) & armL1TypeMask {
	case armL1TypeTable:
		return dirTable
	case armL1TypeSection:
		return dirLarge
	default:
		return dirInvalid
	}
}

func (armv7Format) tableAddr(e pageTableEntry) mm.PhysAddr { return e.Address(armL1TableAddrMask) }
func (armv7Format) largeAddr(e pageTableEntry) mm.PhysAddr { return e.Address(armL1SectionAddrMask) }
func (armv7Format) pagePresent(e pageTableEntry) bool      { return e.HasFlags(armPageSmall) }
func (armv7Format) pageAddr(e pageTableEntry) mm.PhysAddr  { return e.Address(armPageAddrMask) }

func (armv7Format) pageOptions(e pageTableEntry) Option {
	var opts Option
	if e.HasFlags(armPageAP2) {
		opts |= OptReadOnly
	}
	if e.HasFlags(armPageAP1) {
		opts |= OptUser
	}
	if !e.HasFlags(armPageC) {
		opts |= OptDevice
	}
	return opts
}

func (armv7Format) clearPage(e pageTableEntry) pageTableEntry {
	e.ClearFlags(armPageSmall | armPageXN)
	return e
}
