package vmm

import "github.com/jamesMFelder/FelineOS-sub000/kernel/mm"

// entryFlag describes a set of bits inside a page table entry. The meaning
// of each bit depends on the Format that produced the entry.
type entryFlag uint32

// pageTableEntry describes a 32-bit page table entry. These entries encode
// a physical address and a set of flags. The actual layout is defined by
// the active Format.
type pageTableEntry uint32

// HasFlags returns true if this entry has all the input flags set.
func (pte pageTableEntry) HasFlags(flags entryFlag) bool {
	return (uint32(pte) & uint32(flags)) == uint32(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte pageTableEntry) HasAnyFlag(flags entryFlag) bool {
	return (uint32(pte) & uint32(flags)) != 0
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *pageTableEntry) SetFlags(flags entryFlag) {
	*pte = (pageTableEntry)(uint32(*pte) | uint32(flags))
}

// ClearFlags unsets the input list of flags from the page table entry.
func (pte *pageTableEntry) ClearFlags(flags entryFlag) {
	*pte = (pageTableEntry)(uint32(*pte) &^ uint32(flags))
}

// Address returns the physical address stored in the bits selected by mask.
func (pte pageTableEntry) Address(mask uint32) mm.PhysAddr {
	return mm.PhysAddr(uint32(pte) & mask)
}

// SetAddress stores addr in the bits selected by mask.
func (pte *pageTableEntry) SetAddress(addr mm.PhysAddr, mask uint32) {
	*pte = (pageTableEntry)((uint32(*pte) &^ mask) | (uint32(addr.Raw()) & mask))
}
