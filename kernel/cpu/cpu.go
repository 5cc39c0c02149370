// Package cpu describes the processor services that the memory management
// code depends on. The actual instructions are issued by the architecture
// bring-up code which provides an MMU implementation at boot.
package cpu

import "github.com/jamesMFelder/FelineOS-sub000/kernel"

// MMU exposes the privileged operations needed to drive the memory
// management unit.
type MMU interface {
	// FlushTLBEntry flushes a TLB entry for a particular virtual address.
	FlushTLBEntry(virtAddr uintptr)

	// SwitchPDT sets the root page table directory to point to the
	// specified physical address and flushes the TLB.
	SwitchPDT(pdtPhysAddr uintptr)

	// EnableTranslation turns on virtual address translation using the
	// root installed by SwitchPDT.
	EnableTranslation()
}

// ErrHalted is the value Halt panics with when the kernel runs as a hosted
// process and therefore cannot stop the processor.
var ErrHalted = &kernel.Error{Module: "cpu", Message: "cpu halted"}

// Halt stops instruction execution. Calls to Halt never return.
func Halt() {
	panic(ErrHalted)
}
