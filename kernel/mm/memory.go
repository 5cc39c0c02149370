package mm

import "github.com/jamesMFelder/FelineOS-sub000/kernel"

// Memory provides byte-level access to memory at CPU-visible (virtual)
// addresses.
type Memory interface {
	// Bytes returns a slice overlaying size bytes starting at addr.
	Bytes(addr, size uintptr) []byte
}

// DirectMemory implements Memory by overlaying the requested address
// directly. It is only usable when running on bare metal.
type DirectMemory struct{}

// Bytes implements Memory.
func (DirectMemory) Bytes(addr, size uintptr) []byte {
	return kernel.Overlay(addr, size)
}
