package kernel

import "unsafe"

// Overlay returns a byte slice of the given size whose backing array starts
// at addr. The caller is responsible for making sure that the address range
// is accessible by the CPU.
func Overlay(addr, size uintptr) []byte {
	if size == 0 {
		return nil
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}

// Memset sets every byte of target to the supplied value. Instead of using a
// for loop, this function uses log2(len(target)) copy calls which should give
// us a speed boost as page-sized blocks are always a power of two.
func Memset(target []byte, value byte) {
	if len(target) == 0 {
		return
	}

	// Set first element and make log2(size) optimized copies
	target[0] = value
	for index := 1; index < len(target); index *= 2 {
		copy(target[index:], target[:index])
	}
}
