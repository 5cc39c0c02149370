package mm

import "github.com/jamesMFelder/FelineOS-sub000/kernel"

var (
	// frameAllocator and frameReleaser point to the functions registered
	// using SetFrameAllocator.
	frameAllocator AllocFn
	frameReleaser  FreeFn

	errNoFrameAllocator = &kernel.Error{Module: "mm", Message: "no frame allocator registered"}
)

// AllocFn is a function that can allocate a physical page.
type AllocFn func() (PhysAddr, *kernel.Error)

// FreeFn is a function that releases a physical page obtained via AllocFn.
type FreeFn func(PhysAddr) *kernel.Error

// SetFrameAllocator registers the functions used by generic kernel code
// (e.g. the scheduler) to allocate and release single physical pages.
func SetFrameAllocator(allocFn AllocFn, freeFn FreeFn) {
	frameAllocator = allocFn
	frameReleaser = freeFn
}

// AllocFrame allocates a new physical page using the currently active
// frame allocator.
func AllocFrame() (PhysAddr, *kernel.Error) {
	if frameAllocator == nil {
		return 0, errNoFrameAllocator
	}
	return frameAllocator()
}

// FreeFrame releases a physical page using the currently active frame
// allocator.
func FreeFrame(addr PhysAddr) *kernel.Error {
	if frameReleaser == nil {
		return errNoFrameAllocator
	}
	return frameReleaser(addr)
}
