package pmm

import (
	"github.com/jamesMFelder/FelineOS-sub000/kernel"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
)

var (
	// ErrNoMemoryMap is returned by Bootstrap when the boot environment
	// did not report any available memory.
	ErrNoMemoryMap = mm.ErrNoMemoryMap

	// ErrNoBitmapSpace is returned by Bootstrap when no available region
	// can hold the bitmap storage.
	ErrNoBitmapSpace = &kernel.Error{Module: "pmm", Message: "no available region can hold the page bitmap"}

	// ErrNoMemory is returned when an allocation request cannot be
	// satisfied.
	ErrNoMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}

	// ErrInvalidPageCount is returned when a zero-page range is requested.
	ErrInvalidPageCount = &kernel.Error{Module: "pmm", Message: "page count must be greater than zero"}

	// ErrNullAddress is returned when a range starts at the reserved page 0.
	ErrNullAddress = &kernel.Error{Module: "pmm", Message: "null physical address"}

	// ErrOutOfRange is returned when a range is not covered by the bitmap.
	ErrOutOfRange = &kernel.Error{Module: "pmm", Message: "range is not covered by the page bitmap"}

	// ErrAlreadyInUse is returned when a reservation overlaps a page that
	// is already in use.
	ErrAlreadyInUse = &kernel.Error{Module: "pmm", Message: "range is already in use"}

	// ErrNotUsed is returned when freeing a range that contains pages
	// that are not currently reserved.
	ErrNotUsed = &kernel.Error{Module: "pmm", Message: "range is not in use"}

	// ErrNotReady is returned by calls issued before Bootstrap.
	ErrNotReady = &kernel.Error{Module: "pmm", Message: "physical memory manager not bootstrapped"}

	errAlreadyBootstrapped = &kernel.Error{Module: "pmm", Message: "bootstrap invoked twice"}
	errUnsatisfiable       = &kernel.Error{Module: "pmm", Message: "requested page count exceeds total pages"}
	errFreeTooManyPages    = &kernel.Error{Module: "pmm", Message: "attempted to free more pages than exist"}
)
