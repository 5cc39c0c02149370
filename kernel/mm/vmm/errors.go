package vmm

import (
	"github.com/jamesMFelder/FelineOS-sub000/kernel"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/klog"
)

var (
	// ErrNotMapped is returned when accessing a virtual page that is not
	// mapped.
	ErrNotMapped = &kernel.Error{Module: "vmm", Message: "virtual address is not mapped"}

	// ErrAlreadyMapped is returned when mapping over an existing mapping
	// without OptOverwrite.
	ErrAlreadyMapped = &kernel.Error{Module: "vmm", Message: "virtual address is already mapped"}

	// ErrInvalidAlignment is returned when the physical and virtual
	// addresses have different page offsets.
	ErrInvalidAlignment = &kernel.Error{Module: "vmm", Message: "physical and virtual addresses have different page offsets"}

	// ErrNoVirtualSpace is returned when a range does not fit in the
	// virtual address space.
	ErrNoVirtualSpace = &kernel.Error{Module: "vmm", Message: "not enough virtual address space"}

	// ErrNoPhysicalSpace is returned when a physical range cannot be
	// encoded in a page table entry.
	ErrNoPhysicalSpace = &kernel.Error{Module: "vmm", Message: "physical range exceeds the addressable space"}

	// ErrNullAddress is returned when a range starts inside page 0.
	ErrNullAddress = &kernel.Error{Module: "vmm", Message: "null address"}

	// ErrInvalidOption is returned for unknown or conflicting options.
	ErrInvalidOption = &kernel.Error{Module: "vmm", Message: "invalid option"}

	// ErrInvalidLength is returned for zero-length ranges.
	ErrInvalidLength = &kernel.Error{Module: "vmm", Message: "range length must be greater than zero"}

	// ErrNotReady is returned by calls issued before SetupPaging.
	ErrNotReady = &kernel.Error{Module: "vmm", Message: "paging has not been set up"}

	// ErrNoAllocator is returned when physical pages are needed but no
	// PhysAllocator has been attached.
	ErrNoAllocator = &kernel.Error{Module: "vmm", Message: "no physical allocator attached"}

	// ErrNotOwned is returned by UnmapRange with OptFreePhys when a
	// backing page is not reserved in the physical allocator or backs more
	// than one page of the range.
	ErrNotOwned = &kernel.Error{Module: "vmm", Message: "backing physical page is not reserved"}

	errAlreadySetup     = &kernel.Error{Module: "vmm", Message: "paging set up twice"}
	errNoTable          = &kernel.Error{Module: "vmm", Message: "directory slot does not point to a page table"}
	errRollbackFailed   = &kernel.Error{Module: "vmm", Message: "unable to roll back partial mapping"}
	errSetupIncomplete  = &kernel.Error{Module: "vmm", Message: "bootstrap mapping is missing after setup"}
	errUnmapFreeFailed  = &kernel.Error{Module: "vmm", Message: "physical allocator rejected a page it reported in use"}
	errStorageAlignment = &kernel.Error{Module: "vmm", Message: "page table storage is not aligned to the directory size"}
)

// fail logs err at the warning level and returns it.
func fail(op string, err *kernel.Error) *kernel.Error {
	klog.Warnf("vmm", "%s: %s", op, err.Message)
	return err
}
