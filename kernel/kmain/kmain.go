// Package kmain brings up the kernel memory management subsystems.
package kmain

import (
	"github.com/jamesMFelder/FelineOS-sub000/kernel"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/cpu"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/klog"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm/pmm"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm/vmm"
)

var (
	errAlreadyInitialized = &kernel.Error{Module: "kmain", Message: "memory management initialized twice"}

	// initialized is set once Init has brought up the kernel singletons.
	initialized bool
)

// Hardware describes the platform services and the page table storage that
// the architecture bring-up code hands over to Init.
type Hardware struct {
	// Memory provides access to memory at CPU-visible addresses.
	Memory mm.Memory

	// MMU drives the memory management unit.
	MMU cpu.MMU

	// Format selects the page table layout; a nil value selects
	// vmm.Native.
	Format vmm.Format

	// The page table storage must be Format.StorageSize() bytes long,
	// aligned to Format.RootAlign() and located inside the kernel image.
	TableStorageVirt mm.VirtAddr
	TableStoragePhys mm.PhysAddr

	// Devices lists register blocks that must be mapped at boot.
	Devices []vmm.DeviceRegion
}

// MemoryManager bundles the physical and virtual memory managers of an
// address space. The rest of the kernel receives it explicitly from Init.
type MemoryManager struct {
	Phys *pmm.Manager
	Virt *vmm.Mapper
}

// Init brings up the kernel's memory managers: it sets up paging using the
// supplied hardware, bootstraps the physical memory manager and registers
// it as the kernel frame allocator. Any error is fatal. Init must only be
// invoked once.
func Init(info *mm.BootInfo, hw Hardware) (*MemoryManager, *kernel.Error) {
	if initialized {
		klog.Panic(errAlreadyInitialized)
		return nil, errAlreadyInitialized
	}

	mgr := &MemoryManager{Phys: &pmm.Kernel, Virt: &vmm.Kernel}
	if err := mgr.bringUp(info, hw); err != nil {
		klog.Panic(err)
		return nil, err
	}

	mm.SetFrameAllocator(mgr.Phys.AllocPage, mgr.Phys.FreePage)
	initialized = true
	return mgr, nil
}

// New brings up a private pair of memory managers using the same sequence
// as Init. Errors are returned to the caller instead of halting. It is used
// by hosted boards that run several machines inside one process.
func New(info *mm.BootInfo, hw Hardware) (*MemoryManager, *kernel.Error) {
	mgr := &MemoryManager{Phys: new(pmm.Manager), Virt: new(vmm.Mapper)}
	if err := mgr.bringUp(info, hw); err != nil {
		return nil, err
	}
	return mgr, nil
}

func (mgr *MemoryManager) bringUp(info *mm.BootInfo, hw Hardware) *kernel.Error {
	var err *kernel.Error

	if err = info.Validate(); err != nil {
		return err
	}

	format := hw.Format
	if format == nil {
		format = vmm.Native
	}

	if err = mgr.Virt.Init(format, hw.Memory, hw.MMU, hw.TableStorageVirt, hw.TableStoragePhys); err != nil {
		return err
	}

	if err = mgr.Virt.SetupPaging(vmm.SetupConfig{
		KernelPhysStart: info.KernelPhysStart,
		KernelVirtStart: info.KernelVirtStart,
		KernelVirtEnd:   info.KernelVirtEnd,
		Devices:         hw.Devices,
	}); err != nil {
		return err
	}

	// The mapper has no allocator attached yet, so the bitmap storage can
	// be mapped while the physical memory manager holds its lock.
	if err = mgr.Phys.Bootstrap(info, mgr.Virt, hw.Memory); err != nil {
		return err
	}

	mgr.Virt.SetAllocator(mgr.Phys)
	mgr.Phys.PrintMemoryMap(info)
	klog.Infof("kmain", "memory management online: %d/%d pages free, %d pages mapped",
		mgr.Phys.FreePages(), mgr.Phys.TotalPages(), mgr.Virt.Stats().MappedPages)
	return nil
}
