package vmm

import (
	"github.com/jamesMFelder/FelineOS-sub000/kernel"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/klog"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
)

// DeviceRegion describes a block of memory-mapped device registers that
// must be mapped while paging is set up.
type DeviceRegion struct {
	Name   string
	Phys   mm.PhysAddr
	Virt   mm.VirtAddr
	Length uintptr
}

// SetupConfig describes the bootstrap mappings installed by SetupPaging.
type SetupConfig struct {
	// KernelPhysStart is the physical load address of the kernel image
	// which is mapped at [KernelVirtStart, KernelVirtEnd).
	KernelPhysStart mm.PhysAddr
	KernelVirtStart mm.VirtAddr
	KernelVirtEnd   mm.VirtAddr

	Devices []DeviceRegion
}

// SetupPaging populates the table storage, maps the kernel image and the
// supplied device regions, installs the directory and enables translation.
// SetupPaging must be called exactly once after Init and before any other
// mapping call.
func (m *Mapper) SetupPaging(cfg SetupConfig) *kernel.Error {
	m.lock.Acquire()
	defer m.lock.Release()

	if m.ready {
		klog.Panic(errAlreadySetup)
		return errAlreadySetup
	}

	if !m.initialized {
		return fail("setup", ErrNotReady)
	}

	if err := checkSetupConfig(&cfg); err != nil {
		return fail("setup", err)
	}

	kernel.Memset(m.storage, 0)
	m.searchable = searchBitmap{}
	m.mappedPages = 0
	for index := range m.dir {
		m.dir[index] = m.format.tableEntry(m.tablePhys(uintptr(index)))
	}

	kernelLen := cfg.KernelVirtEnd.Diff(cfg.KernelVirtStart)
	m.mapDirect(cfg.KernelPhysStart, cfg.KernelVirtStart, kernelLen, 0)
	for _, dev := range cfg.Devices {
		m.mapDirect(dev.Phys, dev.Virt, dev.Length, OptDevice)
	}

	m.assertMapped(cfg.KernelVirtStart, "kernel start")
	m.assertMapped(cfg.KernelVirtEnd.Sub(1), "kernel end")
	for _, dev := range cfg.Devices {
		m.assertMapped(dev.Virt, dev.Name)
		m.assertMapped(dev.Virt.Add(dev.Length-1), dev.Name)
	}

	m.mmu.SwitchPDT(m.storagePhys.Raw())
	m.mmu.EnableTranslation()
	m.ready = true

	klog.Infof("vmm", "paging enabled using %s tables at phys 0x%x; kernel 0x%x-0x%x -> 0x%x, %d device region(s)",
		m.format.Name(), m.storagePhys.Raw(), cfg.KernelVirtStart.Raw(), cfg.KernelVirtEnd.Raw(), cfg.KernelPhysStart.Raw(), len(cfg.Devices))
	return nil
}

func checkSetupConfig(cfg *SetupConfig) *kernel.Error {
	if cfg.KernelVirtEnd <= cfg.KernelVirtStart {
		return ErrInvalidLength
	}

	if cfg.KernelPhysStart.Offset() != cfg.KernelVirtStart.Offset() {
		return ErrInvalidAlignment
	}

	if cfg.KernelPhysStart.IsNull() || cfg.KernelVirtStart.IsNull() {
		return ErrNullAddress
	}

	kernelPages := mm.PageCount(cfg.KernelVirtStart.Offset() + cfg.KernelVirtEnd.Diff(cfg.KernelVirtStart))
	if !rangeFits(cfg.KernelVirtStart.Page().Index(), kernelPages) {
		return ErrNoVirtualSpace
	}
	if !rangeFits(cfg.KernelPhysStart.Page().Index(), kernelPages) {
		return ErrNoPhysicalSpace
	}

	for _, dev := range cfg.Devices {
		switch {
		case dev.Length == 0:
			return ErrInvalidLength
		case dev.Phys.Offset() != dev.Virt.Offset():
			return ErrInvalidAlignment
		case dev.Phys.IsNull() || dev.Virt.IsNull():
			return ErrNullAddress
		}

		pages := mm.PageCount(dev.Virt.Offset() + dev.Length)
		if !rangeFits(dev.Virt.Page().Index(), pages) {
			return ErrNoVirtualSpace
		}
		if !rangeFits(dev.Phys.Page().Index(), pages) {
			return ErrNoPhysicalSpace
		}
	}

	return nil
}

// mapDirect writes bootstrap mappings straight into the tables. Flushing
// the TLB is not needed as translation is not enabled yet.
func (m *Mapper) mapDirect(phys mm.PhysAddr, virt mm.VirtAddr, length uintptr, opts Option) {
	pages := mm.PageCount(virt.Offset() + length)
	physPage, virtPage := phys.Page(), virt.Page()

	for i := uintptr(0); i < pages; i++ {
		entry, err := m.leaf(mm.VirtAddr(virtPage))
		if err != nil {
			klog.Panic(err)
			return
		}

		*entry = m.format.pageEntry(mm.PhysAddr(physPage), opts)
		m.markMapped(virtPage.Index())
		physPage, virtPage = physPage.Next(), virtPage.Next()
	}
}

func (m *Mapper) assertMapped(virt mm.VirtAddr, what string) {
	if !m.searchable.isSet(virt.Page().Index()) {
		klog.Errorf("vmm", "%s (0x%x) is not mapped after setup", what, virt.Raw())
		klog.Panic(errSetupIncomplete)
	}
}
