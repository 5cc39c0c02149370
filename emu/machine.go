// Package emu implements a hosted board that runs the kernel memory
// management code as an ordinary process.
//
// Physical memory is backed by an anonymous mapping. The emulated MMU
// resolves CPU-visible addresses by walking the page tables stored in that
// memory and caches the results in a per-page TLB which, as on hardware,
// keeps serving stale translations until they are invalidated.
package emu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/jamesMFelder/FelineOS-sub000/kernel"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/cpu"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/kmain"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm/vmm"
	"golang.org/x/sys/unix"
)

// ErrHalted is returned by Boot when the kernel halted during bring-up.
var ErrHalted = errors.New("kernel halted during boot")

// Fault describes an emulated page fault. Machine raises it as a panic
// value when the kernel touches an address it cannot resolve.
type Fault struct {
	Addr   uintptr
	Reason string
}

// Error implements error.
func (f *Fault) Error() string {
	return fmt.Sprintf("page fault at 0x%08x: %s", f.Addr, f.Reason)
}

// Stats counts emulated MMU events.
type Stats struct {
	TLBHits      uint64
	TLBFills     uint64
	TLBFlushes   uint64
	RootSwitches uint64
}

// Machine is an emulated board. It implements mm.Memory and cpu.MMU.
type Machine struct {
	cfg    Config
	format vmm.Format
	info   *mm.BootInfo

	// ram is the emulated physical memory.
	ram []byte

	// Until translation is enabled, addresses inside the boot window are
	// offset-mapped onto the kernel image and everything else is
	// identity-mapped.
	bootStart, bootEnd uintptr
	bootOffset         uintptr

	storageVirt mm.VirtAddr
	storagePhys mm.PhysAddr

	mu      sync.Mutex
	root    mm.PhysAddr
	enabled bool
	tlb     map[uintptr]uintptr
	stats   Stats

	mgr *kmain.MemoryManager
}

var (
	_ mm.Memory = (*Machine)(nil)
	_ cpu.MMU   = (*Machine)(nil)
)

// NewMachine allocates the emulated RAM and lays out the kernel image for
// cfg. The page table storage is appended to the kernel image.
func NewMachine(cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	format, err := cfg.Format()
	if err != nil {
		return nil, err
	}

	ram, err := unix.Mmap(-1, 0, int(cfg.RAMSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("allocating %d bytes of RAM: %w", cfg.RAMSize, err)
	}

	info := cfg.bootInfo(format)
	offset := uintptr(cfg.Kernel.VirtOffset)

	m := &Machine{
		cfg:         cfg,
		format:      format,
		info:        info,
		ram:         ram,
		bootStart:   mm.LargePageOf(info.KernelVirtStart.Raw()).Address(),
		bootEnd:     mm.RoundUp(info.KernelVirtEnd.Raw(), mm.LargePageSize),
		bootOffset:  offset,
		storagePhys: mm.PhysAddr(cfg.tableStorage(format)),
		tlb:         make(map[uintptr]uintptr),
	}
	m.storageVirt = mm.VirtAddr(m.storagePhys.Raw() + offset)

	return m, nil
}

// Config returns the board description.
func (m *Machine) Config() Config { return m.cfg }

// BootInfo returns the boot information handed to the kernel.
func (m *Machine) BootInfo() *mm.BootInfo { return m.info }

// Format returns the page table format used by the board.
func (m *Machine) Format() vmm.Format { return m.format }

// Hardware returns the hardware description passed to kmain.
func (m *Machine) Hardware() kmain.Hardware {
	return kmain.Hardware{
		Memory:           m,
		MMU:              m,
		Format:           m.format,
		TableStorageVirt: m.storageVirt,
		TableStoragePhys: m.storagePhys,
		Devices:          m.cfg.devices(),
	}
}

// Boot runs the kernel memory management bring-up on the board.
func (m *Machine) Boot() (mgr *kmain.MemoryManager, err error) {
	if m.mgr != nil {
		return nil, errors.New("machine already booted")
	}

	defer func() {
		if r := recover(); r != nil {
			if r != cpu.ErrHalted {
				panic(r)
			}
			mgr, err = nil, ErrHalted
		}
	}()

	var kerr *kernel.Error
	if mgr, kerr = kmain.New(m.info, m.Hardware()); kerr != nil {
		return nil, fmt.Errorf("boot: %w", kerr)
	}

	m.mgr = mgr
	return mgr, nil
}

// Manager returns the memory managers created by Boot.
func (m *Machine) Manager() *kmain.MemoryManager { return m.mgr }

// Close releases the emulated RAM.
func (m *Machine) Close() error {
	if m.ram == nil {
		return nil
	}
	err := unix.Munmap(m.ram)
	m.ram = nil
	return err
}

// Stats returns the emulated MMU counters.
func (m *Machine) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Bytes implements mm.Memory. The range must be backed by physically
// contiguous RAM; otherwise Bytes panics with a *Fault.
func (m *Machine) Bytes(addr, size uintptr) []byte {
	if size == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	phys := m.resolve(addr)
	for page := mm.PageOf(addr).Next(); page.Address() < addr+size; page = page.Next() {
		if next := m.resolve(page.Address()); next != phys+(page.Address()-addr) {
			panic(&Fault{Addr: page.Address(), Reason: "access spans discontiguous physical pages"})
		}
	}

	return m.physBytes(addr, phys, size)
}

// PhysBytes returns a slice overlaying size bytes of RAM at phys.
func (m *Machine) PhysBytes(phys mm.PhysAddr, size uintptr) []byte {
	return m.physBytes(phys.Raw(), phys.Raw(), size)
}

func (m *Machine) physBytes(addr, phys, size uintptr) []byte {
	if uint64(phys)+uint64(size) > uint64(len(m.ram)) {
		panic(&Fault{Addr: addr, Reason: "access outside RAM"})
	}
	return m.ram[phys : phys+size : phys+size]
}

// resolve returns the physical address for addr. The caller must hold mu.
func (m *Machine) resolve(addr uintptr) uintptr {
	if !m.enabled {
		if addr >= m.bootStart && addr < m.bootEnd {
			return addr - m.bootOffset
		}
		return addr
	}

	page, offset := mm.PageOf(addr).Address(), addr&(mm.PageSize-1)
	if phys, hit := m.tlb[page]; hit {
		m.stats.TLBHits++
		return phys + offset
	}

	phys, ok := vmm.Walk(m.format, m.root, mm.VirtAddr(page), m.readEntry)
	if !ok {
		panic(&Fault{Addr: addr, Reason: "page not mapped"})
	}

	m.tlb[page] = phys.Raw()
	m.stats.TLBFills++
	return phys.Raw() + offset
}

func (m *Machine) readEntry(addr mm.PhysAddr) uint32 {
	return binary.NativeEndian.Uint32(m.physBytes(addr.Raw(), addr.Raw(), 4))
}

// FlushTLBEntry implements cpu.MMU.
func (m *Machine) FlushTLBEntry(virtAddr uintptr) {
	m.mu.Lock()
	delete(m.tlb, mm.PageOf(virtAddr).Address())
	m.stats.TLBFlushes++
	m.mu.Unlock()
}

// SwitchPDT implements cpu.MMU.
func (m *Machine) SwitchPDT(pdtPhysAddr uintptr) {
	m.mu.Lock()
	m.root = mm.PhysAddr(pdtPhysAddr)
	m.tlb = make(map[uintptr]uintptr)
	m.stats.RootSwitches++
	m.mu.Unlock()
}

// EnableTranslation implements cpu.MMU.
func (m *Machine) EnableTranslation() {
	m.mu.Lock()
	m.enabled = true
	m.mu.Unlock()
}
