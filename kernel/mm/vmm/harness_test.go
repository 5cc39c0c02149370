package vmm

import (
	"testing"
	"unsafe"

	"github.com/jamesMFelder/FelineOS-sub000/kernel"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/cpu"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
)

const (
	testStorageVirt = mm.VirtAddr(0xc0400000)
	testStoragePhys = mm.PhysAddr(0x00400000)
	testKernelPhys  = mm.PhysAddr(0x00100000)
	testKernelVirt  = mm.VirtAddr(0xc0100000)
	testKernelEnd   = mm.VirtAddr(0xc0120000)
	testDevicePhys  = mm.PhysAddr(0xfe201000)
)

var testFormats = []Format{X86, ARMv7}

type testMemory struct {
	base uintptr
	buf  []byte
}

func (tm *testMemory) Bytes(addr, size uintptr) []byte {
	off := addr - tm.base
	return tm.buf[off : off+size]
}

type fakeMMU struct {
	flushed []uintptr
	root    uintptr
	enabled bool
}

func (f *fakeMMU) FlushTLBEntry(virtAddr uintptr) { f.flushed = append(f.flushed, virtAddr) }
func (f *fakeMMU) SwitchPDT(pdtPhysAddr uintptr)  { f.root = pdtPhysAddr }
func (f *fakeMMU) EnableTranslation()             { f.enabled = true }

type fakeAllocator struct {
	next     mm.PhysAddr
	allocErr *kernel.Error
	inUse    map[mm.PhysAddr]bool
	allocs   []uintptr
	frees    []mm.PhysAddr
}

func newFakeAllocator(next mm.PhysAddr) *fakeAllocator {
	return &fakeAllocator{next: next, inUse: make(map[mm.PhysAddr]bool)}
}

func (a *fakeAllocator) AllocPages(count uintptr) (mm.PhysAddr, *kernel.Error) {
	a.allocs = append(a.allocs, count)
	if a.allocErr != nil {
		return 0, a.allocErr
	}

	addr := a.next
	for i := uintptr(0); i < count; i++ {
		a.inUse[addr.Add(i<<mm.PageShift)] = true
	}
	a.next = addr.Add(count << mm.PageShift)
	return addr, nil
}

func (a *fakeAllocator) Free(addr mm.PhysAddr, count uintptr) *kernel.Error {
	for i := uintptr(0); i < count; i++ {
		page := addr.Add(i << mm.PageShift)
		delete(a.inUse, page)
		a.frees = append(a.frees, page)
	}
	return nil
}

func (a *fakeAllocator) InUse(addr mm.PhysAddr, count uintptr) bool {
	for i := uintptr(0); i < count; i++ {
		if !a.inUse[addr.Add(i<<mm.PageShift)] {
			return false
		}
	}
	return true
}

type harness struct {
	m   *Mapper
	mem *testMemory
	mmu *fakeMMU
}

func testSetupConfig() SetupConfig {
	return SetupConfig{
		KernelPhysStart: testKernelPhys,
		KernelVirtStart: testKernelVirt,
		KernelVirtEnd:   testKernelEnd,
		Devices: []DeviceRegion{
			{Name: "uart", Phys: testDevicePhys, Virt: mm.VirtAddr(testDevicePhys), Length: 0x100},
		},
	}
}

// newHarness returns a Mapper for format f that is attached to host memory
// but has not been set up yet.
func newHarness(t *testing.T, f Format) *harness {
	t.Helper()

	h := &harness{
		m:   new(Mapper),
		mem: &testMemory{base: testStorageVirt.Raw(), buf: make([]byte, f.StorageSize())},
		mmu: &fakeMMU{},
	}

	if err := h.m.Init(f, h.mem, h.mmu, testStorageVirt, testStoragePhys); err != nil {
		t.Fatal(err)
	}
	return h
}

// newReadyHarness returns a Mapper for format f with paging set up.
func newReadyHarness(t *testing.T, f Format) *harness {
	t.Helper()

	h := newHarness(t, f)
	if err := h.m.SetupPaging(testSetupConfig()); err != nil {
		t.Fatal(err)
	}
	h.mmu.flushed = nil
	return h
}

// read returns the table entry stored at the physical address addr.
func (h *harness) read(addr mm.PhysAddr) uint32 {
	off := addr.Diff(testStoragePhys)
	return *(*uint32)(unsafe.Pointer(&h.mem.buf[off]))
}

// walk translates virt using the hardware walk over the table storage.
func (h *harness) walk(virt mm.VirtAddr) (mm.PhysAddr, bool) {
	return Walk(h.m.format, testStoragePhys, virt, h.read)
}

// state returns copies of the table storage and the searchable bitmap.
func (h *harness) state() ([]byte, searchBitmap) {
	storage := make([]byte, len(h.mem.buf))
	copy(storage, h.mem.buf)
	return storage, h.m.searchable
}

func (h *harness) expectState(t *testing.T, storage []byte, searchable searchBitmap) {
	t.Helper()

	if string(storage) != string(h.mem.buf) {
		t.Error("expected page table storage to remain unchanged")
	}
	if searchable != h.m.searchable {
		t.Error("expected searchable bitmap to remain unchanged")
	}
}

func expectHalt(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if err := recover(); err != cpu.ErrHalted {
			t.Fatalf("expected cpu.Halt to be invoked; got %v", err)
		}
	}()
	fn()
}
