package mm

import (
	"testing"
	"unsafe"

	"github.com/jamesMFelder/FelineOS-sub000/kernel"
)

func TestPhysAddr(t *testing.T) {
	addr := PhysAddr(0x2345)

	if exp, got := PhysAddr(0x3345), addr.Add(0x1000); got != exp {
		t.Errorf("expected Add to return %x; got %x", exp, got)
	}
	if exp, got := PhysAddr(0x1345), addr.Sub(0x1000); got != exp {
		t.Errorf("expected Sub to return %x; got %x", exp, got)
	}
	if exp, got := uintptr(0x345), addr.Diff(0x2000); got != exp {
		t.Errorf("expected Diff to return %x; got %x", exp, got)
	}
	if exp, got := Page(0x2000), addr.Page(); got != exp {
		t.Errorf("expected Page to return %x; got %x", exp, got)
	}
	if exp, got := uintptr(0x345), addr.Offset(); got != exp {
		t.Errorf("expected Offset to return %x; got %x", exp, got)
	}
	if addr.IsNull() || addr.IsPageAligned() {
		t.Error("expected address to be non-null and unaligned")
	}
	if !PhysAddr(0xfff).IsNull() || !PhysAddr(0x1000).IsPageAligned() {
		t.Error("unexpected IsNull/IsPageAligned result")
	}
	if got := addr.Raw(); got != 0x2345 {
		t.Errorf("expected Raw to return 0x2345; got %x", got)
	}
}

func TestVirtAddr(t *testing.T) {
	addr := VirtAddr(0xc0001010)

	if exp, got := VirtAddr(0xc0002010), addr.Add(0x1000); got != exp {
		t.Errorf("expected Add to return %x; got %x", exp, got)
	}
	if exp, got := VirtAddr(0xc0000010), addr.Sub(0x1000); got != exp {
		t.Errorf("expected Sub to return %x; got %x", exp, got)
	}
	if exp, got := uintptr(0x1010), addr.Diff(0xc0000000); got != exp {
		t.Errorf("expected Diff to return %x; got %x", exp, got)
	}
	if exp, got := Page(0xc0001000), addr.Page(); got != exp {
		t.Errorf("expected Page to return %x; got %x", exp, got)
	}
	if exp, got := uintptr(0x10), addr.Offset(); got != exp {
		t.Errorf("expected Offset to return %x; got %x", exp, got)
	}
	if addr.IsNull() || addr.IsPageAligned() || !VirtAddr(0).IsNull() {
		t.Error("unexpected IsNull/IsPageAligned result")
	}
}

func TestRegion(t *testing.T) {
	r := Region{Addr: 0x1800, Length: 0x2000}

	if exp, got := PhysAddr(0x3800), r.End(); got != exp {
		t.Fatalf("expected End to return %x; got %x", exp, got)
	}

	if !r.Contains(0x1800) || !r.Contains(0x37ff) || r.Contains(0x3800) || r.Contains(0x17ff) {
		t.Fatal("unexpected Contains result")
	}

	specs := []struct {
		other Region
		exp   bool
	}{
		{Region{Addr: 0, Length: 0x1800}, false},
		{Region{Addr: 0, Length: 0x1801}, true},
		{Region{Addr: 0x3800, Length: 0x1000}, false},
		{Region{Addr: 0x37ff, Length: 1}, true},
		{Region{Addr: 0x2000, Length: 0}, false},
	}
	for specIndex, spec := range specs {
		if got := r.Overlaps(spec.other); got != spec.exp {
			t.Errorf("[spec %d] expected Overlaps to return %t", specIndex, spec.exp)
		}
	}

	if exp, got := (Region{Addr: 0x2000, Length: 0x1000}), r.PageAligned(); got != exp {
		t.Errorf("expected PageAligned to return %+v; got %+v", exp, got)
	}

	if exp, got := (Region{Addr: 0x1000, Length: 0x3000}), r.PageCovering(); got != exp {
		t.Errorf("expected PageCovering to return %+v; got %+v", exp, got)
	}

	if got := (Region{Addr: 0x1100, Length: 0x100}).PageAligned(); !got.IsEmpty() {
		t.Errorf("expected PageAligned of a sub-page region to be empty; got %+v", got)
	}
}

func TestRegionEndingAtMaxPhysAddr(t *testing.T) {
	r := Region{Addr: 0xc0000000, Length: 0x40000000}

	if got := r.Limit(); got != MaxPhysAddr {
		t.Fatalf("expected Limit to return 0x%x; got 0x%x", MaxPhysAddr, got)
	}

	if got := r.EndPage(); got != MaxPages {
		t.Fatalf("expected EndPage to return 0x%x; got 0x%x", MaxPages, got)
	}

	if got := r.PageAligned(); got != r {
		t.Fatalf("expected PageAligned to return %+v; got %+v", r, got)
	}

	if got := r.PageCovering(); got != r {
		t.Fatalf("expected PageCovering to return %+v; got %+v", r, got)
	}

	if !r.Contains(0xffffffff) || !r.Overlaps(Region{Addr: 0xfffff000, Length: 0x1000}) {
		t.Fatal("expected the last page to be inside the region")
	}
}

func TestBootInfo(t *testing.T) {
	info := &BootInfo{
		Available:       []Region{{Addr: 0x1000, Length: 0x9f000}, {Addr: 0x100000, Length: 0x700000}},
		Unavailable:     []Region{{Addr: 0xfffc0000, Length: 0x40000}},
		KernelPhysStart: 0x100000,
		KernelPhysEnd:   0x180000,
	}

	if err := info.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exp, got := uint64(0x100000000), info.HighestAddress(); got != exp {
		t.Fatalf("expected HighestAddress to return %x; got %x", exp, got)
	}

	if exp, got := MaxPages, info.PageLimit(); got != exp {
		t.Fatalf("expected PageLimit to return %d; got %d", exp, got)
	}

	info.PhysLimit = 0x800000
	if exp, got := uintptr(0x800), info.PageLimit(); got != exp {
		t.Fatalf("expected PageLimit to return %d; got %d", exp, got)
	}
	if exp, got := uint64(0x800000), info.HighestAddress(); got != exp {
		t.Fatalf("expected clamped HighestAddress to return %x; got %x", exp, got)
	}

	if exp, got := (Region{Addr: 0x100000, Length: 0x80000}), info.KernelImage(); got != exp {
		t.Fatalf("expected KernelImage to return %+v; got %+v", exp, got)
	}

	if err := (&BootInfo{Available: []Region{{Addr: 0x1000}}}).Validate(); err != ErrNoMemoryMap {
		t.Fatalf("expected ErrNoMemoryMap; got %v", err)
	}
}

func TestFrameAllocator(t *testing.T) {
	defer SetFrameAllocator(nil, nil)

	if _, err := AllocFrame(); err != errNoFrameAllocator {
		t.Fatalf("expected errNoFrameAllocator; got %v", err)
	}
	if err := FreeFrame(0x1000); err != errNoFrameAllocator {
		t.Fatalf("expected errNoFrameAllocator; got %v", err)
	}

	var freed PhysAddr
	SetFrameAllocator(
		func() (PhysAddr, *kernel.Error) { return 0xbadf000, nil },
		func(addr PhysAddr) *kernel.Error { freed = addr; return nil },
	)

	addr, err := AllocFrame()
	if err != nil || addr != 0xbadf000 {
		t.Fatalf("expected custom allocator to return 0xbadf000; got %x, %v", addr, err)
	}

	if err := FreeFrame(addr); err != nil || freed != addr {
		t.Fatalf("expected custom free function to be invoked with %x; got %x", addr, freed)
	}
}

func TestDirectMemory(t *testing.T) {
	buf := make([]byte, 8)
	view := DirectMemory{}.Bytes(uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	view[3] = 0xaa

	if buf[3] != 0xaa {
		t.Fatal("expected DirectMemory to overlay the supplied address")
	}
}
