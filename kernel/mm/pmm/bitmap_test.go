package pmm

import (
	"testing"

	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
)

func TestBitmapFindClearRun(t *testing.T) {
	specs := []struct {
		bm       bitmap
		from     uintptr
		count    uintptr
		limit    uintptr
		expIndex uintptr
		expFound bool
	}{
		{bitmap{0x00}, 1, 1, 8, 1, true},
		{bitmap{0x01}, 0, 7, 8, 1, true},
		{bitmap{0x01}, 0, 8, 8, 0, false},
		{bitmap{0xff, 0x00}, 1, 4, 16, 8, true},
		{bitmap{0b10110101, 0xfe}, 1, 2, 16, 0, false},
		{bitmap{0b00110101, 0xfe}, 1, 2, 16, 6, true},
		{bitmap{0x0f, 0xff, 0x0f}, 1, 6, 24, 0, false},
		{bitmap{0x0f, 0xff, 0x0f}, 1, 4, 24, 4, true},
		{bitmap{0x00, 0x00}, 1, 4, 3, 0, false},
	}

	for specIndex, spec := range specs {
		index, found := spec.bm.findClearRun(spec.from, spec.count, spec.limit)
		if found != spec.expFound || index != spec.expIndex {
			t.Errorf("[spec %d] expected (%d, %t); got (%d, %t)", specIndex, spec.expIndex, spec.expFound, index, found)
		}
	}
}

func TestBitmapRanges(t *testing.T) {
	bm := make(bitmap, 2)
	bm.setRange(3, 10)

	if !bm.allSet(3, 10) || bm.allSet(2, 2) || bm.isSet(13) {
		t.Fatal("unexpected bitmap state after setRange")
	}

	if exp, got := uintptr(6), bm.countClear(16); got != exp {
		t.Fatalf("expected %d clear bits; got %d", exp, got)
	}

	bm.clearRange(5, 3)
	if bm.isSet(5) || bm.isSet(7) || !bm.isSet(8) {
		t.Fatal("unexpected bitmap state after clearRange")
	}
}

func TestLocateStorage(t *testing.T) {
	specs := []struct {
		descr    string
		info     mm.BootInfo
		size     uintptr
		exp      mm.Region
		expFound bool
	}{
		{
			"page 0 is skipped",
			mm.BootInfo{Available: []mm.Region{{Addr: 0, Length: 0x10000}}},
			0x1000,
			mm.Region{Addr: 0x1000, Length: 0x1000},
			true,
		},
		{
			"slides past the kernel image",
			mm.BootInfo{
				Available:       []mm.Region{{Addr: 0x100000, Length: 0x100000}},
				KernelPhysStart: 0x100000,
				KernelPhysEnd:   0x123456,
			},
			0x2000,
			mm.Region{Addr: 0x124000, Length: 0x2000},
			true,
		},
		{
			"kernel leaves no room in first region",
			mm.BootInfo{
				Available: []mm.Region{
					{Addr: 0x1000, Length: 0x3000},
					{Addr: 0x10000, Length: 0x4000},
				},
				KernelPhysStart: 0x2000,
				KernelPhysEnd:   0x3000,
			},
			0x2000,
			mm.Region{Addr: 0x10000, Length: 0x2000},
			true,
		},
		{
			"unaligned available region is rounded inwards",
			mm.BootInfo{Available: []mm.Region{{Addr: 0x1800, Length: 0x2000}}},
			0x1000,
			mm.Region{Addr: 0x2000, Length: 0x1000},
			true,
		},
		{
			"avoids reserved and blob regions",
			mm.BootInfo{
				Available:   []mm.Region{{Addr: 0x1000, Length: 0x8000}},
				Unavailable: []mm.Region{{Addr: 0x3000, Length: 0x100}},
				BootBlob:    mm.Region{Addr: 0x1000, Length: 0x1800},
			},
			0x2000,
			mm.Region{Addr: 0x4000, Length: 0x2000},
			true,
		},
		{
			"nothing fits",
			mm.BootInfo{Available: []mm.Region{{Addr: 0x1000, Length: 0x1000}}},
			0x2000,
			mm.Region{},
			false,
		},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			got, found := locateStorage(&spec.info, spec.size, mm.MaxPages)
			if found != spec.expFound || got != spec.exp {
				t.Fatalf("expected (%+v, %t); got (%+v, %t)", spec.exp, spec.expFound, got, found)
			}
		})
	}
}
