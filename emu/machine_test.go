package emu

import (
	"bytes"
	"errors"
	"testing"

	"github.com/jamesMFelder/FelineOS-sub000/kernel"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm/pmm"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm/vmm"
)

func newTestMachine(t *testing.T, cfg Config) *Machine {
	t.Helper()

	m, err := NewMachine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := m.Close(); err != nil {
			t.Error(err)
		}
	})
	return m
}

func expectFault(t *testing.T, reason string, fn func()) {
	t.Helper()
	defer func() {
		fault, ok := recover().(*Fault)
		if !ok {
			t.Fatal("expected an emulated page fault")
		}
		if fault.Reason != reason {
			t.Fatalf("expected fault reason %q; got %q", reason, fault.Reason)
		}
	}()
	fn()
}

func TestMachineBoot(t *testing.T) {
	specs := []struct {
		descr  string
		cfg    Config
		format vmm.Format
	}{
		{"default", DefaultConfig(), vmm.X86},
		{"armv7 board", testBoardConfig(), vmm.ARMv7},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			m := newTestMachine(t, spec.cfg)

			mgr, err := m.Boot()
			if err != nil {
				t.Fatal(err)
			}

			if mgr.Virt.Format() != spec.format {
				t.Fatalf("expected %s tables; got %s", spec.format.Name(), mgr.Virt.Format().Name())
			}

			if mgr.Virt.Root() != m.storagePhys {
				t.Fatalf("expected tables at 0x%x; got 0x%x", m.storagePhys, mgr.Virt.Root())
			}

			stats := m.Stats()
			if stats.RootSwitches != 1 || stats.TLBFills == 0 {
				t.Fatalf("unexpected MMU stats after boot: %+v", stats)
			}

			info := m.BootInfo()
			if !mgr.Phys.InUse(info.KernelPhysStart, mm.PageCount(info.KernelPhysEnd.Diff(info.KernelPhysStart))) {
				t.Fatal("expected the kernel image and page tables to be reserved")
			}

			if !mgr.Phys.InUse(mm.PhysAddr(spec.cfg.BootBlob.Start), 1) {
				t.Fatal("expected the boot blob to be reserved")
			}

			for _, dev := range spec.cfg.devices() {
				if phys, err := mgr.Virt.Translate(dev.Virt); err != nil || phys != dev.Phys {
					t.Errorf("expected device %s to be mapped to 0x%x; got 0x%x, %v", dev.Name, dev.Phys, phys, err)
				}
			}

			if _, err = m.Boot(); err == nil {
				t.Fatal("expected second boot to fail")
			}
		})
	}
}

func TestMachineBootFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Available = []RegionConfig{{Start: 0x100000, Length: 0x481000}}
	m := newTestMachine(t, cfg)

	if _, err := m.Boot(); !errors.Is(err, pmm.ErrNoBitmapSpace) {
		t.Fatalf("expected ErrNoBitmapSpace; got %v", err)
	}
}

func TestMachineMemoryAccess(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())

	// Before translation is enabled the kernel window is offset-mapped.
	storage := m.Bytes(m.storageVirt.Raw(), 16)
	storage[3] = 0xaa
	if got := m.PhysBytes(m.storagePhys, 16)[3]; got != 0xaa {
		t.Fatalf("expected the kernel window to alias the table storage; got 0x%x", got)
	}

	mgr, err := m.Boot()
	if err != nil {
		t.Fatal(err)
	}

	virt, kerr := mgr.Virt.MapRangeAny(2*mm.PageSize, 0)
	if kerr != nil {
		t.Fatal(kerr)
	}

	data := m.Bytes(virt.Raw(), 2*mm.PageSize)
	copy(data[mm.PageSize-2:], "kmm")

	phys, kerr := mgr.Virt.Translate(virt)
	if kerr != nil {
		t.Fatal(kerr)
	}

	if got := m.PhysBytes(phys.Add(mm.PageSize-2), 3); !bytes.Equal(got, []byte("kmm")) {
		t.Fatalf("expected write through the mapping to reach RAM; got %q", got)
	}

	if kerr = mgr.Virt.UnmapRange(virt, 2*mm.PageSize, vmm.OptFreePhys); kerr != nil {
		t.Fatal(kerr)
	}

	expectFault(t, "page not mapped", func() {
		m.Bytes(virt.Raw(), 1)
	})

	expectFault(t, "access outside RAM", func() {
		m.Bytes(0xfee00000, 4)
	})
}

func TestMachineTLB(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())

	mgr, err := m.Boot()
	if err != nil {
		t.Fatal(err)
	}

	var kerr *kernel.Error
	frames := make([]mm.PhysAddr, 2)
	for i := range frames {
		if frames[i], kerr = mgr.Phys.AllocPage(); kerr != nil {
			t.Fatal(kerr)
		}
		m.PhysBytes(frames[i], 1)[0] = byte('a' + i)
	}

	virt, kerr := mgr.Virt.MapRangeAnyVirt(frames[0], mm.PageSize, 0)
	if kerr != nil {
		t.Fatal(kerr)
	}

	if got := m.Bytes(virt.Raw(), 1)[0]; got != 'a' {
		t.Fatalf("expected to read 'a'; got %q", got)
	}

	before := m.Stats()
	if got := m.Bytes(virt.Raw(), 1)[0]; got != 'a' {
		t.Fatalf("expected to read 'a'; got %q", got)
	}
	if after := m.Stats(); after.TLBHits != before.TLBHits+1 {
		t.Fatalf("expected a TLB hit; stats before %+v, after %+v", before, after)
	}

	if kerr = mgr.Virt.MapRange(frames[1], mm.PageSize, virt, vmm.OptOverwrite); kerr != nil {
		t.Fatal(kerr)
	}

	if after := m.Stats(); after.TLBFlushes <= before.TLBFlushes {
		t.Fatal("expected remapping to invalidate the TLB entry")
	}

	if got := m.Bytes(virt.Raw(), 1)[0]; got != 'b' {
		t.Fatalf("expected remapped page to read 'b'; got %q", got)
	}

	// Rewriting an entry without invalidating it leaves the stale
	// translation in place.
	m.mu.Lock()
	m.tlb[virt.Raw()] = frames[0].Raw()
	m.mu.Unlock()
	if got := m.Bytes(virt.Raw(), 1)[0]; got != 'a' {
		t.Fatalf("expected the stale TLB entry to be used; got %q", got)
	}

	m.FlushTLBEntry(virt.Raw())
	if got := m.Bytes(virt.Raw(), 1)[0]; got != 'b' {
		t.Fatalf("expected a refill after invalidation; got %q", got)
	}
}

func TestMachineDiscontiguousAccess(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())

	mgr, err := m.Boot()
	if err != nil {
		t.Fatal(err)
	}

	virt := mgr.Virt.FindFreeVirtMem(2 * mm.PageSize)
	if kerr := mgr.Virt.MapRange(0x200000, mm.PageSize, virt, 0); kerr != nil {
		t.Fatal(kerr)
	}
	if kerr := mgr.Virt.MapRange(0x300000, mm.PageSize, virt.Add(mm.PageSize), 0); kerr != nil {
		t.Fatal(kerr)
	}

	expectFault(t, "access spans discontiguous physical pages", func() {
		m.Bytes(virt.Add(mm.PageSize-1).Raw(), 2)
	})
}

func TestMachineUnmapAliasedPage(t *testing.T) {
	m := newTestMachine(t, DefaultConfig())

	mgr, err := m.Boot()
	if err != nil {
		t.Fatal(err)
	}

	phys, kerr := mgr.Phys.AllocPage()
	if kerr != nil {
		t.Fatal(kerr)
	}

	virt := mgr.Virt.FindFreeVirtMem(2 * mm.PageSize)
	for i := uintptr(0); i < 2; i++ {
		if kerr = mgr.Virt.MapRange(phys, mm.PageSize, virt.Add(i*mm.PageSize), 0); kerr != nil {
			t.Fatal(kerr)
		}
	}

	if kerr = mgr.Virt.UnmapRange(virt, 2*mm.PageSize, vmm.OptFreePhys); kerr != vmm.ErrNotOwned {
		t.Fatalf("expected ErrNotOwned; got %v", kerr)
	}

	if !mgr.Virt.IsMapped(virt) || !mgr.Virt.IsMapped(virt.Add(mm.PageSize)) {
		t.Fatal("expected both aliases to stay mapped")
	}
	if !mgr.Phys.InUse(phys, 1) {
		t.Fatal("expected the shared page to stay reserved")
	}
}
