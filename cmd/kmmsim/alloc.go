package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/jamesMFelder/FelineOS-sub000/emu"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/kmain"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm/vmm"
)

// Alloc implements subcommands.Command for the "alloc" command.
type Alloc struct {
	boardFlags

	pages  uint
	count  uint
	device bool
	user   bool
}

// Name implements subcommands.Command.Name.
func (*Alloc) Name() string {
	return "alloc"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Alloc) Synopsis() string {
	return "allocate, map and release memory ranges"
}

// Usage implements subcommands.Command.Usage.
func (*Alloc) Usage() string {
	return `alloc [flags] - boot the emulated board, map -count ranges of -pages
pages backed by freshly allocated physical memory, write to them through the
emulated MMU and release them again. The physical bitmap must return to its
post-boot state.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (a *Alloc) SetFlags(f *flag.FlagSet) {
	a.setFlags(f)
	f.UintVar(&a.pages, "pages", 1, "number of pages per range.")
	f.UintVar(&a.count, "count", 1, "number of ranges to allocate.")
	f.BoolVar(&a.device, "device", false, "map the ranges with device memory attributes.")
	f.BoolVar(&a.user, "user", false, "make the ranges accessible from user mode.")
}

// Execute implements subcommands.Command.Execute.
func (a *Alloc) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 || a.pages == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	var opts vmm.Option
	if a.device {
		opts |= vmm.OptDevice
	}
	if a.user {
		opts |= vmm.OptUser
	}

	m, mgr, err := a.boot()
	if err != nil {
		return Errorf("boot failed: %v", err)
	}
	defer m.Close()

	if err := allocRanges(os.Stdout, m, mgr, uintptr(a.pages), int(a.count), opts); err != nil {
		return Errorf("alloc failed: %v", err)
	}
	return subcommands.ExitSuccess
}

// mappedRange is a range mapped by allocRanges.
type mappedRange struct {
	virt mm.VirtAddr
	phys mm.PhysAddr
}

// allocRanges maps count ranges of pages pages, fills each one with a
// pattern through the emulated MMU, checks the pattern in physical memory
// and releases the ranges. The bitmap is verified against a ledger of the
// outstanding reservations at every step.
func allocRanges(w io.Writer, m *emu.Machine, mgr *kmain.MemoryManager, pages uintptr, count int, opts vmm.Option) error {
	var (
		baseline = mgr.Phys.Snapshot()
		total    = mgr.Phys.TotalPages()
		ledger   = emu.NewLedger()
		length   = pages * mm.PageSize
		ranges   []mappedRange
	)

	if err := checkRangePages(mgr, pages); err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		virt, kerr := mgr.Virt.MapRangeAny(length, opts)
		if kerr != nil {
			return fmt.Errorf("range %d: %w", i, kerr)
		}

		phys, kerr := mgr.Virt.Translate(virt)
		if kerr != nil {
			return fmt.Errorf("range %d: %w", i, kerr)
		}

		if err := ledger.Add(phys, pages); err != nil {
			return err
		}

		data := m.Bytes(virt.Raw(), length)
		for j := range data {
			data[j] = byte(i + j)
		}

		ranges = append(ranges, mappedRange{virt: virt, phys: phys})
		fmt.Fprintf(w, "range %d: virt 0x%08x -> phys 0x%08x (%d pages, %s)\n", i, virt.Raw(), phys.Raw(), pages, opts)
	}

	if err := ledger.Verify(mgr.Phys.Snapshot(), baseline, total); err != nil {
		return err
	}

	for i, r := range ranges {
		for j, b := range m.PhysBytes(r.phys, length) {
			if b != byte(i+j) {
				return fmt.Errorf("range %d: byte %d of phys 0x%x reads 0x%x", i, j, r.phys.Raw(), b)
			}
		}

		if err := ledger.Remove(r.phys, pages); err != nil {
			return err
		}
		if kerr := mgr.Virt.UnmapRange(r.virt, length, vmm.OptFreePhys); kerr != nil {
			return fmt.Errorf("range %d: %w", i, kerr)
		}
	}

	if err := ledger.Verify(mgr.Phys.Snapshot(), baseline, total); err != nil {
		return err
	}

	fmt.Fprintf(w, "released %d range(s); %d pages free\n", len(ranges), mgr.Phys.FreePages())
	return nil
}
