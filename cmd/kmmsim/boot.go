package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/jamesMFelder/FelineOS-sub000/emu"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/klog"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/kmain"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
)

// Boot implements subcommands.Command for the "boot" command.
type Boot struct {
	boardFlags

	// dump prints the active mappings after boot.
	dump bool
}

// Name implements subcommands.Command.Name.
func (*Boot) Name() string {
	return "boot"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Boot) Synopsis() string {
	return "boot the emulated board and print the memory layout"
}

// Usage implements subcommands.Command.Usage.
func (*Boot) Usage() string {
	return `boot [flags] - boot the emulated board, then print the memory map, the
physical memory totals and optionally the page table contents.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (b *Boot) SetFlags(f *flag.FlagSet) {
	b.setFlags(f)
	f.BoolVar(&b.dump, "dump", false, "print the active virtual memory mappings.")
}

// Execute implements subcommands.Command.Execute.
func (b *Boot) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	m, mgr, err := b.boot()
	if err != nil {
		return Errorf("boot failed: %v", err)
	}
	defer m.Close()

	printLayout(os.Stdout, m, mgr, b.dump)
	return subcommands.ExitSuccess
}

func printLayout(w io.Writer, m *emu.Machine, mgr *kmain.MemoryManager, dump bool) {
	info := m.BootInfo()
	storage := mgr.Phys.Storage()
	stats := m.Stats()

	fmt.Fprintf(w, "board: %s RAM, %s page tables at phys 0x%08x\n", mm.Size(m.Config().RAMSize), m.Format().Name(), mgr.Virt.Root().Raw())
	fmt.Fprintf(w, "kernel: phys 0x%08x-0x%08x, virt 0x%08x-0x%08x\n",
		info.KernelPhysStart.Raw(), info.KernelPhysEnd.Raw(), info.KernelVirtStart.Raw(), info.KernelVirtEnd.Raw())
	fmt.Fprintf(w, "bitmap: phys 0x%08x (%d bytes)\n", storage.Addr.Raw(), storage.Length)
	fmt.Fprintf(w, "pages: %d total, %d free, %d mapped (%s free)\n",
		mgr.Phys.TotalPages(), mgr.Phys.FreePages(), mgr.Virt.Stats().MappedPages, mm.Size(mgr.Phys.FreePages())*mm.Size(mm.PageSize))
	fmt.Fprintf(w, "mmu: %d TLB fills, %d hits, %d flushes\n", stats.TLBFills, stats.TLBHits, stats.TLBFlushes)

	if dump {
		fmt.Fprintln(w, "mappings:")
		mgr.Virt.Dump(&klog.PrefixWriter{Sink: w, Prefix: []byte("  ")})
	}
}
