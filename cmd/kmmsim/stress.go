package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync/atomic"

	"github.com/google/subcommands"
	"github.com/jamesMFelder/FelineOS-sub000/emu"
	"github.com/jamesMFelder/FelineOS-sub000/kernel"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/kmain"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm/pmm"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm/vmm"
	"golang.org/x/sync/errgroup"
)

// Stress implements subcommands.Command for the "stress" command.
type Stress struct {
	boardFlags

	workers    int
	iterations int
	maxPages   int
	seed       int64
}

// Name implements subcommands.Command.Name.
func (*Stress) Name() string {
	return "stress"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Stress) Synopsis() string {
	return "run concurrent allocation and mapping workers"
}

// Usage implements subcommands.Command.Usage.
func (*Stress) Usage() string {
	return `stress [flags] - boot the emulated board and run -workers goroutines
that allocate, map, translate, unmap and free memory concurrently. Every
reservation is recorded in a ledger that is checked against the physical
bitmap once all workers finish.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Stress) SetFlags(f *flag.FlagSet) {
	s.setFlags(f)
	f.IntVar(&s.workers, "workers", 4, "number of concurrent workers.")
	f.IntVar(&s.iterations, "iterations", 1000, "operations per worker.")
	f.IntVar(&s.maxPages, "max-pages", 16, "maximum number of pages per range.")
	f.Int64Var(&s.seed, "seed", 1, "random seed; worker i uses seed+i.")
}

// Execute implements subcommands.Command.Execute.
func (s *Stress) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 || s.workers <= 0 || s.iterations < 0 || s.maxPages <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	m, mgr, err := s.boot()
	if err != nil {
		return Errorf("boot failed: %v", err)
	}
	defer m.Close()

	cfg := stressConfig{workers: s.workers, iterations: s.iterations, maxPages: s.maxPages, seed: s.seed}
	if err := runStress(ctx, os.Stdout, m, mgr, cfg); err != nil {
		return Errorf("stress failed: %v", err)
	}
	return subcommands.ExitSuccess
}

type stressConfig struct {
	workers    int
	iterations int
	maxPages   int
	seed       int64
}

// stressCounters aggregates the operations performed by all workers.
type stressCounters struct {
	mapped    atomic.Uint64
	released  atomic.Uint64
	exhausted atomic.Uint64
}

// stressRange is a range owned by a worker. Ranges obtained through
// MapRangeAny own their physical pages through the mapping; the others were
// allocated separately and are freed after unmapping.
type stressRange struct {
	virt      mm.VirtAddr
	phys      mm.PhysAddr
	pages     uintptr
	freeAfter bool
}

// runStress runs the stress workers and verifies that the physical bitmap
// returns to its post-boot state.
func runStress(ctx context.Context, w io.Writer, m *emu.Machine, mgr *kmain.MemoryManager, cfg stressConfig) error {
	var (
		baseline = mgr.Phys.Snapshot()
		ledger   = emu.NewLedger()
		counters stressCounters
	)

	if err := checkRangePages(mgr, uintptr(cfg.maxPages)); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.workers; i++ {
		worker := &stressWorker{
			mgr:      mgr,
			ledger:   ledger,
			counters: &counters,
			rnd:      rand.New(rand.NewSource(cfg.seed + int64(i))),
			maxPages: cfg.maxPages,
		}
		g.Go(func() error {
			return worker.run(ctx, cfg.iterations)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if n := ledger.Len(); n != 0 {
		return fmt.Errorf("%d reservation(s) left in the ledger", n)
	}
	if err := ledger.Verify(mgr.Phys.Snapshot(), baseline, mgr.Phys.TotalPages()); err != nil {
		return err
	}

	stats := m.Stats()
	fmt.Fprintf(w, "workers: %d, mapped: %d, released: %d, exhausted: %d\n",
		cfg.workers, counters.mapped.Load(), counters.released.Load(), counters.exhausted.Load())
	fmt.Fprintf(w, "mmu: %d TLB flushes; %d pages free, %d pages mapped\n",
		stats.TLBFlushes, mgr.Phys.FreePages(), mgr.Virt.Stats().MappedPages)
	return nil
}

// maxOwned is the number of ranges a worker holds before releasing one.
const maxOwned = 8

type stressWorker struct {
	mgr      *kmain.MemoryManager
	ledger   *emu.Ledger
	counters *stressCounters
	rnd      *rand.Rand
	maxPages int

	owned []stressRange
}

func (sw *stressWorker) run(ctx context.Context, iterations int) error {
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if len(sw.owned) == maxOwned || (len(sw.owned) != 0 && sw.rnd.Intn(3) == 0) {
			if err := sw.release(sw.rnd.Intn(len(sw.owned))); err != nil {
				return err
			}
			continue
		}

		if err := sw.acquire(); err != nil {
			return err
		}
	}

	for len(sw.owned) != 0 {
		if err := sw.release(len(sw.owned) - 1); err != nil {
			return err
		}
	}
	return nil
}

// acquire maps a new range. Half of the ranges are backed through
// MapRangeAny; the rest are allocated from the physical memory manager and
// mapped with MapRangeAnyVirt.
func (sw *stressWorker) acquire() error {
	var (
		pages = uintptr(1 + sw.rnd.Intn(sw.maxPages))
		r     = stressRange{pages: pages, freeAfter: sw.rnd.Intn(2) == 0}
		kerr  *kernel.Error
	)

	if r.freeAfter {
		if r.phys, kerr = sw.mgr.Phys.AllocPages(pages); kerr != nil {
			return sw.exhausted(kerr)
		}
		if r.virt, kerr = sw.mgr.Virt.MapRangeAnyVirt(r.phys, pages*mm.PageSize, 0); kerr != nil {
			if freeErr := sw.mgr.Phys.Free(r.phys, pages); freeErr != nil {
				return freeErr
			}
			return sw.exhausted(kerr)
		}
	} else {
		if r.virt, kerr = sw.mgr.Virt.MapRangeAny(pages*mm.PageSize, 0); kerr != nil {
			return sw.exhausted(kerr)
		}
		if r.phys, kerr = sw.mgr.Virt.Translate(r.virt); kerr != nil {
			return kerr
		}
	}

	if err := sw.ledger.Add(r.phys, pages); err != nil {
		return err
	}

	// Every page of the range must translate to the matching physical
	// page.
	for p := uintptr(0); p < pages; p++ {
		phys, kerr := sw.mgr.Virt.Translate(r.virt.Add(p * mm.PageSize))
		if kerr != nil {
			return kerr
		}
		if exp := r.phys.Add(p * mm.PageSize); phys != exp {
			return fmt.Errorf("virt 0x%x translates to 0x%x; expected 0x%x", r.virt.Add(p*mm.PageSize).Raw(), phys.Raw(), exp.Raw())
		}
	}

	sw.owned = append(sw.owned, r)
	sw.counters.mapped.Add(1)
	return nil
}

// release unmaps and frees the owned range at index. The ledger entry is
// dropped first so that the pages can be handed out again as soon as they
// are freed.
func (sw *stressWorker) release(index int) error {
	r := sw.owned[index]
	sw.owned = append(sw.owned[:index], sw.owned[index+1:]...)

	if err := sw.ledger.Remove(r.phys, r.pages); err != nil {
		return err
	}

	if r.freeAfter {
		if kerr := sw.mgr.Virt.UnmapRange(r.virt, r.pages*mm.PageSize, 0); kerr != nil {
			return kerr
		}
		if kerr := sw.mgr.Phys.Free(r.phys, r.pages); kerr != nil {
			return kerr
		}
	} else if kerr := sw.mgr.Virt.UnmapRange(r.virt, r.pages*mm.PageSize, vmm.OptFreePhys); kerr != nil {
		return kerr
	}

	sw.counters.released.Add(1)
	return nil
}

// exhausted absorbs out-of-memory conditions, which are expected when the
// workers hold many ranges at once.
func (sw *stressWorker) exhausted(kerr *kernel.Error) error {
	if kerr == pmm.ErrNoMemory || kerr == vmm.ErrNoVirtualSpace {
		sw.counters.exhausted.Add(1)
		return nil
	}
	return kerr
}
