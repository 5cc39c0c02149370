package vmm

import (
	"fmt"
	"io"

	"github.com/jamesMFelder/FelineOS-sub000/kernel/klog"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
)

// mappingRun describes a block of contiguous virtual pages that map to
// contiguous physical pages with identical attributes.
type mappingRun struct {
	virt  mm.VirtAddr
	phys  mm.PhysAddr
	pages uintptr
	opts  Option
}

func (r mappingRun) extends(virt mm.VirtAddr, phys mm.PhysAddr, opts Option) bool {
	size := r.pages << mm.PageShift
	return r.pages != 0 && r.virt.Add(size) == virt && r.phys.Add(size) == phys && r.opts == opts
}

func (r mappingRun) write(w io.Writer) {
	size := r.pages << mm.PageShift
	fmt.Fprintf(w, "0x%08x-0x%08x -> 0x%08x-0x%08x (%d bytes) %s\n",
		r.virt.Raw(), r.virt.Add(size-1).Raw(),
		r.phys.Raw(), r.phys.Add(size-1).Raw(),
		size, r.opts,
	)
}

// Dump writes the current mappings to w as a list of contiguous runs. Dump
// does not acquire the lock; its output is advisory if the mappings change
// concurrently.
func (m *Mapper) Dump(w io.Writer) {
	var run mappingRun

	for word := uintptr(0); word < uintptr(len(m.searchable)); word++ {
		if m.searchable[word] == 0 {
			continue
		}

		for page := word << 5; page < (word+1)<<5; page++ {
			if !m.searchable.isSet(page) {
				continue
			}

			virt := mm.VirtAddr(mm.PageFromIndex(page))
			entry, err := m.leaf(virt)
			if err != nil || !m.format.pagePresent(*entry) {
				continue
			}

			phys, opts := m.format.pageAddr(*entry), m.format.pageOptions(*entry)
			if run.extends(virt, phys, opts) {
				run.pages++
				continue
			}

			if run.pages != 0 {
				run.write(w)
			}
			run = mappingRun{virt: virt, phys: phys, pages: 1, opts: opts}
		}
	}

	if run.pages != 0 {
		run.write(w)
	}
}

// LogMappings sends the output of Dump to the kernel log.
func (m *Mapper) LogMappings() {
	w := klog.Writer(klog.LevelInfo, "vmm")
	m.Dump(w)
	w.Flush()
}
