package pmm

import "github.com/jamesMFelder/FelineOS-sub000/kernel/mm"

// reservedRegions returns the page-covering regions that must never hold
// the bitmap storage.
func reservedRegions(info *mm.BootInfo) []mm.Region {
	list := make([]mm.Region, 0, len(info.Unavailable)+2)
	list = append(list, info.KernelImage().PageCovering())
	if !info.BootBlob.IsEmpty() {
		list = append(list, info.BootBlob.PageCovering())
	}
	for _, r := range info.Unavailable {
		if !r.IsEmpty() {
			list = append(list, r.PageCovering())
		}
	}
	return list
}

// locateStorage scans the available regions for a page-aligned block of
// size bytes that lies below page limitPages and does not overlap the
// kernel image, the boot blob or any unavailable region. Page 0 is never
// selected.
func locateStorage(info *mm.BootInfo, size, limitPages uintptr) (mm.Region, bool) {
	var (
		reserved  = reservedRegions(info)
		sizePages = mm.PageCount(size)
	)

	for _, avail := range info.Available {
		r := avail.PageAligned()
		if r.IsEmpty() {
			continue
		}

		first, end := r.Addr.Page().Index(), r.EndPage()
		if first == 0 {
			first = 1
		}
		if end > limitPages {
			end = limitPages
		}

	nextCandidate:
		for first < end && end-first >= sizePages {
			candidate := mm.Region{Addr: mm.PhysAddr(mm.PageFromIndex(first)), Length: size}
			for _, res := range reserved {
				if candidate.Overlaps(res) {
					// Slide the candidate past the conflicting region.
					first = res.EndPage()
					continue nextCandidate
				}
			}
			return candidate, true
		}
	}

	return mm.Region{}, false
}
