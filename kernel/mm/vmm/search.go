package vmm

import "github.com/jamesMFelder/FelineOS-sub000/kernel/mm"

// searchBitmap mirrors which virtual pages of the 4G address space are
// mapped. Bit i is set while page i is mapped. Search operations consult
// this bitmap instead of walking the hardware tables.
type searchBitmap [mm.MaxPages / 32]uint32

func (s *searchBitmap) isSet(page uintptr) bool {
	return s[page>>5]&(1<<(page&31)) != 0
}

func (s *searchBitmap) set(page uintptr) {
	s[page>>5] |= 1 << (page & 31)
}

func (s *searchBitmap) clear(page uintptr) {
	s[page>>5] &^= 1 << (page & 31)
}

// lastSetIn returns the highest set index inside [first, first+count).
func (s *searchBitmap) lastSetIn(first, count uintptr) (uintptr, bool) {
	for page := first + count; page > first; page-- {
		if s.isSet(page - 1) {
			return page - 1, true
		}
	}
	return 0, false
}

// findClearRun returns the lowest page index >= 1 that starts a run of
// count unset pages. When a candidate run contains a set page, the search
// resumes right after the highest conflicting page.
func (s *searchBitmap) findClearRun(count uintptr) (uintptr, bool) {
	if count == 0 || count >= mm.MaxPages {
		return 0, false
	}

	for first := uintptr(1); first <= mm.MaxPages-count; {
		// Skip over fully mapped words.
		if first&31 == 0 && s[first>>5] == 0xffffffff {
			first += 32
			continue
		}

		conflict, found := s.lastSetIn(first, count)
		if !found {
			return first, true
		}
		first = conflict + 1
	}

	return 0, false
}
