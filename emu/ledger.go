package emu

import (
	"fmt"
	"sync"

	"github.com/google/btree"
	"github.com/jamesMFelder/FelineOS-sub000/kernel/mm"
)

// reservation is a run of physical pages handed out by the physical memory
// manager.
type reservation struct {
	first uintptr
	count uintptr
}

func (r reservation) end() uintptr { return r.first + r.count }

// Ledger tracks the physical reservations that are expected to be active.
// It is safe for concurrent use.
type Ledger struct {
	mu   sync.Mutex
	tree *btree.BTreeG[reservation]
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		tree: btree.NewG(8, func(a, b reservation) bool { return a.first < b.first }),
	}
}

// Add records a reservation of count pages starting at addr. Overlapping
// reservations indicate a double allocation and are rejected.
func (l *Ledger) Add(addr mm.PhysAddr, count uintptr) error {
	r := reservation{first: addr.Page().Index(), count: count}
	if count == 0 {
		return fmt.Errorf("ledger: empty reservation at 0x%x", addr.Raw())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if other, found := l.overlapping(r); found {
		return fmt.Errorf("ledger: pages [%d, %d) overlap reservation [%d, %d)", r.first, r.end(), other.first, other.end())
	}

	l.tree.ReplaceOrInsert(r)
	return nil
}

// Remove drops the reservation that starts at addr. The count must match
// the recorded one.
func (l *Ledger) Remove(addr mm.PhysAddr, count uintptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	first := addr.Page().Index()
	r, found := l.tree.Get(reservation{first: first})
	if !found {
		return fmt.Errorf("ledger: no reservation starts at page %d", first)
	}
	if r.count != count {
		return fmt.Errorf("ledger: reservation at page %d holds %d pages; %d released", first, r.count, count)
	}

	l.tree.Delete(r)
	return nil
}

// Covers returns true if page is part of a recorded reservation.
func (l *Ledger) Covers(page uintptr) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.covers(page)
}

// Len returns the number of recorded reservations.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tree.Len()
}

func (l *Ledger) covers(page uintptr) bool {
	var covered bool
	l.tree.DescendLessOrEqual(reservation{first: page}, func(r reservation) bool {
		covered = page < r.end()
		return false
	})
	return covered
}

// overlapping returns a recorded reservation that overlaps r.
func (l *Ledger) overlapping(r reservation) (reservation, bool) {
	var (
		other reservation
		found bool
	)

	l.tree.DescendLessOrEqual(reservation{first: r.first}, func(prev reservation) bool {
		other, found = prev, prev.end() > r.first
		return false
	})
	if found {
		return other, true
	}

	l.tree.AscendGreaterOrEqual(reservation{first: r.first}, func(next reservation) bool {
		other, found = next, next.first < r.end()
		return false
	})
	return other, found
}

// Verify checks a bitmap snapshot against the ledger: every page that is
// in use in snapshot but free in baseline must be covered by a recorded
// reservation and every recorded page must be in use. Both bitmaps store
// the state of page i in bit i%8 of byte i/8.
func (l *Ledger) Verify(snapshot, baseline []byte, totalPages uintptr) error {
	if uintptr(len(snapshot))*8 < totalPages || uintptr(len(baseline))*8 < totalPages {
		return fmt.Errorf("ledger: bitmaps do not cover %d pages", totalPages)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	isSet := func(bm []byte, page uintptr) bool { return bm[page>>3]&(1<<(page&7)) != 0 }

	for page := uintptr(0); page < totalPages; page++ {
		inUse, reserved, covered := isSet(snapshot, page), isSet(baseline, page), l.covers(page)

		switch {
		case reserved && covered:
			return fmt.Errorf("ledger: page %d was reserved at boot but is recorded as allocated", page)
		case reserved && !inUse:
			return fmt.Errorf("ledger: page %d was reserved at boot but is free", page)
		case !reserved && inUse != covered:
			return fmt.Errorf("ledger: page %d in use: %t, recorded: %t", page, inUse, covered)
		}
	}

	var err error
	l.tree.Ascend(func(r reservation) bool {
		if r.end() > totalPages {
			err = fmt.Errorf("ledger: reservation [%d, %d) lies past the bitmap", r.first, r.end())
			return false
		}
		return true
	})
	return err
}
