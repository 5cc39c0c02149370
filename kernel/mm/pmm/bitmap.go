package pmm

// bitmap tracks page reservations. Bit i (LSB first inside each byte) is
// set when page i is in use.
type bitmap []byte

func (b bitmap) isSet(index uintptr) bool {
	return b[index>>3]&(1<<(index&7)) != 0
}

func (b bitmap) set(index uintptr) {
	b[index>>3] |= 1 << (index & 7)
}

func (b bitmap) clear(index uintptr) {
	b[index>>3] &^= 1 << (index & 7)
}

func (b bitmap) setRange(first, count uintptr) {
	for i := first; i < first+count; i++ {
		b.set(i)
	}
}

func (b bitmap) clearRange(first, count uintptr) {
	for i := first; i < first+count; i++ {
		b.clear(i)
	}
}

// allSet returns true if every bit in [first, first+count) is set.
func (b bitmap) allSet(first, count uintptr) bool {
	for i := first; i < first+count; i++ {
		if !b.isSet(i) {
			return false
		}
	}
	return true
}

// countClear returns the number of clear bits in [0, limit).
func (b bitmap) countClear(limit uintptr) uintptr {
	var count uintptr
	for i := uintptr(0); i < limit; i++ {
		if !b.isSet(i) {
			count++
		}
	}
	return count
}

// findClearRun returns the lowest index >= from that starts a run of count
// clear bits ending at or before limit.
func (b bitmap) findClearRun(from, count, limit uintptr) (uintptr, bool) {
	var runStart, runLen uintptr

	for i := from; i < limit; {
		// Skip fully reserved bytes while not inside a run.
		if runLen == 0 && i&7 == 0 && b[i>>3] == 0xff {
			i += 8
			continue
		}

		if b.isSet(i) {
			runLen = 0
			i++
			continue
		}

		if runLen == 0 {
			runStart = i
		}
		runLen++
		i++

		if runLen == count {
			return runStart, true
		}
	}

	return 0, false
}
