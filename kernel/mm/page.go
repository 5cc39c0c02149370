package mm

// Page describes a page-aligned address. Pages are always truncated to the
// start of the PageSize-sized chunk that contains them. Page 0 is reserved
// and acts as the null sentinel.
type Page uintptr

// PageOf returns the Page that contains addr.
func PageOf(addr uintptr) Page {
	return Page(addr &^ (PageSize - 1))
}

// PageFromIndex returns the Page with the given page number.
func PageFromIndex(index uintptr) Page {
	return Page(index << PageShift)
}

// Address returns the address of the first byte in this page.
func (p Page) Address() uintptr { return uintptr(p) }

// Index returns the page number of p.
func (p Page) Index() uintptr { return uintptr(p) >> PageShift }

// Next returns the page that follows p.
func (p Page) Next() Page { return p + Page(PageSize) }

// Prev returns the page that precedes p.
func (p Page) Prev() Page { return p - Page(PageSize) }

// Add returns the page containing the address that lies bytes after the
// start of p.
func (p Page) Add(bytes uintptr) Page { return PageOf(uintptr(p) + bytes) }

// IsNull returns true if p is the reserved page 0.
func (p Page) IsNull() bool { return p == 0 }

// LargePage describes a LargePageSize-aligned address.
type LargePage uintptr

// LargePageOf returns the LargePage that contains addr.
func LargePageOf(addr uintptr) LargePage {
	return LargePage(addr &^ (LargePageSize - 1))
}

// Address returns the address of the first byte in this large page.
func (p LargePage) Address() uintptr { return uintptr(p) }

// Next returns the large page that follows p.
func (p LargePage) Next() LargePage { return p + LargePage(LargePageSize) }

// Prev returns the large page that precedes p.
func (p LargePage) Prev() LargePage { return p - LargePage(LargePageSize) }

// Add returns the large page containing the address that lies bytes after
// the start of p.
func (p LargePage) Add(bytes uintptr) LargePage { return LargePageOf(uintptr(p) + bytes) }

// IsNull returns true if p is the large page at address 0.
func (p LargePage) IsNull() bool { return p == 0 }

// Page returns the first small page inside p.
func (p LargePage) Page() Page { return Page(p) }

// PageCount returns the number of pages required to hold length bytes.
func PageCount(length uintptr) uintptr {
	return (length + PageSize - 1) >> PageShift
}

// RoundUp rounds v up to the next multiple of align which must be a power
// of 2.
func RoundUp(v, align uintptr) uintptr {
	return (v + align - 1) &^ (align - 1)
}

// RoundDown rounds v down to a multiple of align which must be a power of 2.
func RoundDown(v, align uintptr) uintptr {
	return v &^ (align - 1)
}
