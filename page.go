package gc

import "unsafe"

// freeSentinel marks an empty freelist range (spec.md §3: "fl_begin_offset,
// fl_end_offset ... or sentinel -1").
const freeSentinel = -1

// pageMeta is the out-of-band metadata for one 16 KiB page (spec.md §3).
// The page's OS-mapped bytes are never read or written by this package;
// the OS page lifecycle (mapping/decommit) works on base alone, and raw
// is left nil. The typed cells a mutator actually
// writes tagged values into live in cells, a parallel same-length slice
// of Headers. Keeping the header array outside the mmap'd region lets
// this package stay free of unsafe pointer arithmetic into OS memory
// while still exercising a real OS-backed page source end to end - see
// DESIGN.md for why.
type pageMeta struct {
	base uintptr // page-aligned base address; the pageTable key
	raw  []byte  // not populated: mapFreshBlock records only base

	poolN   int // owning pool index within its mutator
	threadN int // owning mutator id

	osize int // cell size for this page's size class
	nfree int // number of free cells
	nold  int // number of cells currently tagged OLD/OLD_MARKED
	// prevNold snapshots nold as of the last full sweep (spec.md §4.8
	// step 6, "prev_nold == nold since last full sweep"). sweepPage
	// records it but does not consult it: every page is walked cell by
	// cell on both kinds of sweep.
	prevNold int

	hasYoung  bool // the last sweep left a young (MARKED, unpromoted) cell alive
	hasMarked bool // the last sweep saw a MARKED or OLD_MARKED cell; after a full sweep, false => page is garbage

	cells    []Header // one header per cell, length == cellsPerPage(osize)
	freeNext []int32  // per-cell freelist thread; freeNext[i] is the next free cell index or freeSentinel
	flBegin  int      // head of the freelist chain, or freeSentinel
	flEnd    int      // tail of the freelist chain, or freeSentinel

	age bitmap // 1 bit per cell: set = survived the last sweep

	// next threads this page onto exactly one of: a pool's new-pages
	// bump chain, the global idle-page pools, or nothing (in use and
	// not on any chain). Spec.md §3: "the first word of the page
	// stores a linked-list pointer threading empty pages."
	next *pageMeta
}

// cellAddr returns a stable, comparable identity for cell i, used as
// the "value*" the mark queue and remembered sets carry around. It is
// never dereferenced; the cell's Header lives in cells[i].
func (pm *pageMeta) cellAddr(i int) uintptr {
	return pm.base + uintptr(PageOffset) + uintptr(i*pm.osize)
}

// cellIndex inverts cellAddr, or returns (-1, false) if addr does not
// land inside this page's cell region.
func (pm *pageMeta) cellIndex(addr uintptr) (int, bool) {
	if addr < pm.base+uintptr(PageOffset) {
		return -1, false
	}
	off := addr - pm.base - uintptr(PageOffset)
	if int(off) >= len(pm.cells)*pm.osize {
		return -1, false
	}
	if int(off)%pm.osize != 0 {
		return -1, false
	}
	return int(off) / pm.osize, true
}

// resetPage (re)initializes a freshly mapped or fully-reclaimed page for
// size class osize: every cell becomes free, age bits are cleared, and
// the freelist threads every cell in index order (spec.md §4.2
// "reset_page policy").
func resetPage(pm *pageMeta, osize, poolN, threadN int) {
	n := cellsPerPage(osize)
	pm.osize = osize
	pm.poolN = poolN
	pm.threadN = threadN
	pm.nfree = n
	pm.nold = 0
	pm.prevNold = 0
	pm.hasYoung = false
	pm.hasMarked = false
	pm.cells = make([]Header, n)
	pm.freeNext = make([]int32, n)
	pm.age = newBitmap(n)
	for i := 0; i < n; i++ {
		if i+1 < n {
			pm.freeNext[i] = int32(i + 1)
		} else {
			pm.freeNext[i] = freeSentinel
		}
	}
	if n > 0 {
		pm.flBegin = 0
		pm.flEnd = n - 1
	} else {
		pm.flBegin, pm.flEnd = freeSentinel, freeSentinel
	}
	pm.next = nil
}

// popFree takes the head of the freelist, or reports false if empty.
func (pm *pageMeta) popFree() (int, bool) {
	if pm.flBegin == freeSentinel {
		return 0, false
	}
	i := pm.flBegin
	pm.flBegin = int(pm.freeNext[i])
	if pm.flBegin == freeSentinel {
		pm.flEnd = freeSentinel
	}
	pm.nfree--
	return i, true
}

// pushFree returns cell i to the head of the freelist, used by sweep
// when rebuilding a page's free set.
func (pm *pageMeta) pushFree(i int) {
	pm.freeNext[i] = int32(pm.flBegin)
	pm.flBegin = i
	if pm.flEnd == freeSentinel {
		pm.flEnd = i
	}
	pm.nfree++
}

// resetFreelist empties the freelist without touching cell contents,
// used before sweep rebuilds it from scratch.
func (pm *pageMeta) resetFreelist() {
	pm.flBegin, pm.flEnd = freeSentinel, freeSentinel
	pm.nfree = 0
}

func pageBaseOf(p unsafe.Pointer) uintptr {
	return uintptr(p) &^ (PageSize - 1)
}
