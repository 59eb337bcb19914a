package gc

import (
	"sync"

	"github.com/rs/zerolog"
)

// DefaultBlockPgAlloc is how many bytes the page allocator maps from
// the OS at a time (spec.md §4.1: "64 MiB on 64-bit").
const DefaultBlockPgAlloc = 64 << 20

// pageAllocator is C1: an OS-backed 16 KiB page supplier sitting in
// front of an OSPageSource, with three idle-page pools so a page can
// be reused without touching the kernel at all (clean), reused after
// cancelling a pending decommit hint (toMadvise), or reused after
// actually giving the memory back and paying to fault it in again
// (madvised). Every state transition on the pools is under mu
// (spec.md §4.1: "Every state-transition on the global pools requires
// a mutex").
type pageAllocator struct {
	mu  sync.Mutex
	src OSPageSource
	tbl *pageTable
	log zerolog.Logger

	clean     *pageMeta
	toMadvise *pageMeta
	madvised  *pageMeta

	blockBytes int
}

func newPageAllocator(tbl *pageTable, log zerolog.Logger) *pageAllocator {
	return &pageAllocator{
		src:        newOSPageSource(),
		tbl:        tbl,
		log:        log,
		blockBytes: DefaultBlockPgAlloc,
	}
}

func popChain(head **pageMeta) *pageMeta {
	pm := *head
	if pm != nil {
		*head = pm.next
		pm.next = nil
	}
	return pm
}

func pushChain(head **pageMeta, pm *pageMeta) {
	pm.next = *head
	*head = pm
}

// allocPage returns an idle or freshly-mapped page, preferring
// clean -> to_madvise -> madvised -> fresh OS map (spec.md §4.1).
func (a *pageAllocator) allocPage() (*pageMeta, error) {
	a.mu.Lock()
	if pm := popChain(&a.clean); pm != nil {
		a.mu.Unlock()
		return pm, nil
	}
	if pm := popChain(&a.toMadvise); pm != nil {
		// The decommit hint was never actually issued; nothing to undo.
		a.mu.Unlock()
		a.tbl.insert(uint64(pm.base/PageSize), pm)
		return pm, nil
	}
	if pm := popChain(&a.madvised); pm != nil {
		a.mu.Unlock()
		if err := a.src.Recommit(pm.base, PageSize); err != nil {
			return nil, &CollectorError{Kind: ErrOutOfMemory, Op: "recommit page", Err: err}
		}
		a.tbl.insert(uint64(pm.base/PageSize), pm)
		return pm, nil
	}
	a.mu.Unlock()
	return a.mapFreshBlock()
}

// mapFreshBlock maps DefaultBlockPgAlloc bytes from the OS, carves it
// into PageSize pages, registers each in the page table, stashes all
// but one on the clean pool, and returns the first one to the caller.
func (a *pageAllocator) mapFreshBlock() (*pageMeta, error) {
	base, _, err := a.src.MapBlock(a.blockBytes)
	if err != nil {
		a.log.Error().Err(err).Int("bytes", a.blockBytes).Msg("gc: OS page block allocation failed")
		return nil, &CollectorError{Kind: ErrOutOfMemory, Op: "map page block", Err: err}
	}
	n := a.blockBytes / PageSize
	pages := make([]*pageMeta, n)
	for i := 0; i < n; i++ {
		pm := &pageMeta{base: base + uintptr(i*PageSize)}
		pages[i] = pm
		a.tbl.insert(uint64(pm.base/PageSize), pm)
	}
	a.mu.Lock()
	for _, pm := range pages[1:] {
		pushChain(&a.clean, pm)
	}
	a.mu.Unlock()
	a.log.Debug().Int("pages", n).Msg("gc: mapped fresh OS page block")
	return pages[0], nil
}

// freePage returns a page to the idle-to-madvise pool; it is not
// decommitted yet (spec.md §4.1 policy: allocation prefers clean
// first, so a very recently freed page can be reused for free).
func (a *pageAllocator) freePage(pm *pageMeta) {
	pm.cells = nil
	pm.freeNext = nil
	pm.age = nil
	a.mu.Lock()
	pushChain(&a.toMadvise, pm)
	a.mu.Unlock()
}

// drainToMadvise actually issues the OS decommit hint for every page
// sitting in to_madvise and moves it to madvised. The collector calls
// this once per cycle after sweep (collector.go), the way a scavenger
// goroutine would in a concurrent collector - here it is just another
// step of the stop-the-world phase sequence.
func (a *pageAllocator) drainToMadvise() int {
	a.mu.Lock()
	chain := a.toMadvise
	a.toMadvise = nil
	a.mu.Unlock()

	n := 0
	for pm := chain; pm != nil; {
		next := pm.next
		a.src.Decommit(pm.base, PageSize)
		n++
		a.mu.Lock()
		pushChain(&a.madvised, pm)
		a.mu.Unlock()
		pm = next
	}
	return n
}

// idleCounts reports the size of each pool, for stats.go and tests.
func (a *pageAllocator) idleCounts() (clean, toMadvise, madvised int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for pm := a.clean; pm != nil; pm = pm.next {
		clean++
	}
	for pm := a.toMadvise; pm != nil; pm = pm.next {
		toMadvise++
	}
	for pm := a.madvised; pm != nil; pm = pm.next {
		madvised++
	}
	return
}
