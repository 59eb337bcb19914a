package gc

// Pool is the per-(mutator, size-class) allocator state (spec.md §3).
// It is single-writer: only the mutator that owns it ever calls
// Alloc, so no lock is needed on the hot path (spec.md §4.2).
//
// At most one page is ever "being bumped into" at a time - active.
// Every other page on newpages has already been reset_page'd and is
// simply waiting its turn. InternalObjBasePtr (conservative.go) does
// not depend on this: it treats every page the same way.
type Pool struct {
	class  uint8
	osize  int
	active *pageMeta
	// newpages chains fully-reset pages that are not yet active, most
	// recently pushed first (spec.md §3: "newpages (stack of untouched
	// pages whose first page is the current bump target)").
	newpages *pageMeta
}

func newPool(class uint8, osize int) *Pool {
	return &Pool{class: class, osize: osize}
}

// alloc returns a free cell's index within its page, and the page
// itself. It does not set the cell's header; callers (Mutator.AllocSmall)
// are responsible for writing a fresh tag before returning the value to
// the caller, per spec.md §4.2 ("The tag bits are not cleared by
// allocation").
func (p *Pool) alloc(alloc *pageAllocator, poolN, threadN int) (*pageMeta, int, error) {
	for {
		if p.active != nil {
			if i, ok := p.active.popFree(); ok {
				return p.active, i, nil
			}
			// active exhausted; fall through to rotate in the next page
		}
		if p.newpages != nil {
			p.active = popChain(&p.newpages)
			continue
		}
		pm, err := alloc.allocPage()
		if err != nil {
			return nil, 0, err
		}
		resetPage(pm, p.osize, poolN, threadN)
		p.active = pm
	}
}

// forEachPage visits every page currently owned by this pool (active
// and queued), used by sweep.go.
func (p *Pool) forEachPage(f func(*pageMeta)) {
	if p.active != nil {
		f(p.active)
	}
	for pm := p.newpages; pm != nil; pm = pm.next {
		f(pm)
	}
}

// dropActive clears the active page, used by sweep (detachPage) when
// the current active page is reclaimed whole.
func (p *Pool) dropActive() {
	p.active = nil
}

// adopt pushes a reset, empty page onto newpages, or makes it the
// active page if the pool has none. Nothing in this package calls it:
// sweep's lazy-page retention (spec.md §4.8 step 6) leaves a retained
// page where it already is in the pool.
func (p *Pool) adopt(pm *pageMeta) {
	if p.active == nil {
		p.active = pm
		return
	}
	pushChain(&p.newpages, pm)
}
