package gc

import "go.uber.org/multierr"

// SweepKind distinguishes a quick sweep (cheap, skips old cells) from a
// full sweep (reclaims dead old generations too, at the cost of having
// just run a full mark) (spec.md §4.8).
type SweepKind int

const (
	SweepQuick SweepKind = iota
	SweepFull
)

// sweepAll runs C8's fixed step order (spec.md §4.8): weak refs, the
// stack-pool and foreign-object collaborator hooks, malloc'd-array
// reclamation, finalizer discovery (followed by a mark pass from the
// resurrected objects, so whatever they reference survives too), big
// objects, then pool/page sweep, plus the permanent arena's sweep
// extension hook on a full sweep, and finally the finalizer callbacks. It must only run with the world stopped and after the
// matching mark phase has completed.
func (c *Collector) sweepAll(kind SweepKind) error {
	full := kind == SweepFull
	var errs []error

	for _, mut := range c.mutators {
		mut.sweepWeakRefs(c, full)
	}

	if c.stackPools != nil {
		c.stackPools.SweepStackPools(full)
	}

	if c.foreignObjs != nil {
		c.foreignObjs.SweepForeignObjects(full)
	}

	for _, mut := range c.mutators {
		mut.sweepMallocedArrays(c, full)
	}

	var toFinalize []finalizerEntry
	for _, mut := range c.mutators {
		toFinalize = append(toFinalize, mut.sweepFinalizerList(c, full)...)
	}
	if len(toFinalize) > 0 {
		roots := make([]uintptr, 0, len(toFinalize))
		for _, e := range toFinalize {
			roots = append(roots, e.addr)
		}
		runMarkPhase(c, &Mutator{id: -1, c: c}, roots)
	}

	for _, mut := range c.mutators {
		c.sweepBigObjects(mut, full)
	}

	for _, mut := range c.mutators {
		for i := range mut.pools {
			pool := mut.pools[i]
			if pool == nil {
				continue
			}
			c.sweepPool(pool, full)
		}
	}

	if full {
		c.permArena.gcSweepPermAlloc()
	}

	if errs2 := runFinalizers(toFinalize); len(errs2) > 0 {
		errs = append(errs, errs2...)
	}
	return multierr.Combine(errs...)
}

// sweepBigObjects walks one mutator's big-object list, reclaiming, on a
// full sweep only, any entry that did not get marked this cycle (a
// quick sweep reclaims none), and demoting the survivors'
// bits the same way a pool cell's would be (spec.md §4.8 "big objects
// sweep the same as pool cells, minus the page/freelist bookkeeping").
func (c *Collector) sweepBigObjects(mut *Mutator, full bool) {
	var dead []*BigObject
	mut.bigObjects.forEach(func(b *BigObject) {
		bits := b.hdr.Bits()
		if !bits.isMarked() {
			if full {
				dead = append(dead, b)
			}
			return
		}
		b.hdr.demoteAfterSweep(full, false)
	})
	for _, b := range dead {
		mut.bigObjects.remove(b)
		c.unregisterBig(b)
		mut.notifyExternalFree(b)
	}
}

// sweepPool walks every page owned by pool, reclaiming and demoting
// cells and deciding, page by page, whether to keep it parked in the
// pool (lazy retention, spec.md §4.8 step 6), hand it back to the page
// allocator, or leave it exactly as is because a quick sweep has
// nothing to say about it.
func (c *Collector) sweepPool(pool *Pool, full bool) {
	var reclaimed []*pageMeta
	pool.forEachPage(func(pm *pageMeta) {
		c.sweepPage(pm, full)
		if pm.nfree == len(pm.cells) {
			reclaimed = append(reclaimed, pm)
		}
	})
	if len(reclaimed) == 0 {
		return
	}

	kept := 0
	for _, pm := range reclaimed {
		if !full && kept < c.tunables.LazyPageCap {
			kept++
			continue
		}
		c.detachPage(pool, pm)
		c.pageTable.remove(uint64(pm.base / PageSize))
		c.pageAlloc.freePage(pm)
	}
}

// detachPage removes pm from pool's active/newpages chain. Reclaimed
// pages are rare relative to allocation volume, so this is a linear
// scan rather than a doubly-linked unlink.
func (c *Collector) detachPage(pool *Pool, pm *pageMeta) {
	if pool.active == pm {
		pool.dropActive()
		return
	}
	var head *pageMeta
	for cur := pool.newpages; cur != nil; {
		next := cur.next
		if cur != pm {
			cur.next = head
			head = cur
		}
		cur = next
	}
	pool.newpages = head
}

// sweepPage applies the per-cell demotion rule to every live cell in
// pm, rebuilding its freelist from scratch (spec.md §4.8 steps 2-7). A
// quick sweep (full == false) never changes a cell already tagged OLD
// or OLD_MARKED - it only counts it in nold - the central performance
// property of the generational
// design (spec.md glossary: "Quick sweep: old-marked bits are
// preserved").
func (c *Collector) sweepPage(pm *pageMeta, full bool) {
	pm.resetFreelist()
	pm.nold = 0
	pm.hasYoung = false
	hasMarkedThisPass := false

	for i := range pm.cells {
		h := &pm.cells[i]
		bits := h.Bits()
		switch bits {
		case Clean:
			pm.pushFree(i)
		case Marked:
			survived := pm.age.test(i)
			if survived {
				h.demoteAfterSweep(full, true)
				pm.age.clear(i)
				pm.nold++
			} else {
				h.demoteAfterSweep(full, false)
				pm.age.set(i)
				pm.hasYoung = true
			}
			hasMarkedThisPass = true
		case Old:
			if full {
				// Not reached by the full mark that just ran: genuinely dead.
				pm.cells[i] = NewHeader(0)
				pm.age.clear(i)
				pm.pushFree(i)
			} else {
				pm.nold++
			}
		case OldMarked:
			h.demoteAfterSweep(full, false)
			pm.nold++
			hasMarkedThisPass = true
		}
	}
	pm.hasMarked = hasMarkedThisPass
	if full {
		pm.prevNold = pm.nold
	}
}
