package gc

// bindingRef is a remembered module-level binding: a named slot outside
// any pool cell (e.g. a package-level variable or a module's export
// table entry) whose current value may need rescanning from premark
// through to the next full sweep (spec.md §3 "module bindings are
// tracked the same way object fields are, via a parallel binding
// list"). owner holds the value stored when the barrier fired (a bare
// module binding has no owning object); get re-reads the binding's
// current value at premark time, and that re-read value, not owner, is
// what drainRemset queues.
type bindingRef struct {
	owner uintptr
	get   func() uintptr
}

// resolveHeader finds the Header for a live value address, wherever it
// lives: a pool cell, the permanent arena (never swept, so never worth
// looking up), or a big object. Returns nil if addr is not recognized,
// which the mark engine treats as a foreign (untracked) pointer rather
// than an error (spec.md §4.5: "a mark source may hold references this
// collector does not own").
func (c *Collector) resolveHeader(addr uintptr) *Header {
	pageIdx := uint64(addr) / uint64(PageSize)
	if pm := c.pageTable.lookup(pageIdx); pm != nil {
		if i, ok := pm.cellIndex(addr); ok {
			return &pm.cells[i]
		}
		return nil
	}
	c.bigMu.RLock()
	b := c.bigIndex[addr]
	c.bigMu.RUnlock()
	if b != nil {
		return &b.hdr
	}
	return nil
}

// barrierNeeded reports whether storing a reference to target inside an
// object tagged ownerBits requires a remembered-set entry: true exactly
// when the owner is old and the target is not (spec.md §4.4 "the write
// barrier: old-to-young stores are recorded; every other combination is
// a no-op").
func barrierNeeded(ownerBits GCBits, target *Header) bool {
	if target == nil || !ownerBits.isOld() {
		return false
	}
	tb := target.Bits()
	return !tb.isOld()
}

// QueueRoot adds a single transient root the next mark phase must scan,
// independent of any mutator's registered root list (spec.md §6
// "queue_root: for one-off roots such as a freshly unpacked
// continuation"). It is safe to call from any mutator at any time; the
// root is consumed by the very next cycle and not retained after.
func (m *Mutator) QueueRoot(v uintptr) {
	m.c.mu.Lock()
	m.c.transientRoots = append(m.c.transientRoots, v)
	m.c.mu.Unlock()
}

// QueueMultiroot is QueueRoot for a batch of values, avoiding repeated
// lock acquisition when a caller has many roots to hand over at once.
func (m *Mutator) QueueMultiroot(vs []uintptr) {
	if len(vs) == 0 {
		return
	}
	m.c.mu.Lock()
	m.c.transientRoots = append(m.c.transientRoots, vs...)
	m.c.mu.Unlock()
}

// QueueBinding is the write barrier's entry point for storing newVal
// into a slot owned by the object at ownerAddr. Call sites generated
// for a managed "object[i] = v" or "binding = v" assignment must invoke
// this after the store, not before: the barrier only needs to catch
// references that exist at scan time (spec.md §4.4 invariant I-2).
//
// ownerAddr may be zero for a module-level binding with no owning
// object; pass get so premark can re-read the binding's live value
// rather than trusting the value captured at write-barrier time, which
// may be stale by the time premark runs.
//
// Firing the barrier also re-tags the owner's header to MARKED
// (spec.md §4.7: "the write barrier ... must re-tag to MARKED and push
// onto remset"). This both primes the owner for the next mark phase to
// walk its fields again and, just as importantly, makes barrierNeeded
// return false for any further store through the same owner before the
// next sweep: once retagged, ownerBits.isOld() is false (retagMarked
// drops the OLD bit entirely), so the owner no longer looks old to
// barrierNeeded and stops re-firing - without this, every subsequent
// store through an old object would append another duplicate remset
// entry.
func (m *Mutator) QueueBinding(ownerAddr uintptr, newVal uintptr, get func() uintptr) {
	var ownerBits GCBits
	var ownerHdr *Header
	if ownerAddr != 0 {
		if h := m.c.resolveHeader(ownerAddr); h != nil {
			ownerBits = h.Bits()
			ownerHdr = h
		}
	} else {
		// A bare module binding is treated as always-old: it is reachable
		// for the module's entire lifetime, so its target must be
		// remembered whenever it is not already old (spec.md §3).
		ownerBits = Old
	}
	target := m.c.resolveHeader(newVal)
	if !barrierNeeded(ownerBits, target) {
		return
	}
	if ownerAddr != 0 {
		if ownerHdr != nil {
			ownerHdr.retagMarked()
		}
		m.remset = append(m.remset, ownerAddr)
		return
	}
	m.remBindings = append(m.remBindings, &bindingRef{owner: newVal, get: get})
}

// drainRemset is premark's rotation step (spec.md §4.10 step 3): the
// set accumulated by the write barrier since the last premark becomes
// this cycle's extra roots, and a fresh (empty) set starts accumulating
// new barrier hits. The rotation must happen before draining - not
// after - so the entries just handed over are the ones scanned this
// cycle, not left to sit one extra cycle before ever being rescanned.
// Each rotated-out owner is retagged OLD_MARKED before it is queued,
// restoring the old generation the write barrier's MARKED retag hid.
func (m *Mutator) drainRemset(into *markQueue) {
	m.lastRemset, m.remset = m.remset, m.lastRemset[:0]
	for _, addr := range m.lastRemset {
		if h := m.c.resolveHeader(addr); h != nil {
			h.retagOldMarked()
			into.push(addr)
		}
	}

	m.lastRemBindings, m.remBindings = m.remBindings, m.lastRemBindings[:0]
	for _, b := range m.lastRemBindings {
		v := b.get()
		if h := m.c.resolveHeader(v); h != nil {
			into.push(v)
		}
	}
}
