package gc

import "unsafe"

// mallocedArrayEntry is one external array buffer obtained through
// ManagedMalloc: raw memory with no Header of its own, whose lifetime
// is instead governed by the managed object named in owner (spec.md §6
// "managed_malloc/managed_realloc": the returned raw* is for an
// external array buffer, tracked separately from the pool/page/big
// object machinery since it never participates in marking itself).
type mallocedArrayEntry struct {
	owner uintptr // the managed value whose reachability keeps buf alive
	buf   []byte
}

// rawArrayAddr gives a mallocedArrayEntry the same "value*" identity
// scheme as hdrID/bigObjAddr: the address of the entry struct itself,
// stable for as long as the entry is not moved (this package's own
// heap objects never are).
func rawArrayAddr(e *mallocedArrayEntry) uintptr {
	return uintptr(unsafe.Pointer(e))
}

// ManagedMalloc is managed_malloc (spec.md §6): it hands back a raw
// buffer for a caller that wants to grow an array whose element count
// is not known at the owning object's own allocation time (e.g. a
// dynamically-resized slice field). The buffer is freed by
// sweepMallocedArrays once owner is found unreachable; it does not
// itself carry a Header and is never scanned for pointers.
func (m *Mutator) ManagedMalloc(owner uintptr, size uintptr) (uintptr, []byte) {
	e := &mallocedArrayEntry{owner: owner, buf: make([]byte, size)}
	m.mallocedArrays = append(m.mallocedArrays, e)
	m.accountAlloc(int64(size))
	return rawArrayAddr(e), e.buf
}

// ManagedRealloc is managed_realloc (spec.md §6): it grows or shrinks
// an existing ManagedMalloc buffer in place (as far as the caller is
// concerned - the backing array itself is always replaced), updating
// the owner record in case the caller has reparented the buffer to a
// different owning object since it was allocated. An unrecognized raw
// is an ErrUnknownRawPointer, not a panic: unlike a corrupt Header,
// this is a caller misuse a program can recover from.
func (m *Mutator) ManagedRealloc(raw uintptr, newSize, oldSize uintptr, owner uintptr) (uintptr, []byte, error) {
	for _, e := range m.mallocedArrays {
		if rawArrayAddr(e) != raw {
			continue
		}
		grown := make([]byte, newSize)
		copy(grown, e.buf)
		e.buf = grown
		e.owner = owner
		m.accountAlloc(int64(newSize) - int64(oldSize))
		return raw, e.buf, nil
	}
	return 0, nil, &CollectorError{Kind: ErrUnknownRawPointer, Op: "managed_realloc"}
}

// sweepMallocedArrays is C8 step 4 (spec.md §4.8 "sweep_malloced_arrays:
// walk the per-mutator list of arrays with external buffers, free
// unmarked, return nodes to free list"): an entry survives exactly when
// its owner is still live by this sweep's own quick/full rule, the same
// rule sweepFinalizerList and sweepWeakRefs apply to their own targets -
// an unmarked OLD owner is not proven dead except on a full sweep, since
// a quick sweep never rescans the old generation.
func (m *Mutator) sweepMallocedArrays(c *Collector, full bool) {
	live := m.mallocedArrays[:0]
	for _, e := range m.mallocedArrays {
		h := c.resolveHeader(e.owner)
		if h == nil || h.Bits().isMarked() || (h.Bits() == Old && !full) {
			live = append(live, e)
			continue
		}
		// Owner is dead: the node itself becomes garbage for Go's own
		// collector to reclaim (the "free list" spec.md describes maps
		// here to simply dropping the entry, since this package has no
		// manual allocator for its own bookkeeping nodes - see bigobj.go
		// bigObjList for the same substitution).
	}
	m.mallocedArrays = live
}
