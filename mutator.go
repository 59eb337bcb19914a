package gc

import (
	"sync"

	"go.uber.org/atomic"
)

// mutatorState is the value a Mutator's gcState word carries
// (spec.md §4.10/§5: "Every mutator's gc_state word is monotonically
// set by the mutator to WAITING (release) before any blocking syscall
// or before suspending").
type mutatorState uint32

const (
	mutatorRunning mutatorState = 0
	mutatorWaiting mutatorState = 1
)

// Mutator is one thread-local allocator participating in the
// safepoint protocol (spec.md §1). All of its fields are single-writer
// except where noted; the collector only ever reads a parked
// mutator's state during a stop-the-world phase.
type Mutator struct {
	id int
	c  *Collector

	pools      [NumSizeClasses]*Pool
	bigObjects bigObjList
	// bigSyncCache is neither written nor read by this package: the
	// mark engine tags a big object's header in place and the object
	// stays on bigObjects throughout the cycle.
	bigSyncCache []*BigObject

	// remsetMu guards remset: the owning mutator appends to it on its
	// own write-barrier path without locking, but the mark engine may
	// also append to another mutator's remset from a worker goroutine
	// when it discovers a stale old-to-young edge during scanning
	// (mark.go appendRemsetForOwner) - the two paths never overlap in
	// time (the owner is stopped at its safepoint during marking), but
	// the lock keeps concurrent mark workers themselves from racing.
	remsetMu   sync.Mutex
	remset     []uintptr // old objects known to reference young (spec.md §3)
	lastRemset []uintptr // rotated out at premark, scanned as roots then retired

	remBindings     []*bindingRef
	lastRemBindings []*bindingRef

	finalizers []finalizerEntry
	weakRefs   []*WeakRef

	// mallocedArrays tracks every ManagedMalloc/ManagedRealloc buffer
	// this mutator owns, swept by sweepMallocedArrays (spec.md §4.8
	// step 4).
	mallocedArrays []*mallocedArrayEntry

	roots []uintptr // current GC roots this mutator contributes

	allocd        int64 // bytes allocated since the last threshold reset
	poolalloc     int64
	deferredAlloc int64 // accounted while GC is disabled (spec.md §7 DisabledDuringCollect)
	disableCount  int32 // this mutator's own nestable disable depth

	gcState atomic.Uint32
}

// NewMutator registers a fresh per-thread allocator with the collector.
// The returned Mutator must only ever be used from one goroutine at a
// time, matching spec.md's one-mutator-per-OS-thread model.
func (c *Collector) NewMutator() *Mutator {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := &Mutator{id: c.nextMutatorID, c: c}
	c.nextMutatorID++
	for i := range m.pools {
		if classToSize[i] > 0 {
			m.pools[i] = newPool(uint8(i), classToSize[i])
		}
	}
	c.mutators = append(c.mutators, m)
	c.indexMutator(m)
	return m
}

// Detach removes a mutator from the collector's roster, e.g. when an
// OS thread exits. Only the roster and the id index change: the
// mutator's pools, big objects, remset, finalizers and weak refs are
// not handed to anyone else, and later cycles neither scan nor sweep
// them.
func (c *Collector) Detach(m *Mutator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, mm := range c.mutators {
		if mm == m {
			c.mutators = append(c.mutators[:i], c.mutators[i+1:]...)
			break
		}
	}
	c.unindexMutator(m)
}

// AddRoot registers v as a GC root this mutator contributes to every
// mark phase (e.g. a stack slot, a global binding) until RemoveRoot is
// called. This stands in for the "thread-local stacks" and "backtrace
// buffer" root sources spec.md §4.10 step 4 enumerates per mutator,
// generalized to an explicit list since this package does not walk a
// real call stack (that is the out-of-scope "GC shadow-stack walker").
func (m *Mutator) AddRoot(v uintptr) {
	m.roots = append(m.roots, v)
}

// RemoveRoot undoes AddRoot. O(n); root sets are small and change
// rarely compared to allocation volume.
func (m *Mutator) RemoveRoot(v uintptr) {
	for i, r := range m.roots {
		if r == v {
			m.roots = append(m.roots[:i], m.roots[i+1:]...)
			return
		}
	}
}

// AllocSmall is alloc_small: a fast-path pool allocation for an object
// of the given type (spec.md §6 external interface).
func (m *Mutator) AllocSmall(size uintptr, t TypeRef) (uintptr, error) {
	class, osize, ok := SizeClassFor(size)
	if !ok {
		return m.AllocBig(size, t)
	}
	pool := m.pools[class]
	pm, i, err := pool.alloc(m.c.pageAlloc, int(class), m.id)
	if err != nil {
		return 0, err
	}
	pm.cells[i] = NewHeader(t)
	addr := pm.cellAddr(i)
	m.accountAlloc(int64(osize))
	return addr, nil
}

// AllocBig is alloc_big: a direct OS-backed allocation for an object
// too large for any size class.
func (m *Mutator) AllocBig(size uintptr, t TypeRef) (uintptr, error) {
	b, err := allocBig(m, size, t)
	if err != nil {
		return 0, err
	}
	m.accountAlloc(int64(b.size))
	return bigObjAddr(b), nil
}

// AllocTyped is alloc_typed: dispatches to AllocSmall or AllocBig based
// on the oracle's reported size for t.
func (m *Mutator) AllocTyped(t TypeRef) (uintptr, error) {
	sz := m.c.oracle.SizeOf(t)
	if _, _, ok := SizeClassFor(sz); ok {
		return m.AllocSmall(sz, t)
	}
	return m.AllocBig(sz, t)
}

// bigObjAddr gives a BigObject the same "value*" identity scheme a
// pool cell has: the address of its header.
func bigObjAddr(b *BigObject) uintptr {
	return uintptr(hdrID(b))
}

// accountAlloc updates the allocation counters and, once the threshold
// is crossed, calls maybeCollect, which runs an automatic collection
// (spec.md §4.2: "on counter crossing zero triggers maybe_collect").
func (m *Mutator) accountAlloc(n int64) {
	if m.disableCount > 0 {
		m.deferredAlloc += n
		return
	}
	m.allocd += n
	m.poolalloc += n
	if uint64(m.allocd) >= m.c.currentInterval() {
		m.c.maybeCollect(m)
	}
}

// Enable toggles whether this mutator may trigger automatic
// collections and returns the previous state (spec.md §6
// "enable(bool) -> previous"). Disables nest per mutator: each
// Enable(false) needs its own Enable(true) before the mutator is
// enabled again. The collector keeps no process-wide counter; Collect
// is refused only while every mutator is disabled.
func (m *Mutator) Enable(enabled bool) bool {
	prev := m.disableCount == 0
	if enabled {
		if m.disableCount > 0 {
			m.disableCount--
		}
		if m.disableCount == 0 && m.deferredAlloc > 0 {
			m.allocd += m.deferredAlloc
			m.deferredAlloc = 0
		}
	} else {
		m.disableCount++
	}
	return prev
}

// IsEnabled reports whether this mutator currently permits automatic
// collection.
func (m *Mutator) IsEnabled() bool { return m.disableCount == 0 }

// parkAtSafepoint publishes mutatorWaiting with release semantics
// (go.uber.org/atomic's Store on amd64/arm64 is a sequentially
// consistent store, which subsumes release) so the collector's
// safepoint Wait (pollingSafepoint.Wait) acquire-load sees every store this mutator issued
// beforehand (spec.md §5 ordering (i)).
func (m *Mutator) parkAtSafepoint() {
	m.gcState.Store(uint32(mutatorWaiting))
}

func (m *Mutator) resumeFromSafepoint() {
	m.gcState.Store(uint32(mutatorRunning))
}

func (m *Mutator) parked() bool {
	return mutatorState(m.gcState.Load()) == mutatorWaiting
}
