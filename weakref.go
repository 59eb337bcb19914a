package gc

import "go.uber.org/atomic"

// WeakRef is a reference that does not itself keep its target alive.
// Get returns the target's address while it is still reachable through
// some other (strong) path, and zero once sweep has reclaimed it
// (spec.md §6 "weak_new/weak_get": "cleared, never rehashed - a
// weak-table compaction pass is explicitly out of scope").
type WeakRef struct {
	target atomic.Uintptr // 0 once cleared
}

// NewWeakRef wraps addr, which must currently be a live managed value.
func (m *Mutator) NewWeakRef(addr uintptr) *WeakRef {
	w := &WeakRef{}
	w.target.Store(addr)
	m.weakRefs = append(m.weakRefs, w)
	return w
}

// Get returns the wrapped address, or (0, false) if it has been
// cleared by a sweep that found the target unreachable.
func (w *WeakRef) Get() (uintptr, bool) {
	v := w.target.Load()
	return v, v != 0
}

// sweepWeakRefs is C8's weak-reference clearing step, run on every
// sweep (quick or full) before the page/pool walk so a weak target that
// is about to be reclaimed is never observed as "still there but about
// to vanish" (spec.md §4.8 step 1: "weak refs are cleared first, ahead
// of any other sweep work"). It also runs before finalizer discovery
// (sweepAll), so a weak ref whose target is reachable only through a
// pending finalizer is cleared in the same cycle that queues that
// finalizer.
//
// An unmarked OLD target is not proven dead unless full is true, same
// as sweepPage's own Old case and sweepFinalizerList: a quick cycle
// never rescans the old generation, so an OLD-and-unmarked target
// during a quick sweep just wasn't visited this cycle.
func (m *Mutator) sweepWeakRefs(c *Collector, full bool) {
	live := m.weakRefs[:0]
	for _, w := range m.weakRefs {
		addr := w.target.Load()
		if addr == 0 {
			continue
		}
		if h := c.resolveHeader(addr); h != nil && (h.Bits().isMarked() || (h.Bits() == Old && !full)) {
			live = append(live, w)
			continue
		}
		w.target.Store(0)
	}
	m.weakRefs = live
}
