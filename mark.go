package gc

import (
	"sync"

	"go.uber.org/atomic"
)

// trySetMarkTag is the mark engine's claim protocol (spec.md §4.7): it
// atomically moves a CLEAN cell to MARKED or an OLD cell to OLD_MARKED,
// and reports whether this call performed the transition. A cell
// already MARKED or OLD_MARKED was claimed by someone else (or is this
// object's second incoming edge) and must not be scanned twice.
func trySetMarkTag(h *Header) bool {
	for {
		old := h.word.Load()
		bits := GCBits(old & uintptr(gcBitsMask))
		var next GCBits
		switch bits {
		case Clean:
			next = Marked
		case Old:
			next = OldMarked
		default:
			return false
		}
		nw := (old &^ uintptr(gcBitsMask)) | uintptr(next)
		if h.word.CAS(old, nw) {
			return true
		}
	}
}

// markWorker is one of the fixed pool of goroutines draining mark work
// during a stop-the-world mark phase (spec.md §4.6/§4.7). own is the
// worker's own Chase-Lev deque; peers are every worker's deque,
// including its own, for round-robin stealing.
type markWorker struct {
	id    int
	own   *Deque
	peers []*Deque
	idle  *atomic.Int64 // shared counter; run neither reads nor updates it
	n     int           // len(peers), cached
}

// run drains own, stealing from peers when it empties, and exits on its
// own once more than 2*n pop/steal attempts in a row have found nothing
// (spec.md §4.6: "a worker that finds its own deque and every peer's
// deque empty twice in a row exits"). Workers do not wait for each
// other; no work is lost, because only a deque's owner pushes to it and
// a worker exits only with its own deque empty.
func (w *markWorker) run(c *Collector, mut *Mutator, wg *sync.WaitGroup) {
	defer wg.Done()
	consecutiveEmpty := 0
	for {
		v, ok := w.own.Pop()
		if !ok {
			v, ok = w.steal()
		}
		if !ok {
			consecutiveEmpty++
			if consecutiveEmpty > w.n*2 {
				return
			}
			continue
		}
		consecutiveEmpty = 0
		scanObject(c, mut, v, w.own)
	}
}

func (w *markWorker) steal() (uintptr, bool) {
	for i := 1; i <= w.n; i++ {
		p := w.peers[(w.id+i)%w.n]
		if p == w.own {
			continue
		}
		if v, ok := p.Steal(); ok {
			return v, true
		}
	}
	return 0, false
}

// scanObject dispatches on the oracle's reported layout and pushes any
// newly-claimed children onto out (spec.md §4.7's obj8/obj16/obj32,
// objarray, array8/array16, stack, excstack, module_binding, and
// dynamic forms).
func scanObject(c *Collector, mut *Mutator, addr uintptr, out *Deque) {
	h := c.resolveHeader(addr)
	if h == nil {
		// A foreign (untracked) pointer slipped onto the queue - not an
		// error, per resolveHeader's doc.
		return
	}
	parentBits, t := h.Load()
	layout := c.oracle.Layout(t)
	needsRemset := false

	push := func(child uintptr) {
		ch := c.resolveHeader(child)
		if ch == nil {
			return
		}
		if parentBits.isOld() && !ch.Bits().isOld() {
			needsRemset = true
		}
		if trySetMarkTag(ch) {
			out.Push(child)
		}
	}

	switch layout.Desc {
	case FieldDescObj:
		for _, off := range layout.Offsets {
			push(c.oracle.ReadSlot(addr, uintptr(off), layout.Width))
		}
	case FieldDescArray:
		stride := layout.ArrayElemStride
		for i := 0; i < layout.ArrayLen; i++ {
			base := uintptr(i) * stride
			for _, off := range layout.Offsets {
				push(c.oracle.ReadSlot(addr, base+uintptr(off), layout.Width))
			}
		}
	case FieldDescSpecial:
		scanSpecial(c, layout.Special, addr, push)
	case FieldDescDynamic:
		bits := c.oracle.DynMark(c, mut, addr)
		if bits&MarkRefersYoung != 0 {
			needsRemset = needsRemset || parentBits.isOld()
		}
		if bits&MarkNeedsRemset != 0 {
			needsRemset = true
		}
	default:
		corruptTypePanic(addr, t, "unrecognized field descriptor during mark")
	}

	if needsRemset {
		appendRemsetForOwner(c, addr)
	}
}

// scanSpecial handles the three FieldDescSpecial shapes. A GC frame
// chain (stack) and an exception backtrace (excstack) are both walked
// as a flat array of slots the oracle describes through ReadSlot at
// successive word offsets until it returns zero; a module binding table
// is walked the same way, one binding per slot (spec.md §4.7 "module
// bindings share the object-field scan path").
func scanSpecial(c *Collector, special SpecialLayout, addr uintptr, push func(uintptr)) {
	switch special {
	case SpecialStack, SpecialExcStack, SpecialModuleBinding:
		for i := uintptr(0); ; i++ {
			v := c.oracle.ReadSlot(addr, i*WordSize, OffsetWidth32)
			if v == 0 {
				return
			}
			push(v)
		}
	}
}

// appendRemsetForOwner attributes a scan-time remembered-set hit to the
// mutator that owns addr: a pool cell's owner is its page's threadN; a
// big object's owner is its own owner field. This covers references
// that predate a write barrier ever firing for them, e.g. an object
// promoted to OLD by age while already holding a young reference
// (spec.md §4.7 step "the mark phase double-checks remset completeness,
// it does not solely trust the write barrier").
func appendRemsetForOwner(c *Collector, addr uintptr) {
	pageIdx := uint64(addr) / uint64(PageSize)
	if pm := c.pageTable.lookup(pageIdx); pm != nil {
		if mut := c.mutatorByID(pm.threadN); mut != nil {
			mut.remsetMu.Lock()
			mut.remset = append(mut.remset, addr)
			mut.remsetMu.Unlock()
		}
		return
	}
	c.bigMu.RLock()
	b := c.bigIndex[addr]
	c.bigMu.RUnlock()
	if b == nil {
		return
	}
	if mut := c.mutatorByID(b.owner); mut != nil {
		mut.remsetMu.Lock()
		mut.remset = append(mut.remset, addr)
		mut.remsetMu.Unlock()
	}
}

func corruptTypePanic(addr uintptr, t TypeRef, context string) {
	panic(&CorruptTypeError{Object: addr, Type: t, Context: context})
}

// runMarkPhase drains roots to completion across a c.numWorkers-sized
// worker pool, returning once every reachable object has been scanned
// (spec.md §4.6/§4.10 step 5). It must only be called with the world
// stopped.
func runMarkPhase(c *Collector, mut *Mutator, roots []uintptr) {
	n := c.numWorkers
	if n < 1 {
		n = 1
	}
	deques := make([]*Deque, n)
	for i := range deques {
		deques[i] = NewDeque()
	}
	// A root is seeded regardless of trySetMarkTag's outcome: unlike a
	// child discovered through scanObject's push closure, a root must
	// have its own fields scanned this cycle even if its header already
	// reads MARKED/OLD_MARKED coming in (e.g. a write barrier retagged
	// it ahead of this premark - barrier.go QueueBinding). trySetMarkTag
	// is still called to claim the header for any concurrent scanner
	// that later discovers the same address as a child; a local seen
	// set (not the header) is what dedups within this loop.
	seen := make(map[uintptr]bool, len(roots))
	idx := 0
	for _, r := range roots {
		if seen[r] {
			continue
		}
		h := c.resolveHeader(r)
		if h == nil {
			continue
		}
		seen[r] = true
		trySetMarkTag(h)
		deques[idx%n].Push(r)
		idx++
	}

	idle := atomic.NewInt64(0)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		w := &markWorker{id: i, own: deques[i], peers: deques, idle: idle, n: n}
		go w.run(c, mut, &wg)
	}
	wg.Wait()
}
