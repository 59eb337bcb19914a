package gc

import (
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// CollectKind selects how thorough a requested cycle must be
// (spec.md §4.10). CollectAuto lets the collector's own heuristics
// decide, which is what every automatic (threshold-triggered) cycle
// uses; CollectQuick and CollectFull force one or the other, which
// Collect's callers use for an explicit, deliberate cycle.
type CollectKind int

const (
	CollectAuto CollectKind = iota
	CollectQuick
	CollectFull
)

// Collector is C10: the central, process-wide orchestrator tying every
// other component together (spec.md §4.10). Collectors created with
// NewCollector share no state with each other; every Mutator belongs
// to one Collector for its whole lifetime.
type Collector struct {
	mu       sync.Mutex
	log      zerolog.Logger
	tunables Tunables
	oracle   TypeOracle
	safepoint SafepointDriver

	// stackPools and foreignObjs are the pluggable sweep-time
	// collaborators spec.md §4.8 steps 2-3 call out; nil means the
	// owning program has no such subsystem and the step is skipped.
	stackPools  StackPoolSweeper
	foreignObjs ForeignObjectSweeper

	pageTable *pageTable
	pageAlloc *pageAllocator
	permArena *PermArena

	mutators      []*Mutator
	mutatorIndex  map[int]*Mutator
	nextMutatorID int

	bigMu    sync.RWMutex
	bigIndex map[uintptr]*BigObject

	transientRoots []uintptr

	callbacks extCallbacks

	numWorkers int

	stopRequested atomic.Bool
	gcRunning     atomic.Bool

	cycles     uint64
	fullCycles uint64
	lastFull   bool

	// interval is the per-mutator allocation-byte budget before the
	// next automatic cycle; retune widens it after every cycle.
	interval uint64
}

// NewCollector constructs a Collector backed by oracle, the external
// type-layout provider every mark phase consults. Defaults match
// spec.md §6 unless overridden by an Option.
func NewCollector(oracle TypeOracle, opts ...Option) *Collector {
	c := &Collector{
		log:          defaultLogger(),
		tunables:     DefaultTunables(),
		oracle:       oracle,
		mutatorIndex: make(map[int]*Mutator),
		bigIndex:     make(map[uintptr]*BigObject),
		numWorkers:   4,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pageTable = newPageTable()
	c.pageAlloc = newPageAllocator(c.pageTable, c.log)
	c.permArena = newPermArena(newOSPageSource())
	c.safepoint = newPollingSafepoint()
	c.interval = c.tunables.DefaultCollectInterval
	return c
}

// indexMutator is called by NewMutator (mutator.go); it keeps the
// id->Mutator index that mark-time remset attribution reads (mark.go,
// appendRemsetForOwner) in sync.
func (c *Collector) indexMutator(m *Mutator) {
	c.mutatorIndex[m.id] = m
}

func (c *Collector) unindexMutator(m *Mutator) {
	delete(c.mutatorIndex, m.id)
}

func (c *Collector) mutatorByID(id int) *Mutator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mutatorIndex[id]
}

// registerBig/unregisterBig maintain the address->BigObject index
// resolveHeader (barrier.go) uses to find a big object's Header from
// its "value*" address.
func (c *Collector) registerBig(b *BigObject) {
	c.bigMu.Lock()
	c.bigIndex[bigObjAddr(b)] = b
	c.bigMu.Unlock()
}

func (c *Collector) unregisterBig(b *BigObject) {
	c.bigMu.Lock()
	delete(c.bigIndex, bigObjAddr(b))
	c.bigMu.Unlock()
}

// currentInterval reports the live allocation budget, consulted by
// every mutator's accountAlloc (spec.md §4.2).
func (c *Collector) currentInterval() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// maybeCollect is called by a mutator that just crossed its allocation
// threshold; it triggers an automatic (CollectAuto) cycle. Errors are
// logged, not returned, matching spec.md's framing of automatic
// collection as best-effort background work a single allocation call
// should not fail because of.
func (c *Collector) maybeCollect(m *Mutator) {
	if err := c.Collect(CollectAuto); err != nil {
		c.log.Error().Err(err).Msg("gc: automatic collection failed")
	}
}

// Collect runs one stop-the-world cycle end to end (spec.md §4.10): stop
// every mutator at a safepoint, run the pre-GC callbacks, decide
// whether this cycle is full or quick, rotate remembered sets into mark
// roots, run the mark phase, sweep, drain pending OS madvise hints,
// re-tune the next interval, run the post-GC callbacks, and resume
// every mutator. A cycle requested while GC is globally disabled
// (every mutator has disableCount > 0) is a deferred no-op
// (spec.md §7 ErrDisabledDuringCollect).
func (c *Collector) Collect(kind CollectKind) error {
	if !c.gcRunning.CAS(false, true) {
		// A cycle is already in flight on another goroutine; let it run
		// and treat this call as satisfied by it (spec.md §4.10: "a
		// concurrent Collect call coalesces with the one in progress").
		return nil
	}
	defer c.gcRunning.Store(false)

	c.mu.Lock()
	mutators := append([]*Mutator(nil), c.mutators...)
	c.mu.Unlock()

	if len(mutators) == 0 {
		return nil
	}
	if allDisabled(mutators) {
		return &CollectorError{Kind: ErrDisabledDuringCollect, Op: "collect"}
	}

	c.stopRequested.Store(true)
	c.safepoint.Begin(mutators)
	c.safepoint.Wait(mutators)

	for _, f := range c.callbacks.preGC.snapshot() {
		f.(PreGCFunc)(c)
	}

	full := c.decideFull(kind, mutators)

	roots := c.collectRoots(mutators, full)

	// A GC-owned pseudo-mutator context for DynMark collaboration; the
	// mark phase itself does not allocate.
	gcMut := &Mutator{id: -1, c: c}
	runMarkPhase(c, gcMut, roots)

	kindSweep := SweepQuick
	if full {
		kindSweep = SweepFull
	}
	sweepErr := c.sweepAll(kindSweep)

	madvised := c.pageAlloc.drainToMadvise()

	c.cycles++
	if full {
		c.fullCycles++
	}
	c.lastFull = full
	c.retune(full)

	stats := c.statsLocked()
	stats.MadvisedPages = madvised
	for _, f := range c.callbacks.postGC.snapshot() {
		f.(PostGCFunc)(c, stats)
	}

	for _, m := range mutators {
		m.allocd = 0
	}

	c.stopRequested.Store(false)
	c.safepoint.End(mutators)

	// A requested full collection is not followed by a second,
	// automatic one: the next cycle starts at the next allocation
	// threshold or explicit Collect call.

	return sweepErr
}

func allDisabled(mutators []*Mutator) bool {
	for _, m := range mutators {
		if m.IsEnabled() {
			return false
		}
	}
	return true
}

// decideFull applies spec.md §4.10's full-sweep heuristic: an explicit
// CollectFull always is; CollectQuick never is; CollectAuto becomes
// full when the mutators' allocd counters (bytes allocated since the
// last cycle) sum past MaxTotalMemory, or when the count of completed
// cycles is a nonzero multiple of 8, to bound how long dead old objects
// can survive on a quick-sweep-only diet.
func (c *Collector) decideFull(kind CollectKind, mutators []*Mutator) bool {
	switch kind {
	case CollectFull:
		return true
	case CollectQuick:
		return false
	}
	if c.tunables.MaxTotalMemory > 0 {
		var live int64
		for _, m := range mutators {
			live += m.allocd
		}
		if uint64(live) > c.tunables.MaxTotalMemory {
			return true
		}
	}
	return c.cycles > 0 && c.cycles%8 == 0
}

// collectRoots gathers every mark source spec.md §4.10 step 4 names:
// each mutator's explicit roots, its rotated-in remembered set and
// module bindings (always, since a quick sweep still needs its remset
// rescanned even though it skips old cells otherwise), the collector's
// transient one-off roots, and every registered root_scanner/
// task_scanner extension.
func (c *Collector) collectRoots(mutators []*Mutator, full bool) []uintptr {
	q := newMarkQueue()
	for _, m := range mutators {
		for _, r := range m.roots {
			q.push(r)
		}
		m.drainRemset(q)
	}

	c.mu.Lock()
	q.buf = append(q.buf, c.transientRoots...)
	c.transientRoots = c.transientRoots[:0]
	c.mu.Unlock()

	for _, f := range c.callbacks.rootScanner.snapshot() {
		for _, r := range f.(RootScannerFunc)(c) {
			q.push(r)
		}
	}
	for _, f := range c.callbacks.taskScanner.snapshot() {
		for _, r := range f.(TaskScannerFunc)(c) {
			q.push(r)
		}
	}
	return q.buf
}

// retune widens the next cycle's allocation budget after every cycle:
// by half after a full cycle, by a quarter after a quick one, clamped to
// MaxCollectInterval when that is positive. It never narrows the
// interval and does not look at how much the cycle reclaimed or how
// much survived.
func (c *Collector) retune(full bool) {
	next := c.interval
	if full {
		next = next * 3 / 2
	} else {
		next = next + next/4
	}
	if c.tunables.MaxCollectInterval > 0 && next > c.tunables.MaxCollectInterval {
		next = c.tunables.MaxCollectInterval
	}
	c.interval = next
}

