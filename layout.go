package gc

import (
	"unsafe"

	"go.uber.org/atomic"
)

// WordSize is the machine word size this build targets. Headers, the
// page table radix, and size classes are all derived from it.
const WordSize = unsafe.Sizeof(uintptr(0))

// ObjAlign is the alignment every heap allocation is rounded up to.
const ObjAlign = 16

// GCBits is the low-bits lattice packed into every object header. The
// remaining bits of the header hold a pointer to the object's type.
type GCBits uintptr

const (
	// Clean marks a live young object not yet reached this cycle.
	Clean GCBits = 0
	// Marked marks a live young object reachable this cycle.
	Marked GCBits = 1
	// Old marks a live old object, unmarked; survives quick sweeps
	// unscanned unless it shows up in a remembered set.
	Old GCBits = 2
	// OldMarked marks a live old object reached this cycle. Present in
	// a remembered set if it references a young object.
	OldMarked GCBits = 3
)

const gcBitsMask = GCBits(0x3)

// String renders a GCBits value for logging and test failure messages.
func (b GCBits) String() string {
	switch b & gcBitsMask {
	case Clean:
		return "clean"
	case Marked:
		return "marked"
	case Old:
		return "old"
	case OldMarked:
		return "old_marked"
	default:
		return "invalid"
	}
}

func (b GCBits) isOld() bool    { return b&Old != 0 }
func (b GCBits) isMarked() bool { return b&Marked != 0 }

// Header is the word-sized prefix of every managed object. Its low two
// bits are GC bits (see GCBits); the remaining bits hold a TypeRef as
// handed back by the type oracle, shifted left by two. The whole word
// is updated with a single atomic exchange so that a concurrent mark
// claim and a mutator write barrier never observe a half-written tag.
//
// Never split the GC bits and the type pointer across two atomic
// variables: the mark engine's claim protocol (trySetMarkTag) depends
// on reading and replacing both in one indivisible operation.
type Header struct {
	word atomic.Uintptr
}

// TypeRef is an opaque handle into the external type layout oracle.
// It is never dereferenced by this package; it is only packed into and
// unpacked out of a Header and handed back to a TypeOracle.
type TypeRef uintptr

// NewHeader packs a fresh CLEAN header for the given type. Allocation
// fast paths call this once per object; a pool/arena slot does not
// clear the previous tenant's bits on reuse, the allocator is
// responsible for writing a fresh header before returning the cell.
func NewHeader(t TypeRef) Header {
	var h Header
	h.word.Store(uintptr(t) << 2)
	return h
}

// Load reads the current bits and type atomically.
func (h *Header) Load() (GCBits, TypeRef) {
	w := h.word.Load()
	return GCBits(w & uintptr(gcBitsMask)), TypeRef(w >> 2)
}

// Bits returns only the GC-bit component.
func (h *Header) Bits() GCBits {
	b, _ := h.Load()
	return b
}

// Type returns only the type-pointer component.
func (h *Header) Type() TypeRef {
	_, t := h.Load()
	return t
}

// swap atomically replaces the bits while keeping the type pointer,
// returning the previous bits. Only the tests call it; the mark
// engine's claim and the sweep/retag helpers run their own CAS loops.
func (h *Header) swap(newBits GCBits) GCBits {
	for {
		old := h.word.Load()
		t := old &^ uintptr(gcBitsMask)
		nw := t | uintptr(newBits&gcBitsMask)
		if h.word.CAS(old, nw) {
			return GCBits(old & uintptr(gcBitsMask))
		}
	}
}

// demoteAfterSweep applies the per-cell sweep demotion of spec invariants
// 3-4: a young MARKED cell reverts to CLEAN, or promotes to OLD once it
// has survived PromoteAge sweeps; an OLD_MARKED cell only ever reverts
// to OLD, and only during a full sweep (sweepPage in sweep.go calls this
// for OLD_MARKED cells on both kinds of sweep, and with full == false
// the cell stays OLD_MARKED). Cells that are already CLEAN or OLD are
// left untouched.
func (h *Header) demoteAfterSweep(full bool, promote bool) {
	for {
		old := h.word.Load()
		bits := GCBits(old & uintptr(gcBitsMask))
		var next GCBits
		switch {
		case bits == Marked && promote:
			next = Old
		case bits == Marked:
			next = Clean
		case bits == OldMarked && full:
			next = Old
		default:
			return
		}
		nw := (old &^ uintptr(gcBitsMask)) | uintptr(next)
		if h.word.CAS(old, nw) {
			return
		}
	}
}

// retagMarked forces the header to MARKED regardless of its previous
// state. Used by the write barrier when it fires (barrier.go
// QueueBinding), so the owner stops looking old until the next premark,
// and by finalizer discovery (finalizer.go sweepFinalizerList), which
// treats a to-finalize object as a fresh young allocation so it stays
// alive until its callback runs.
func (h *Header) retagMarked() {
	for {
		old := h.word.Load()
		nw := (old &^ uintptr(gcBitsMask)) | uintptr(Marked)
		if h.word.CAS(old, nw) {
			return
		}
	}
}

// retagOldMarked forces OLD_MARKED. Used by premark to restore a
// rotated-out remembered-set entry to its true generation before
// queueing it as a mark root (barrier.go drainRemset).
func (h *Header) retagOldMarked() {
	for {
		old := h.word.Load()
		nw := (old &^ uintptr(gcBitsMask)) | uintptr(OldMarked)
		if h.word.CAS(old, nw) {
			return
		}
	}
}
