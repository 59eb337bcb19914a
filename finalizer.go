package gc

import "fmt"

// FinalizerFunc is a managed finalizer callback: it receives the
// value's own address so it can inspect or re-register itself.
type FinalizerFunc func(addr uintptr)

// RawFinalizerFunc is a raw (non-managed) finalizer callback, e.g. one
// that frees a foreign resource an external allocator owns. Spec.md §6
// distinguishes "raw" from "managed" finalizers via a tagged bit on
// registration, since a raw callback must never itself allocate or
// touch other managed values (it may run after the collector has
// already decided the world is otherwise unreachable).
type RawFinalizerFunc func(addr uintptr)

// finalizerEntry is one registered finalizer, kept in insertion order
// per mutator so finalizers run in reverse registration order
// (spec.md §4.9 "to_finalize drains LIFO: a value finalized later
// depends on one finalized earlier still being intact").
type finalizerEntry struct {
	addr    uintptr
	managed FinalizerFunc
	raw     RawFinalizerFunc
}

// RegisterFinalizer arranges for f to run the first time addr is found
// unreachable. Calling it again for the same addr before that happens
// is a DoubleEnableFinalizers error (spec.md §7): this package does not
// silently replace or stack finalizers for one value.
func (m *Mutator) RegisterFinalizer(addr uintptr, f FinalizerFunc) error {
	for _, e := range m.finalizers {
		if e.addr == addr {
			return &CollectorError{Kind: ErrDoubleEnableFinalizers, Op: "register_finalizer"}
		}
	}
	m.finalizers = append(m.finalizers, finalizerEntry{addr: addr, managed: f})
	return nil
}

// RegisterRawFinalizer is RegisterFinalizer for a callback that must
// not touch managed values (spec.md §6: "raw finalizers run after the
// managed finalizer pass and may not allocate").
func (m *Mutator) RegisterRawFinalizer(addr uintptr, f RawFinalizerFunc) error {
	for _, e := range m.finalizers {
		if e.addr == addr {
			return &CollectorError{Kind: ErrDoubleEnableFinalizers, Op: "register_raw_finalizer"}
		}
	}
	m.finalizers = append(m.finalizers, finalizerEntry{addr: addr, raw: f})
	return nil
}

// DeregisterFinalizer cancels a pending finalizer, e.g. when a value's
// owner has torn it down deterministically and the deferred callback
// would be redundant or unsafe.
func (m *Mutator) DeregisterFinalizer(addr uintptr) {
	for i, e := range m.finalizers {
		if e.addr == addr {
			m.finalizers = append(m.finalizers[:i], m.finalizers[i+1:]...)
			return
		}
	}
}

// sweepFinalizerList is C9's discovery step, run as part of sweep
// (spec.md §4.9 "sweep_finalizer_list"): any registered finalizer whose
// target did not get marked this cycle is unreachable garbage. Its
// entry moves from m.finalizers into toRun and the target is
// resurrected - retagged MARKED so it survives this sweep pass, since
// its finalizer callback is allowed to observe it (and objects it
// references) one last time before the next cycle reclaims it for
// real.
//
// An unmarked OLD target is only proven dead by a full sweep, exactly
// as sweepPage's own Old case requires: a quick cycle never rescans the
// old generation, so an OLD-and-unmarked target during a quick sweep
// has simply not been visited this cycle, not confirmed unreachable.
func (m *Mutator) sweepFinalizerList(c *Collector, full bool) []finalizerEntry {
	var live []finalizerEntry
	var toRun []finalizerEntry
	for _, e := range m.finalizers {
		h := c.resolveHeader(e.addr)
		if h == nil || h.Bits().isMarked() || (h.Bits() == Old && !full) {
			live = append(live, e)
			continue
		}
		h.retagMarked()
		toRun = append(toRun, e)
	}
	m.finalizers = live
	return toRun
}

// runFinalizers executes toRun in reverse registration order: managed
// callbacks first (they may reference other managed values, which are
// still intact because of the resurrection above), then raw callbacks.
// A panicking managed callback is recorded as a FinalizerException and
// does not prevent the remaining finalizers from running
// (spec.md §7).
func runFinalizers(toRun []finalizerEntry) []error {
	var errs []error
	for i := len(toRun) - 1; i >= 0; i-- {
		e := toRun[i]
		if e.managed != nil {
			if err := runOneFinalizer(func() { e.managed(e.addr) }); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for i := len(toRun) - 1; i >= 0; i-- {
		e := toRun[i]
		if e.raw != nil {
			if err := runOneFinalizer(func() { e.raw(e.addr) }); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

func runOneFinalizer(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CollectorError{Kind: ErrFinalizerException, Op: "run_finalizer", Err: recoverToError(r)}
		}
	}()
	f()
	return nil
}

func recoverToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("non-error panic value recovered from finalizer: %v", r)
}
