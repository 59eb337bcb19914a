package gc

import (
	"reflect"
	"sync"
)

// callbackList is a register/deregister-able list of extension
// callbacks (spec.md §6: "Registration is idempotent; deregistration is
// O(n)"). T is left as `any` plus a type assertion at call sites rather
// than six near-identical generic instantiations, matching how the
// teacher groups its own small per-concern lists (finalizers,
// remembered sets) as plain slices rather than a generic container.
//
// Func values are not comparable and cannot key a map directly, so
// identity is tracked by entry-point address (reflect.Value.Pointer) -
// the same trick net/http uses to let a HandlerFunc compare equal to
// itself across registrations.
type callbackList struct {
	mu    sync.Mutex
	fns   []any
	index map[uintptr]int // entry-point address -> position, for idempotent Register
}

func funcAddr(f any) uintptr {
	return reflect.ValueOf(f).Pointer()
}

func (l *callbackList) register(f any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index == nil {
		l.index = make(map[uintptr]int)
	}
	addr := funcAddr(f)
	if _, ok := l.index[addr]; ok {
		return
	}
	l.index[addr] = len(l.fns)
	l.fns = append(l.fns, f)
}

func (l *callbackList) deregister(f any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	addr := funcAddr(f)
	i, ok := l.index[addr]
	if !ok {
		return
	}
	l.fns = append(l.fns[:i], l.fns[i+1:]...)
	delete(l.index, addr)
	for fn, idx := range l.index {
		if idx > i {
			l.index[fn] = idx - 1
		}
	}
}

func (l *callbackList) snapshot() []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]any(nil), l.fns...)
}

// RootScannerFunc supplies extra GC roots at the start of a mark phase
// (spec.md §6 extension callback: root_scanner).
type RootScannerFunc func(c *Collector) []uintptr

// TaskScannerFunc supplies roots from task/coroutine stacks the
// out-of-scope task provider manages (spec.md: task_scanner).
type TaskScannerFunc func(c *Collector) []uintptr

// PreGCFunc runs once per cycle before marking starts.
type PreGCFunc func(c *Collector)

// PostGCFunc runs once per cycle after sweep and before mutators resume.
type PostGCFunc func(c *Collector, stats Stats)

// NotifyExternalAllocFunc is told about every big-object allocation.
type NotifyExternalAllocFunc func(b *BigObject)

// NotifyExternalFreeFunc is told about every big-object reclaimed by sweep.
type NotifyExternalFreeFunc func(b *BigObject)

// extCallbacks groups the six lists spec.md §6 names.
type extCallbacks struct {
	rootScanner         callbackList
	taskScanner         callbackList
	preGC               callbackList
	postGC              callbackList
	notifyExternalAlloc callbackList
	notifyExternalFree  callbackList
}

// RegisterRootScanner adds f to the root_scanner list.
func (c *Collector) RegisterRootScanner(f RootScannerFunc) { c.callbacks.rootScanner.register(f) }

// DeregisterRootScanner removes f from the root_scanner list.
func (c *Collector) DeregisterRootScanner(f RootScannerFunc) { c.callbacks.rootScanner.deregister(f) }

// RegisterTaskScanner adds f to the task_scanner list.
func (c *Collector) RegisterTaskScanner(f TaskScannerFunc) { c.callbacks.taskScanner.register(f) }

// DeregisterTaskScanner removes f from the task_scanner list.
func (c *Collector) DeregisterTaskScanner(f TaskScannerFunc) { c.callbacks.taskScanner.deregister(f) }

// RegisterPreGC adds f to the pre_gc list.
func (c *Collector) RegisterPreGC(f PreGCFunc) { c.callbacks.preGC.register(f) }

// DeregisterPreGC removes f from the pre_gc list.
func (c *Collector) DeregisterPreGC(f PreGCFunc) { c.callbacks.preGC.deregister(f) }

// RegisterPostGC adds f to the post_gc list.
func (c *Collector) RegisterPostGC(f PostGCFunc) { c.callbacks.postGC.register(f) }

// DeregisterPostGC removes f from the post_gc list.
func (c *Collector) DeregisterPostGC(f PostGCFunc) { c.callbacks.postGC.deregister(f) }

// RegisterNotifyExternalAlloc adds f to the notify_external_alloc list.
func (c *Collector) RegisterNotifyExternalAlloc(f NotifyExternalAllocFunc) {
	c.callbacks.notifyExternalAlloc.register(f)
}

// DeregisterNotifyExternalAlloc removes f.
func (c *Collector) DeregisterNotifyExternalAlloc(f NotifyExternalAllocFunc) {
	c.callbacks.notifyExternalAlloc.deregister(f)
}

// RegisterNotifyExternalFree adds f to the notify_external_free list.
func (c *Collector) RegisterNotifyExternalFree(f NotifyExternalFreeFunc) {
	c.callbacks.notifyExternalFree.register(f)
}

// DeregisterNotifyExternalFree removes f.
func (c *Collector) DeregisterNotifyExternalFree(f NotifyExternalFreeFunc) {
	c.callbacks.notifyExternalFree.deregister(f)
}

func (m *Mutator) notifyExternalAlloc(b *BigObject) {
	for _, f := range m.c.callbacks.notifyExternalAlloc.snapshot() {
		f.(NotifyExternalAllocFunc)(b)
	}
}

func (m *Mutator) notifyExternalFree(b *BigObject) {
	for _, f := range m.c.callbacks.notifyExternalFree.snapshot() {
		f.(NotifyExternalFreeFunc)(b)
	}
}
