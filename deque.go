package gc

import "go.uber.org/atomic"

// Deque is C6: the Chase-Lev work-stealing deque (spec.md §4.6) used
// to load-balance mark work across a fixed pool of marker goroutines.
// The owner calls Push/Pop from one goroutine; any number of other
// goroutines call Steal concurrently.
//
// spec.md writes this against a C-style relaxed/acquire/release/fence
// memory model. Go's sync/atomic (and go.uber.org/atomic, its typed
// wrapper) give every operation sequentially-consistent semantics,
// which is strictly stronger than what the algorithm requires - so the
// acquire-load/release-store/full-fence vocabulary in the comments
// below describes the *minimum* ordering the algorithm needs, which
// Go's atomics satisfy by construction, not a set of relaxed operations
// this code is taking care to downgrade.
type Deque struct {
	top    atomic.Int64
	bottom atomic.Int64
	buf    atomic.Pointer[circularArray]
}

type circularArray struct {
	mask int64
	data []uintptr
}

func newCircularArray(capacity int64) *circularArray {
	return &circularArray{mask: capacity - 1, data: make([]uintptr, capacity)}
}

func (a *circularArray) get(i int64) uintptr    { return a.data[i&a.mask] }
func (a *circularArray) put(i int64, v uintptr) { a.data[i&a.mask] = v }

func (a *circularArray) grow(t, b int64) *circularArray {
	na := newCircularArray((a.mask + 1) * 2)
	for i := t; i < b; i++ {
		na.put(i, a.get(i))
	}
	return na
}

const dequeInitCapacity = 1024

// NewDeque returns an empty deque with an initial power-of-two capacity.
func NewDeque() *Deque {
	d := &Deque{}
	d.buf.Store(newCircularArray(dequeInitCapacity))
	return d
}

// Push is called only by the owner goroutine.
func (d *Deque) Push(v uintptr) {
	b := d.bottom.Load()
	t := d.top.Load() // acquire: must not grow past what a thief might still read
	a := d.buf.Load()
	if b-t >= a.mask+1 {
		a = a.grow(t, b)
		d.buf.Store(a)
	}
	a.put(b, v)
	d.bottom.Store(b + 1) // release: publishes the slot written above
}

// Pop is called only by the owner goroutine. It returns false if the
// deque is empty, or if the owner lost a race with a thief for the
// last element.
func (d *Deque) Pop() (uintptr, bool) {
	b := d.bottom.Load() - 1
	a := d.buf.Load()
	d.bottom.Store(b)
	t := d.top.Load()
	if t > b {
		// Deque was already empty; undo the speculative decrement.
		d.bottom.Store(b + 1)
		return 0, false
	}
	v := a.get(b)
	if t == b {
		// Last element: race a thief for it via CAS on top.
		if !d.top.CAS(t, t+1) {
			d.bottom.Store(b + 1)
			return 0, false
		}
		d.bottom.Store(b + 1)
		return v, true
	}
	return v, true
}

// Steal is called by any goroutine other than the owner.
func (d *Deque) Steal() (uintptr, bool) {
	t := d.top.Load()
	b := d.bottom.Load()
	if t >= b {
		return 0, false
	}
	a := d.buf.Load()
	v := a.get(t)
	if !d.top.CAS(t, t+1) {
		// Lost a race with the owner's Pop or another thief's Steal.
		return 0, false
	}
	return v, true
}

// Len is a racy size estimate, useful only for logging/stats.
func (d *Deque) Len() int64 {
	b := d.bottom.Load()
	t := d.top.Load()
	if b < t {
		return 0
	}
	return b - t
}
