package gc

import "unsafe"

// BigObject is a value larger than MaxSizeClass (spec.md glossary),
// allocated outside the pool/page machinery. It is born OLD: a big
// object is walked by the mark engine at most once per cycle either
// way, so there is nothing to gain from tracking it as young
// (spec.md §4.3).
type BigObject struct {
	next, prev *BigObject
	size       uintptr
	hdr        Header
	data       []byte // the object's payload, cache-line sized up
	owner      int    // id of the mutator that allocated it, for remset attribution
}

// bigObjList is a doubly-linked intrusive list of BigObjects. Go has
// its own GC for this package's bookkeeping nodes, so there is no need
// for the teacher's prev-pointer-to-field trick (spec.md §9
// "cyclic structures"): a plain prev/next pair gives O(1) unlink.
type bigObjList struct {
	head *BigObject
	n    int
}

func (l *bigObjList) pushFront(b *BigObject) {
	b.prev = nil
	b.next = l.head
	if l.head != nil {
		l.head.prev = b
	}
	l.head = b
	l.n++
}

func (l *bigObjList) remove(b *BigObject) {
	if b.prev != nil {
		b.prev.next = b.next
	} else if l.head == b {
		l.head = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	}
	b.next, b.prev = nil, nil
	l.n--
}

func (l *bigObjList) forEach(f func(*BigObject)) {
	for b, next := l.head, (*BigObject)(nil); b != nil; b = next {
		next = b.next
		f(b)
	}
}

// hdrID gives a BigObject a stable identity for use as a "value*": the
// address of its header field. This package's heap objects are never
// moved once allocated, so taking the address here is as stable as a
// real allocator's pointer would be.
func hdrID(b *BigObject) unsafe.Pointer {
	return unsafe.Pointer(&b.hdr)
}

// cacheLineSize is the alignment big_alloc rounds requests up to
// (spec.md §4.3: "Rounds sz to cache-line alignment").
const cacheLineSize = 64

func roundCacheLine(sz uintptr) uintptr {
	return (sz + cacheLineSize - 1) &^ (cacheLineSize - 1)
}

// allocBig is C3's entry point. It is called by Mutator.AllocBig once
// size classification has decided the request does not fit a pool
// page.
func allocBig(mut *Mutator, sz uintptr, t TypeRef) (*BigObject, error) {
	rounded := roundCacheLine(sz)
	b := &BigObject{
		size:  rounded,
		hdr:   NewHeader(t),
		data:  make([]byte, rounded),
		owner: mut.id,
	}
	// Big objects are born OLD (spec.md §4.3) so the first mark cycle
	// that reaches them need not rescan them on every later quick sweep.
	b.hdr.retagOldOnAlloc()
	mut.bigObjects.pushFront(b)
	mut.c.registerBig(b)
	mut.notifyExternalAlloc(b)
	return b, nil
}

// retagOldOnAlloc is allocBig's one-shot initializer: unlike
// retagOldMarked (layout.go), it does not need CAS semantics
// because no other goroutine can see b yet.
func (h *Header) retagOldOnAlloc() {
	w := h.word.Load()
	h.word.Store((w &^ uintptr(gcBitsMask)) | uintptr(Old))
}

// reallocString grows a string-shaped big object in place when
// possible. spec.md §4.3 and §9 both flag this as an acknowledged
// hazard: on the realloc path the old backing block is freed even
// though a caller may still hold an alias to it. This is intentional -
// a "safe" allocate-new-then-copy-unconditionally version is a
// documented divergence, not a drop-in improvement, because callers of
// this API are expected to update every live reference themselves
// before calling it again.
func reallocString(mut *Mutator, b *BigObject, newSize uintptr) (*BigObject, error) {
	bits := b.hdr.Bits()
	small := newSize+WordSize <= MaxSizeClass
	if small || bits.isMarked() {
		nb := &BigObject{size: roundCacheLine(newSize), hdr: b.hdr, data: make([]byte, roundCacheLine(newSize)), owner: mut.id}
		copy(nb.data, b.data)
		mut.bigObjects.pushFront(nb)
		mut.c.registerBig(nb)
		return nb, nil
	}
	mut.bigObjects.remove(b)
	mut.c.unregisterBig(b)
	grown := make([]byte, roundCacheLine(newSize))
	copy(grown, b.data)
	b.data = grown // old backing array becomes unreachable here - see doc above
	b.size = roundCacheLine(newSize)
	mut.bigObjects.pushFront(b)
	mut.c.registerBig(b)
	return b, nil
}
