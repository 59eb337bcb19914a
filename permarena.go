package gc

import "sync"

// PermArena is C4: a monotonic bump allocator for data that must
// outlive every collection (spec.md §4.4). It is never swept; its only
// point of contact with a GC cycle is gcSweepPermAlloc, which exists
// purely to run extension callbacks on a full sweep.
type PermArena struct {
	mu  sync.Mutex
	src OSPageSource

	cur    []byte
	curOff uintptr
	slabs  [][]byte // retained so the backing memory is never reclaimed

	extensions []func([]byte)
}

func newPermArena(src OSPageSource) *PermArena {
	return &PermArena{src: src}
}

// roundUp rounds n up to a multiple of align (align must be a power of two).
func roundUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

// Alloc is the locked entry point (spec.md §4.4: "Two entry points:
// locked and not-locked"). Requests larger than PoolLimit bypass the
// slab and map directly from the OS with the requested alignment and
// offset, exactly as spec.md describes.
func (a *PermArena) Alloc(size uintptr, zero bool, align, offset uintptr) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocLocked(size, zero, align, offset)
}

// AllocNoLock is the not-locked entry point, for call sites that
// already hold the arena's lock indirectly (e.g. a caller bootstrapping
// several related immortal objects atomically under its own critical
// section around a batch of Alloc calls would deadlock on Alloc itself,
// so it takes the lock once and uses AllocNoLock per object).
func (a *PermArena) AllocNoLock(size uintptr, zero bool, align, offset uintptr) ([]byte, error) {
	return a.allocLocked(size, zero, align, offset)
}

func (a *PermArena) allocLocked(size uintptr, zero bool, align, offset uintptr) ([]byte, error) {
	if align == 0 {
		align = ObjAlign
	}
	if size > PoolLimit {
		n := int(roundUp(size+offset, uintptr(PageSize)))
		_, mem, err := a.src.MapBlock(n)
		if err != nil {
			return nil, &CollectorError{Kind: ErrOutOfMemory, Op: "perm_alloc", Err: err}
		}
		a.slabs = append(a.slabs, mem)
		start := roundUp(uintptr(0)+offset, align) - offset
		return mem[start : start+size], nil
	}

	want := roundUp(size+offset, align) - offset
	if a.cur == nil || a.curOff+want+size > uintptr(len(a.cur)) {
		_, mem, err := a.src.MapBlock(PermPoolSize)
		if err != nil {
			return nil, &CollectorError{Kind: ErrOutOfMemory, Op: "perm_alloc slab", Err: err}
		}
		a.slabs = append(a.slabs, mem)
		a.cur = mem
		a.curOff = 0
	}
	start := a.curOff + (roundUp(a.curOff+offset, align) - (a.curOff + offset))
	end := start + size
	if end > uintptr(len(a.cur)) {
		return nil, &CollectorError{Kind: ErrSizeOverflow, Op: "perm_alloc"}
	}
	region := a.cur[start:end]
	if zero {
		for i := range region {
			region[i] = 0
		}
	}
	a.curOff = end
	return region, nil
}

// registerSweepExtension records a callback gcSweepPermAlloc invokes on
// every full sweep (spec.md §4.4).
func (a *PermArena) registerSweepExtension(f func([]byte)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.extensions = append(a.extensions, f)
}

// gcSweepPermAlloc runs on a full sweep only (sweep.go sweepAll); the arena
// itself is never reclaimed, only its registered extension callbacks
// get a chance to run (spec.md §4.4).
func (a *PermArena) gcSweepPermAlloc() {
	a.mu.Lock()
	slabs := append([][]byte(nil), a.slabs...)
	exts := append([]func([]byte){}, a.extensions...)
	a.mu.Unlock()
	for _, f := range exts {
		for _, s := range slabs {
			f(s)
		}
	}
}
