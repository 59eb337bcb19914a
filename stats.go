package gc

// Stats is a snapshot of collector bookkeeping (spec.md §6's supplement:
// live_bytes/num accessors, generalized into a struct rather than two
// bare functions so a caller logging or exporting metrics gets a
// consistent view instead of racing two separate locked reads).
type Stats struct {
	Cycles        uint64
	FullCycles    uint64
	LiveBytes     int64
	LastWasFull   bool
	CleanPages    int
	ToMadvise     int
	MadvisedPages int
}

// LiveBytes sums every mutator's allocd counter (spec.md §6
// "live_bytes"): the bytes allocated since the last collection, since
// Collect resets each counter to zero. It does not count the bytes that
// survived earlier collections.
func (c *Collector) LiveBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, m := range c.mutators {
		n += m.allocd
	}
	return n
}

// Num returns the supplemented cycle-count stats (spec.md §6 "num").
func (c *Collector) Num() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statsLocked()
}

func (c *Collector) statsLocked() Stats {
	clean, toMadvise, madvised := c.pageAlloc.idleCounts()
	var live int64
	for _, m := range c.mutators {
		live += m.allocd
	}
	return Stats{
		Cycles:        c.cycles,
		FullCycles:    c.fullCycles,
		LiveBytes:     live,
		LastWasFull:   c.lastFull,
		CleanPages:    clean,
		ToMadvise:     toMadvise,
		MadvisedPages: madvised,
	}
}
