package gc

// EnableConservativeGCSupport turns on InternalObjBasePtr for the
// lifetime of this Collector. Spec.md §9 flags this as an open
// question: a conservatively-scanned stack may hold an interior pointer
// that predates reset-age semantics ever running against it, so the
// first enable forces one full sweep to make every live cell's age bit
// meaningful before any interior-pointer lookup is trusted. Once set,
// the flag stays set for the life of the Collector and a later call is
// a no-op. Marking and sweeping do not read the flag; it only gates
// InternalObjBasePtr.
func (c *Collector) EnableConservativeGCSupport() error {
	c.mu.Lock()
	already := c.tunables.ConservativeGCSupport
	c.tunables.ConservativeGCSupport = true
	c.mu.Unlock()
	if already {
		return nil
	}
	return c.Collect(CollectFull)
}

// InternalObjBasePtr resolves an arbitrary (possibly interior) address
// to the base address of the managed object it falls within, or
// (0, false) if conservative GC support is off or addr is not inside
// any page or big object this collector owns. It is the conservative-GC
// support spec.md §6 names: a caller that only has an interior pointer
// (e.g. from scanning a native stack without precise frame maps) can
// still contribute a valid root. It does not check whether a pool cell
// is allocated: an address inside a free cell also resolves to that
// cell's base.
func (c *Collector) InternalObjBasePtr(addr uintptr) (uintptr, bool) {
	c.mu.Lock()
	enabled := c.tunables.ConservativeGCSupport
	c.mu.Unlock()
	if !enabled {
		return 0, false
	}
	pageIdx := uint64(addr) / uint64(PageSize)
	if pm := c.pageTable.lookup(pageIdx); pm != nil {
		off := addr - pm.base
		if int(off) < PageOffset {
			return 0, false
		}
		cellOff := int(off) - PageOffset
		if pm.osize == 0 || cellOff >= len(pm.cells)*pm.osize {
			return 0, false
		}
		i := cellOff / pm.osize
		return pm.cellAddr(i), true
	}

	c.bigMu.RLock()
	defer c.bigMu.RUnlock()
	for base, b := range c.bigIndex {
		if addr >= base && addr < base+b.size {
			return base, true
		}
	}
	return 0, false
}
