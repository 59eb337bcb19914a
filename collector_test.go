package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollectReclaimsUnreachableObject(t *testing.T) {
	oracle := newLinkedOracle(1)
	c := NewCollector(oracle)
	mut := c.NewMutator()

	root, _ := mut.AllocSmall(16, TypeRef(1))
	garbage, _ := mut.AllocSmall(16, TypeRef(1))
	oracle.register(root)
	oracle.register(garbage)
	mut.AddRoot(root)

	require.NoError(t, c.Collect(CollectFull))

	rootIdx, rootPm := findCell(c, root)
	garbageIdx, garbagePm := findCell(c, garbage)
	require.NotNil(t, rootPm)
	require.NotNil(t, garbagePm)
	// Both cells read back CLEAN post-sweep - a reachable object's tag
	// is reset for next cycle same as a freed one's - but the root
	// actually survived marking, recorded in its page's age bitmap.
	require.Equal(t, Clean, rootPm.cells[rootIdx].Bits())
	require.True(t, rootPm.age.test(rootIdx), "the root was marked this cycle, so it should be recorded as having survived")
	require.Equal(t, Clean, garbagePm.cells[garbageIdx].Bits())
	require.False(t, garbagePm.age.test(garbageIdx), "garbage was never marked, so it never survives a sweep")

	stats := c.Num()
	require.EqualValues(t, 1, stats.Cycles)
	require.True(t, stats.LastWasFull)
}

// TestQueueBindingKeepsYoungReferentAliveThroughCollect drives the real
// write-barrier-to-mark path end to end (spec.md §8 remembered-set
// scenario: an old object's only route to a young
// referent is via the barrier's remset entry, not a root list entry of
// its own).
func TestQueueBindingKeepsYoungReferentAliveThroughCollect(t *testing.T) {
	oracle := newLinkedOracle(1)
	c := NewCollector(oracle)
	mut := c.NewMutator()

	owner, _ := mut.AllocSmall(16, TypeRef(1))
	oracle.register(owner)
	c.resolveHeader(owner).swap(Old)

	young, _ := mut.AllocSmall(16, TypeRef(1))
	oracle.register(young)
	oracle.link(owner, 0, young)

	// owner is not itself a root; young is reachable only through the
	// remembered set the write barrier records here.
	mut.QueueBinding(owner, young, func() uintptr { return young })

	require.NoError(t, c.Collect(CollectFull))

	youngIdx, youngPm := findCell(c, young)
	require.NotNil(t, youngPm)
	require.Equal(t, Clean, youngPm.cells[youngIdx].Bits())
	require.True(t, youngPm.age.test(youngIdx), "young must have been marked via owner's remset entry to survive")
}

func findCell(c *Collector, addr uintptr) (int, *pageMeta) {
	pm := c.pageTable.lookup(uint64(addr) / uint64(PageSize))
	if pm == nil {
		return -1, nil
	}
	i, ok := pm.cellIndex(addr)
	if !ok {
		return -1, nil
	}
	return i, pm
}

func TestCollectNoMutatorsIsNoop(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	require.NoError(t, c.Collect(CollectFull))
}

func TestCollectWhileAllDisabledReturnsError(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()
	mut.Enable(false)
	err := c.Collect(CollectFull)
	require.Error(t, err)
}

func TestCallbacksFireAroundCollect(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()
	mut.AddRoot(0) // a root that resolves to no object; NewMutator alone keeps the roster non-empty

	var pre, post int
	c.RegisterPreGC(func(c *Collector) { pre++ })
	c.RegisterPostGC(func(c *Collector, s Stats) { post++ })

	require.NoError(t, c.Collect(CollectQuick))
	require.Equal(t, 1, pre)
	require.Equal(t, 1, post)
}

func TestRegisterCallbackIsIdempotent(t *testing.T) {
	var l callbackList
	var calls int
	f := RootScannerFunc(func(c *Collector) []uintptr { calls++; return nil })
	l.register(f)
	l.register(f)
	require.Len(t, l.snapshot(), 1)
}
