package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBarrierNeededOldToYoung(t *testing.T) {
	young := NewHeader(TypeRef(1))
	require.True(t, barrierNeeded(Old, &young))
}

func TestBarrierNeededYoungToYoungIsNoop(t *testing.T) {
	young := NewHeader(TypeRef(1))
	require.False(t, barrierNeeded(Clean, &young))
}

func TestBarrierNeededOldToOldIsNoop(t *testing.T) {
	old := NewHeader(TypeRef(1))
	old.swap(Old)
	require.False(t, barrierNeeded(Old, &old))
}

func TestQueueBindingRecordsOldToYoungEdge(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()

	oldAddr, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)
	oldHdr := c.resolveHeader(oldAddr)
	require.NotNil(t, oldHdr)
	oldHdr.swap(Old)

	youngAddr, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)

	mut.QueueBinding(oldAddr, youngAddr, func() uintptr { return youngAddr })
	require.Equal(t, []uintptr{oldAddr}, mut.remset)
}

func TestQueueBindingModuleLevelUsesBindingList(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()

	youngAddr, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)

	mut.QueueBinding(0, youngAddr, func() uintptr { return youngAddr })
	require.Len(t, mut.remBindings, 1)
	require.Equal(t, youngAddr, mut.remBindings[0].owner)
}

func TestQueueBindingRetagsOwnerAndStopsRefiring(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()

	oldAddr, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)
	oldHdr := c.resolveHeader(oldAddr)
	oldHdr.swap(Old)

	youngAddr, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)

	mut.QueueBinding(oldAddr, youngAddr, func() uintptr { return youngAddr })
	require.Equal(t, Marked, oldHdr.Bits(), "firing the barrier must retag the owner to MARKED")
	require.Equal(t, []uintptr{oldAddr}, mut.remset)

	// The owner no longer looks old, so a second store through it must
	// not append a duplicate remset entry.
	other, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)
	mut.QueueBinding(oldAddr, other, func() uintptr { return other })
	require.Equal(t, []uintptr{oldAddr}, mut.remset, "a re-fire through an already-retagged owner must be a no-op")
}

func TestDrainRemsetRotatesBeforeDraining(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()

	oldAddr, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)
	c.resolveHeader(oldAddr).swap(Old)

	youngAddr, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)

	mut.QueueBinding(oldAddr, youngAddr, func() uintptr { return youngAddr })
	require.Equal(t, []uintptr{oldAddr}, mut.remset)
	require.Empty(t, mut.lastRemset)

	q := newMarkQueue()
	mut.drainRemset(q)

	// The entry recorded since the last premark must be drained this
	// very call, not left for the cycle after.
	require.Equal(t, 1, q.len())
	require.Equal(t, []uintptr{oldAddr}, mut.lastRemset)
	require.Empty(t, mut.remset)
}
