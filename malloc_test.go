package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManagedMallocTracksOwner(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()

	owner, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)

	raw, buf := mut.ManagedMalloc(owner, 64)
	require.Len(t, buf, 64)
	require.Len(t, mut.mallocedArrays, 1)
	require.Equal(t, raw, rawArrayAddr(mut.mallocedArrays[0]))
}

func TestManagedReallocGrowsInPlaceAndReparents(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()

	owner, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)
	raw, buf := mut.ManagedMalloc(owner, 4)
	copy(buf, []byte{1, 2, 3, 4})

	newOwner, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)

	newRaw, grown, err := mut.ManagedRealloc(raw, 8, 4, newOwner)
	require.NoError(t, err)
	require.Equal(t, raw, newRaw, "raw identity is the entry's own address, stable across realloc")
	require.Len(t, grown, 8)
	require.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0}, grown)
	require.Equal(t, newOwner, mut.mallocedArrays[0].owner)
}

func TestManagedReallocUnknownRawIsError(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()

	_, _, err := mut.ManagedRealloc(0xdead, 8, 4, 0)
	require.ErrorIs(t, err, ErrUnknownRawPointer)
}

func TestSweepMallocedArraysReclaimsDeadOwnerOnly(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()

	liveOwner, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)
	c.resolveHeader(liveOwner).swap(Marked)
	mut.ManagedMalloc(liveOwner, 8)

	deadOwner, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)
	mut.ManagedMalloc(deadOwner, 8) // never marked this cycle

	mut.sweepMallocedArrays(c, true)
	require.Len(t, mut.mallocedArrays, 1)
	require.Equal(t, liveOwner, mut.mallocedArrays[0].owner)
}

func TestSweepMallocedArraysKeepsUnmarkedOldUnlessFull(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()

	owner, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)
	c.resolveHeader(owner).swap(Old)
	mut.ManagedMalloc(owner, 8)

	mut.sweepMallocedArrays(c, false)
	require.Len(t, mut.mallocedArrays, 1, "a quick sweep never proves an OLD owner dead")

	mut.sweepMallocedArrays(c, true)
	require.Empty(t, mut.mallocedArrays)
}
