package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocSmallReturnsDistinctAddrs(t *testing.T) {
	c := NewCollector(&stubOracle{size: 24})
	mut := c.NewMutator()

	a, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)
	b, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestAllocSmallFallsBackToBigObject(t *testing.T) {
	c := NewCollector(&stubOracle{})
	mut := c.NewMutator()

	addr, err := mut.AllocSmall(MaxSizeClass, TypeRef(1))
	require.NoError(t, err)
	require.NotZero(t, addr)
	require.Equal(t, 1, mut.bigObjects.n)
}

func TestAddRootRemoveRoot(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()
	mut.AddRoot(0x1000)
	mut.AddRoot(0x2000)
	require.Len(t, mut.roots, 2)

	mut.RemoveRoot(0x1000)
	require.Equal(t, []uintptr{0x2000}, mut.roots)
}

func TestEnableDisableNesting(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()
	require.True(t, mut.IsEnabled())

	mut.Enable(false)
	mut.Enable(false)
	require.False(t, mut.IsEnabled())

	mut.Enable(true)
	require.False(t, mut.IsEnabled(), "still disabled: nesting depth 2 needs two enables")

	mut.Enable(true)
	require.True(t, mut.IsEnabled())
}

func TestAccountAllocDeferredWhileDisabled(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()
	mut.Enable(false)
	mut.accountAlloc(100)
	require.Zero(t, mut.allocd)
	require.EqualValues(t, 100, mut.deferredAlloc)

	mut.Enable(true)
	require.EqualValues(t, 100, mut.allocd)
	require.Zero(t, mut.deferredAlloc)
}

func TestDetachRemovesFromRoster(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()
	require.Len(t, c.mutators, 1)

	c.Detach(mut)
	require.Len(t, c.mutators, 0)
	require.Nil(t, c.mutatorByID(mut.id))
}
