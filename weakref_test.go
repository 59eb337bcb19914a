package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWeakRefGetWhileLive(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()
	addr, _ := mut.AllocSmall(16, TypeRef(1))

	w := mut.NewWeakRef(addr)
	got, ok := w.Get()
	require.True(t, ok)
	require.Equal(t, addr, got)
}

func TestSweepWeakRefsClearsUnmarkedTarget(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()
	addr, _ := mut.AllocSmall(16, TypeRef(1))
	w := mut.NewWeakRef(addr)

	mut.sweepWeakRefs(c, true)
	_, ok := w.Get()
	require.False(t, ok)
}

func TestSweepWeakRefsKeepsMarkedTarget(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()
	addr, _ := mut.AllocSmall(16, TypeRef(1))
	w := mut.NewWeakRef(addr)

	h := c.resolveHeader(addr)
	h.swap(Marked)

	mut.sweepWeakRefs(c, true)
	got, ok := w.Get()
	require.True(t, ok)
	require.Equal(t, addr, got)
}
