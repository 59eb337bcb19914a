package gc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterFinalizerRejectsDouble(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()
	addr, err := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, err)

	require.NoError(t, mut.RegisterFinalizer(addr, func(uintptr) {}))
	err = mut.RegisterFinalizer(addr, func(uintptr) {})
	require.Error(t, err)
	var cerr *CollectorError
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, ErrDoubleEnableFinalizers, cerr.Kind)
}

func TestDeregisterFinalizer(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()
	addr, _ := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, mut.RegisterFinalizer(addr, func(uintptr) {}))
	mut.DeregisterFinalizer(addr)
	require.Empty(t, mut.finalizers)
}

func TestSweepFinalizerListResurrectsUnmarked(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()
	addr, _ := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, mut.RegisterFinalizer(addr, func(uintptr) {}))

	toRun := mut.sweepFinalizerList(c, true)
	require.Len(t, toRun, 1)
	require.Empty(t, mut.finalizers, "a resurrected entry is consumed, not left pending")

	h := c.resolveHeader(addr)
	require.True(t, h.Bits().isMarked(), "resurrection must keep the object alive for its own callback")
}

func TestSweepFinalizerListLeavesMarkedAlone(t *testing.T) {
	c := NewCollector(&stubOracle{size: 16})
	mut := c.NewMutator()
	addr, _ := mut.AllocSmall(16, TypeRef(1))
	require.NoError(t, mut.RegisterFinalizer(addr, func(uintptr) {}))

	h := c.resolveHeader(addr)
	h.swap(Marked)

	toRun := mut.sweepFinalizerList(c, true)
	require.Empty(t, toRun)
	require.Len(t, mut.finalizers, 1)
}

func TestRunFinalizersOrderAndRecover(t *testing.T) {
	var order []int
	toRun := []finalizerEntry{
		{addr: 1, managed: func(uintptr) { order = append(order, 1) }},
		{addr: 2, managed: func(uintptr) { panic("boom") }},
		{addr: 3, managed: func(uintptr) { order = append(order, 3) }},
	}
	errs := runFinalizers(toRun)
	require.Equal(t, []int{3, 1}, order, "finalizers run in reverse registration order")
	require.Len(t, errs, 1)
	var cerr *CollectorError
	require.True(t, errors.As(errs[0], &cerr))
	require.Equal(t, ErrFinalizerException, cerr.Kind)
}
