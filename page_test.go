package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResetPageFreelistThreadsEveryCell(t *testing.T) {
	pm := &pageMeta{base: 7 * PageSize}
	resetPage(pm, 64, 0, 0)

	n := cellsPerPage(64)
	require.Equal(t, n, pm.nfree)

	seen := 0
	for i, ok := pm.popFree(); ok; i, ok = pm.popFree() {
		require.GreaterOrEqual(t, i, 0)
		require.Less(t, i, n)
		seen++
	}
	require.Equal(t, n, seen)
	require.Equal(t, 0, pm.nfree)
}

func TestCellAddrRoundTrip(t *testing.T) {
	pm := &pageMeta{base: 3 * PageSize}
	resetPage(pm, 32, 0, 0)

	for i := 0; i < len(pm.cells); i++ {
		addr := pm.cellAddr(i)
		got, ok := pm.cellIndex(addr)
		require.True(t, ok)
		require.Equal(t, i, got)
	}
}

func TestCellIndexRejectsOutOfRange(t *testing.T) {
	pm := &pageMeta{base: 0}
	resetPage(pm, 32, 0, 0)

	_, ok := pm.cellIndex(pm.base)
	require.False(t, ok, "address before PageOffset is never a cell")

	_, ok = pm.cellIndex(pm.base + uintptr(PageOffset) + uintptr(len(pm.cells)*pm.osize))
	require.False(t, ok, "address past the last cell is out of range")
}

func TestPushFreeThenPopFreeReusesIndex(t *testing.T) {
	pm := &pageMeta{base: 0}
	resetPage(pm, 16, 0, 0)
	for pm.nfree > 0 {
		pm.popFree()
	}
	pm.pushFree(5)
	i, ok := pm.popFree()
	require.True(t, ok)
	require.Equal(t, 5, i)
}
