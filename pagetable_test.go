package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageTableInsertLookupRemove(t *testing.T) {
	tbl := newPageTable()
	pm := &pageMeta{base: 42 * PageSize}
	tbl.insert(42, pm)

	require.Same(t, pm, tbl.lookup(42))
	require.Nil(t, tbl.lookup(43))

	tbl.remove(42)
	require.Nil(t, tbl.lookup(42))
}

func TestPageTableForEachPageSkipsEmptySubtrees(t *testing.T) {
	tbl := newPageTable()
	indices := []uint64{0, 1, l3Size + 5, (l2Size * l3Size) + 9}
	for _, idx := range indices {
		tbl.insert(idx, &pageMeta{base: uintptr(idx) * PageSize})
	}

	var seen []uint64
	tbl.forEachPage(func(pm *pageMeta) {
		seen = append(seen, uint64(pm.base/PageSize))
	})
	require.ElementsMatch(t, indices, seen)
}

func TestBitmapForEachSet(t *testing.T) {
	b := newBitmap(70)
	b.set(0)
	b.set(33)
	b.set(69)
	var got []int
	b.forEachSet(func(i int) { got = append(got, i) })
	require.Equal(t, []int{0, 33, 69}, got)
}

func TestBitmapEmpty(t *testing.T) {
	b := newBitmap(40)
	require.True(t, b.empty())
	b.set(10)
	require.False(t, b.empty())
	b.clear(10)
	require.True(t, b.empty())
}
