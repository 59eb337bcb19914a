package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSizeClassForSmall(t *testing.T) {
	class, cellSize, ok := SizeClassFor(8)
	require.True(t, ok)
	require.GreaterOrEqual(t, cellSize, 8+int(WordSize))
	require.Less(t, int(class), NumSizeClasses)
}

func TestSizeClassForTooBig(t *testing.T) {
	_, _, ok := SizeClassFor(MaxSizeClass)
	require.False(t, ok, "a request that can't fit a cell after the header must fall to big-object alloc")
}

func TestSizeClassMonotonic(t *testing.T) {
	prevSize := 0
	for sz := uintptr(1); sz <= 256; sz++ {
		_, cellSize, ok := SizeClassFor(sz)
		require.True(t, ok)
		require.GreaterOrEqual(t, cellSize, prevSize)
		prevSize = cellSize
	}
}

func TestCellsPerPagePositive(t *testing.T) {
	for i := 1; i < NumSizeClasses; i++ {
		if classToSize[i] == 0 {
			continue
		}
		require.Greater(t, cellsPerPage(classToSize[i]), 0)
	}
}
