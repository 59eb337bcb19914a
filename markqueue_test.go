package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkQueueLIFOOrder(t *testing.T) {
	q := newMarkQueue()
	q.push(1)
	q.push(2)
	q.push(3)
	require.Equal(t, 3, q.len())

	v, ok := q.pop()
	require.True(t, ok)
	require.EqualValues(t, 3, v)
	require.False(t, q.empty())

	q.pop()
	q.pop()
	require.True(t, q.empty())
}

func TestMarkQueuePopEmpty(t *testing.T) {
	q := newMarkQueue()
	_, ok := q.pop()
	require.False(t, ok)
}
