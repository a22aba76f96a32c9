package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingWindowEvictsOldest(t *testing.T) {
	w := NewRollingWindow[int](100)
	for i := 0; i < 150; i++ {
		w.Append(i)
	}

	require.Equal(t, 100, w.Len())
	vals := w.Values()
	assert.Equal(t, 50, vals[0])
	assert.Equal(t, 149, vals[99])
}

func TestRollingWindowLast(t *testing.T) {
	w := NewRollingWindow[string](3)

	_, ok := w.Last()
	require.False(t, ok)

	w.Append("a")
	w.Append("b")
	last, ok := w.Last()
	require.True(t, ok)
	assert.Equal(t, "b", last)
}

func TestRollingWindowTail(t *testing.T) {
	w := NewRollingWindow[int](5)
	for i := 1; i <= 5; i++ {
		w.Append(i)
	}

	assert.Equal(t, []int{4, 5}, w.Tail(2))
	// Asking for more than held returns everything.
	assert.Equal(t, []int{1, 2, 3, 4, 5}, w.Tail(10))
}

func TestRollingWindowValuesIsACopy(t *testing.T) {
	w := NewRollingWindow[int](3)
	w.Append(1)
	vals := w.Values()
	vals[0] = 99

	fresh := w.Values()
	assert.Equal(t, 1, fresh[0])
}
