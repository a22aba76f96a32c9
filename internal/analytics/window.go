// Package analytics implements the rolling statistics and learned models of
// the cost estimator: realized volatility, the slippage regressors, and the
// market impact model.
package analytics

import "github.com/gammazero/deque"

// RollingWindow is a fixed-capacity FIFO buffer. Appending beyond capacity
// evicts the oldest element. A window is owned exclusively by the component
// that maintains it and is not safe for concurrent use.
type RollingWindow[T any] struct {
	capacity int
	buf      deque.Deque[T]
}

// NewRollingWindow creates a window holding at most capacity elements.
func NewRollingWindow[T any](capacity int) *RollingWindow[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &RollingWindow[T]{capacity: capacity}
}

// Append adds v, evicting the oldest element when the window is full.
func (w *RollingWindow[T]) Append(v T) {
	if w.buf.Len() == w.capacity {
		w.buf.PopFront()
	}
	w.buf.PushBack(v)
}

// Len returns the number of elements currently held.
func (w *RollingWindow[T]) Len() int { return w.buf.Len() }

// Cap returns the fixed capacity.
func (w *RollingWindow[T]) Cap() int { return w.capacity }

// Last returns the most recently appended element.
func (w *RollingWindow[T]) Last() (T, bool) {
	var zero T
	if w.buf.Len() == 0 {
		return zero, false
	}
	return w.buf.Back(), true
}

// Values returns the window contents oldest-first as a fresh slice.
func (w *RollingWindow[T]) Values() []T {
	out := make([]T, w.buf.Len())
	for i := 0; i < w.buf.Len(); i++ {
		out[i] = w.buf.At(i)
	}
	return out
}

// Tail returns up to n of the most recent elements, oldest-first.
func (w *RollingWindow[T]) Tail(n int) []T {
	l := w.buf.Len()
	if n > l {
		n = l
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = w.buf.At(l - n + i)
	}
	return out
}
