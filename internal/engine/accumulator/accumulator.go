// Package accumulator provides the append-only event buffer used by a
// session. Storage is a list of chunks whose sizes grow geometrically, so an
// append never copies previously stored elements and element addresses stay
// stable for the lifetime of the buffer.
package accumulator

import (
	"errors"
	"sort"
)

const (
	firstChunk = 64
	maxChunk   = 1 << 16
)

// ErrFull is returned by Append once the buffer holds limit elements.
var ErrFull = errors.New("accumulator: limit reached")

// Buffer is an append-only sequence with an optional hard size limit.
// The zero value is an unlimited, empty buffer.
type Buffer[T any] struct {
	chunks [][]T
	starts []int // index of the first element of each chunk
	n      int
	limit  int // 0 = unlimited
}

// New creates a Buffer that accepts at most limit elements. limit <= 0
// means unlimited.
func New[T any](limit int) *Buffer[T] {
	if limit < 0 {
		limit = 0
	}
	return &Buffer[T]{limit: limit}
}

// Append stores v and returns its index. It returns ErrFull without storing
// anything when the limit is reached.
func (b *Buffer[T]) Append(v T) (int, error) {
	if b.Full() {
		return -1, ErrFull
	}
	last := len(b.chunks) - 1
	if last < 0 || len(b.chunks[last]) == cap(b.chunks[last]) {
		size := firstChunk
		if last >= 0 {
			size = min(2*cap(b.chunks[last]), maxChunk)
		}
		b.chunks = append(b.chunks, make([]T, 0, size))
		b.starts = append(b.starts, b.n)
		last++
	}
	b.chunks[last] = append(b.chunks[last], v)
	b.n++
	return b.n - 1, nil
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int { return b.n }

// Full reports whether the next Append would fail.
func (b *Buffer[T]) Full() bool { return b.limit > 0 && b.n >= b.limit }

// At returns a pointer to the i-th element. The pointer stays valid for the
// lifetime of the buffer. At panics if i is out of range.
func (b *Buffer[T]) At(i int) *T {
	if i < 0 || i >= b.n {
		panic("accumulator: index out of range")
	}
	c := sort.Search(len(b.starts), func(k int) bool { return b.starts[k] > i }) - 1
	return &b.chunks[c][i-b.starts[c]]
}

// Snapshot returns a contiguous copy of the stored elements, or nil when the
// buffer is empty. Later appends do not affect the returned slice.
func (b *Buffer[T]) Snapshot() []T {
	if b.n == 0 {
		return nil
	}
	out := make([]T, 0, b.n)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}
