package arena

import (
	"fmt"
	"unsafe"
)

// Table stores records of type T in fixed-size blocks and addresses them by
// index. Each block holds as many records as fit in BlockSize bytes (at
// least one).
type Table[T any] struct {
	blocks   [][]T
	perBlock int
	n        int
	limit    int
}

// NewTable returns an empty table. A positive limit caps the number of
// records the table accepts; zero means unlimited.
func NewTable[T any](limit int) *Table[T] {
	var zero T
	per := BlockSize / max(int(unsafe.Sizeof(zero)), 1)
	return &Table[T]{perBlock: max(per, 1), limit: limit}
}

// Push appends v and returns its index.
func (t *Table[T]) Push(v T) (int, error) {
	if t.limit > 0 && t.n >= t.limit {
		return -1, fmt.Errorf("%w: table limit of %d records reached", ErrOutOfCapacity, t.limit)
	}
	b, off := t.n/t.perBlock, t.n%t.perBlock
	if b == len(t.blocks) {
		t.blocks = append(t.blocks, make([]T, t.perBlock))
	}
	t.blocks[b][off] = v
	t.n++
	return t.n - 1, nil
}

// At returns a pointer to the record at index i, or nil if i is out of range.
// The pointer stays valid until Clear or Release.
func (t *Table[T]) At(i int) *T {
	if i < 0 || i >= t.n {
		return nil
	}
	return &t.blocks[i/t.perBlock][i%t.perBlock]
}

// Len returns the number of records in the table.
func (t *Table[T]) Len() int { return t.n }

// Clear empties the table but keeps its blocks for reuse.
func (t *Table[T]) Clear() {
	t.n = 0
}

// Release drops every block.
func (t *Table[T]) Release() {
	t.blocks = nil
	t.n = 0
}

// Blocks reports how many blocks the table currently owns.
func (t *Table[T]) Blocks() int { return len(t.blocks) }
