// Package arena implements the block allocators that back the loader and the
// saver.
//
// A Pool hands out byte slices carved from fixed-size blocks. A Table stores
// typed records in fixed-size blocks and addresses them by index. In both
// cases storage is never moved once handed out: later pushes append blocks
// instead of growing existing ones, so slices and element pointers stay valid
// until Clear or Release.
package arena

import (
	"errors"
	"fmt"
)

// BlockSize is the capacity of a single Pool block in bytes.
const BlockSize = 4096

var (
	// ErrOutOfCapacity is returned when a single allocation cannot fit in one
	// block, or when a Table has reached its element limit.
	ErrOutOfCapacity = errors.New("arena: out of capacity")
	// ErrShortBlock is returned when an Allocator hands back less than
	// BlockSize bytes.
	ErrShortBlock = errors.New("arena: allocator returned a short block")
)

// Allocator supplies and reclaims block storage for a Pool.
//
// Allocate must return a slice of at least size bytes whose backing array is
// not reused until it is passed to Free. Free must accept a nil slice.
type Allocator interface {
	Allocate(size int) []byte
	Free(b []byte)
}

type heapAllocator struct{}

func (heapAllocator) Allocate(size int) []byte { return make([]byte, size) }
func (heapAllocator) Free([]byte)              {}

// Heap is the default Allocator. It allocates from the Go heap and leaves
// reclamation to the garbage collector.
var Heap Allocator = heapAllocator{}

type block struct {
	data []byte
	next *block
}

// Pool is a bump-pointer allocator over a chain of BlockSize blocks.
type Pool struct {
	alloc Allocator
	head  *block
	tail  *block
	cur   *block
	index int
}

// NewPool returns an empty pool. No memory is allocated until the first Push.
// A nil allocator selects Heap.
func NewPool(alloc Allocator) *Pool {
	if alloc == nil {
		alloc = Heap
	}
	return &Pool{alloc: alloc}
}

// Push reserves size zeroed bytes and returns them. The returned slice has
// its capacity clipped to size so appends cannot spill into neighbouring
// allocations.
func (p *Pool) Push(size int) ([]byte, error) {
	if size < 0 || size > BlockSize {
		return nil, fmt.Errorf("%w: %d bytes requested, block holds %d", ErrOutOfCapacity, size, BlockSize)
	}
	if p.cur == nil || p.index+size > len(p.cur.data) {
		if err := p.nextBlock(); err != nil {
			return nil, err
		}
	}
	b := p.cur.data[p.index : p.index+size : p.index+size]
	clear(b)
	p.index += size
	return b, nil
}

// PushString copies s into the pool followed by a NUL terminator and returns
// the copy without the terminator.
func (p *Pool) PushString(s []byte) ([]byte, error) {
	b, err := p.Push(len(s) + 1)
	if err != nil {
		return nil, err
	}
	n := copy(b, s)
	b[n] = 0
	return b[:n:n], nil
}

// Clear rewinds the pool to its first block. Blocks are kept and reused by
// later pushes; everything previously returned must be considered invalid.
func (p *Pool) Clear() {
	p.cur = p.head
	p.index = 0
}

// Release returns every block to the allocator.
func (p *Pool) Release() {
	for b := p.head; b != nil; {
		next := b.next
		p.alloc.Free(b.data)
		b.data = nil
		b.next = nil
		b = next
	}
	p.head, p.tail, p.cur = nil, nil, nil
	p.index = 0
}

// Blocks reports how many blocks the pool currently owns.
func (p *Pool) Blocks() int {
	n := 0
	for b := p.head; b != nil; b = b.next {
		n++
	}
	return n
}

// nextBlock moves the cursor to a fresh block, reusing one left behind by
// Clear when possible.
func (p *Pool) nextBlock() error {
	switch {
	case p.cur != nil && p.cur.next != nil:
		p.cur = p.cur.next
	default:
		data := p.alloc.Allocate(BlockSize)
		if len(data) < BlockSize {
			p.alloc.Free(data)
			return ErrShortBlock
		}
		b := &block{data: data[:BlockSize:BlockSize]}
		if p.tail == nil {
			p.head = b
		} else {
			p.tail.next = b
		}
		p.tail = b
		p.cur = b
	}
	p.index = 0
	return nil
}
