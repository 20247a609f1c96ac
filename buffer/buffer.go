// Package buffer implements the segmented I/O buffer described in spec
// section 4.1: a growable byte deque stored as a linked list of fixed-size
// blocks, exposing stable iterators, scatter/gather views, and in-place
// gap insertion/removal.
package buffer

import (
	"errors"
	"fmt"

	"github.com/nimbledb/tnt-go/alloc"
)

// ErrNoData is returned by operations that require more bytes than the
// buffer currently holds from the given iterator onward.
var ErrNoData = errors.New("buffer: not enough data")

// renumberThreshold bounds how large block ids are allowed to grow before
// Buffer renumbers its block list back down to small integers, per spec
// section 4.1 "Block id reassignment". Renumbering never invalidates
// iterators because they hold block references, not ids.
const renumberThreshold = 1 << 20

// Buffer is a growable byte deque built from fixed-size blocks. The zero
// value is not usable; construct one with New or NewWithAllocator.
type Buffer struct {
	alloc alloc.Allocator
	size  int

	head  *block
	tail  *block
	begin int // offset of first valid byte in head
	end   int // offset one past the last valid byte in tail

	nextID uint64

	itersHead *Iterator
	itersTail *Iterator
}

// New creates an empty Buffer whose blocks are blockSize bytes, allocated
// from an unbounded alloc.Pool.
func New(blockSize int) *Buffer {
	return NewWithAllocator(alloc.NewPool(blockSize))
}

// NewWithAllocator creates an empty Buffer using a caller-supplied
// Allocator, e.g. alloc.NewBounded for backpressure on growth.
func NewWithAllocator(a alloc.Allocator) *Buffer {
	b := &Buffer{alloc: a, size: a.BlockSize()}
	first, err := b.newBlock()
	if err != nil {
		// A failure here means the allocator cannot produce even one
		// chunk (e.g. a Bounded allocator whose every chunk is already
		// outstanding elsewhere), which is treated as a caller bug.
		panic(fmt.Sprintf("buffer: failed to allocate initial block: %v", err))
	}
	b.head = first
	b.tail = first
	return b
}

// BlockSize returns the fixed size of each block, in bytes.
func (b *Buffer) BlockSize() int { return b.size }

// Empty reports whether the buffer holds zero bytes.
func (b *Buffer) Empty() bool {
	return b.head == b.tail && b.begin == b.end
}

func (b *Buffer) newBlock() (*block, error) {
	data, err := b.alloc.Allocate()
	if err != nil {
		return nil, err
	}
	b.nextID++
	return &block{data: data, id: b.nextID}, nil
}

func (b *Buffer) freeBlock(blk *block) {
	b.alloc.Deallocate(blk.data)
}

// blockEnd returns the offset, exclusive, of valid data in blk: b.end for
// the tail block, the full block size otherwise.
func (b *Buffer) blockEnd(blk *block) int {
	if blk == b.tail {
		return b.end
	}
	return b.size
}

// blockBegin returns the offset of the first valid byte in blk: b.begin
// for the head block, zero otherwise.
func (b *Buffer) blockBegin(blk *block) int {
	if blk == b.head {
		return b.begin
	}
	return 0
}

// Begin returns an iterator at the first valid byte of the buffer.
func (b *Buffer) Begin() *Iterator {
	it := &Iterator{buf: b, pos: pos{blk: b.head, off: b.begin}}
	b.linkHead(it)
	return it
}

// End returns an iterator one past the last valid byte of the buffer.
func (b *Buffer) End() *Iterator {
	it := &Iterator{buf: b, pos: pos{blk: b.tail, off: b.end}}
	b.linkTail(it)
	return it
}

// ------------------------------------------------------------------
// Iterator list management. The list is kept sorted by position at all
// times; see spec section 4.1 "Iterator-list algorithm for insert".
// ------------------------------------------------------------------

func (b *Buffer) linkHead(it *Iterator) {
	it.next = b.itersHead
	it.prev = nil
	if b.itersHead != nil {
		b.itersHead.prev = it
	} else {
		b.itersTail = it
	}
	b.itersHead = it
}

func (b *Buffer) linkTail(it *Iterator) {
	it.prev = b.itersTail
	it.next = nil
	if b.itersTail != nil {
		b.itersTail.next = it
	} else {
		b.itersHead = it
	}
	b.itersTail = it
}

// linkAfter inserts fresh immediately after anchor in the iterator list.
func (b *Buffer) linkAfter(anchor, fresh *Iterator) {
	fresh.prev = anchor
	fresh.next = anchor.next
	if anchor.next != nil {
		anchor.next.prev = fresh
	} else {
		b.itersTail = fresh
	}
	anchor.next = fresh
}

func (b *Buffer) unlink(it *Iterator) {
	if it.prev != nil {
		it.prev.next = it.next
	} else if b.itersHead == it {
		b.itersHead = it.next
	}
	if it.next != nil {
		it.next.prev = it.prev
	} else if b.itersTail == it {
		b.itersTail = it.prev
	}
	it.prev, it.next = nil, nil
}

// HasLiveIterators reports whether any iterator is currently registered
// against this buffer; used by debug assertions mirroring the original's
// destructor check that a live iterator list at teardown is a bug.
func (b *Buffer) HasLiveIterators() bool {
	return b.itersHead != nil
}
