package buffer

// growTail extends the buffer by n bytes at the tail, allocating whole
// blocks as needed. Allocation is transactional: on failure, any blocks
// allocated during this call are released and the buffer is left
// unmodified.
func (b *Buffer) growTail(n int) error {
	if n <= 0 {
		return nil
	}
	leftInTail := b.size - b.end
	if n <= leftInTail {
		b.end += n
		return nil
	}
	remaining := n - leftInTail
	var fresh []*block
	for remaining > b.size {
		nb, err := b.newBlock()
		if err != nil {
			for _, blk := range fresh {
				b.freeBlock(blk)
			}
			return err
		}
		fresh = append(fresh, nb)
		remaining -= b.size
	}
	last, err := b.newBlock()
	if err != nil {
		for _, blk := range fresh {
			b.freeBlock(blk)
		}
		return err
	}
	fresh = append(fresh, last)
	for _, nb := range fresh {
		nb.prev = b.tail
		b.tail.next = nb
		b.tail = nb
	}
	b.end = remaining
	b.maybeRenumber()
	return nil
}

// AppendBack reserves n bytes at the tail of the buffer and returns an
// iterator at the start of the reservation. On failure the buffer is left
// unmodified.
func (b *Buffer) AppendBack(n int) (*Iterator, error) {
	if n == 0 {
		return b.End(), nil
	}
	start := pos{blk: b.tail, off: b.end}
	if err := b.growTail(n); err != nil {
		return nil, err
	}
	it := &Iterator{buf: b, pos: start}
	b.linkTail(it)
	return it, nil
}

// AddBack appends the contents of data to the buffer, growing it as
// necessary, and returns the number of bytes written.
func (b *Buffer) AddBack(data []byte) (int, error) {
	it, err := b.AppendBack(len(data))
	if err != nil {
		return 0, err
	}
	defer it.Close()
	if err := b.Set(it, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// DropFront releases n bytes from the head of the buffer. Whole emptied
// blocks are freed eagerly. The caller must ensure no live iterator points
// into the dropped region.
func (b *Buffer) DropFront(n int) {
	if n <= 0 {
		return
	}
	blk := b.head
	left := b.blockEnd(blk) - b.begin
	for n > left {
		next := blk.next
		b.freeBlock(blk)
		blk = next
		b.head = blk
		b.begin = 0
		n -= left
		left = b.blockEnd(blk) - b.begin
	}
	b.begin += n
}

// DropBack releases n bytes from the tail of the buffer. Whole emptied
// blocks are freed eagerly. The caller must ensure no live iterator points
// into the dropped region.
func (b *Buffer) DropBack(n int) {
	if n <= 0 {
		return
	}
	blk := b.tail
	left := b.end - b.blockBegin(blk)
	for n > left {
		prev := blk.prev
		b.freeBlock(blk)
		blk = prev
		b.tail = blk
		b.end = b.size
		n -= left
		left = b.end - b.blockBegin(blk)
	}
	b.end -= n
}

// maybeRenumber resets block ids back to small integers once they've
// grown past renumberThreshold, per spec section 4.1's note that this
// never invalidates iterators (they hold block references, not ids).
func (b *Buffer) maybeRenumber() {
	if b.nextID < renumberThreshold {
		return
	}
	var id uint64
	for blk := b.head; blk != nil; blk = blk.next {
		blk.id = id
		id++
	}
	b.nextID = id
}
