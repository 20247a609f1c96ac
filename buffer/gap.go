package buffer

// Insert opens a gap of n bytes at the position it points to, shifting
// every byte from it to End() forward by n and growing the buffer as
// needed. Iterators strictly after it in the iterator list move forward
// by n; it itself, and any iterator sharing its exact position but
// appearing earlier in the iterator list, stay put -- they end up sitting
// at the start of the newly opened gap. See spec section 4.1.
func (b *Buffer) Insert(it *Iterator, n int) error {
	if n <= 0 {
		return nil
	}
	end := pos{blk: b.tail, off: b.end}
	tailLen := b.distance(it.pos, end)

	var saved []byte
	if tailLen > 0 {
		saved = make([]byte, tailLen)
		b.getAt(it.pos, saved)
	}

	if err := b.growTail(n); err != nil {
		return err
	}

	if tailLen > 0 {
		dst := b.advance(it.pos, n)
		b.setAt(dst, saved)
	}

	// Every iterator strictly after `it` in the sorted list currently sits
	// at or beyond `it`'s old position; shifting each of them forward by
	// the same amount n preserves their relative order without needing to
	// resplice the list.
	for cur := it.next; cur != nil; cur = cur.next {
		cur.pos = b.advance(cur.pos, n)
	}
	return nil
}

// Release closes a gap of n bytes starting at it, shifting subsequent
// bytes backward and dropping n bytes from the tail. Iterators strictly
// after it+n move back by n. Any iterator positioned inside [it, it+n) is
// left dangling -- the caller must Close it first.
func (b *Buffer) Release(it *Iterator, n int) error {
	if n <= 0 {
		return nil
	}
	gapEnd := b.advance(it.pos, n)
	end := pos{blk: b.tail, off: b.end}
	tailLen := b.distance(gapEnd, end)

	if tailLen > 0 {
		saved := make([]byte, tailLen)
		b.getAt(gapEnd, saved)
		b.setAt(it.pos, saved)
	}

	for cur := b.firstIteratorAfter(gapEnd); cur != nil; cur = cur.next {
		cur.pos = b.retreat(cur.pos, n)
	}

	b.DropBack(n)
	return nil
}

// Resize changes the length of the region starting at it from oldSize to
// newSize bytes, calling Insert or Release as needed.
func (b *Buffer) Resize(it *Iterator, oldSize, newSize int) error {
	if newSize > oldSize {
		return b.Insert(it, newSize-oldSize)
	}
	if newSize < oldSize {
		return b.Release(it, oldSize-newSize)
	}
	return nil
}

// firstIteratorAfter returns the first iterator in the sorted list whose
// position is strictly greater than p, or nil.
func (b *Buffer) firstIteratorAfter(p pos) *Iterator {
	for cur := b.itersHead; cur != nil; cur = cur.next {
		if p.less(cur.pos) {
			return cur
		}
	}
	return nil
}
