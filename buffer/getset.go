package buffer

// getAt copies len(out) bytes starting at p into out. p..p+len(out) must
// lie within valid buffer data.
func (b *Buffer) getAt(p pos, out []byte) {
	blk := p.blk
	off := p.off
	left := b.blockEnd(blk) - off
	n := 0
	for n < len(out) {
		chunk := len(out) - n
		if chunk > left {
			chunk = left
		}
		copy(out[n:n+chunk], blk.data[off:off+chunk])
		n += chunk
		blk = blk.next
		off = 0
		left = b.size
	}
}

// setAt writes in into the buffer starting at p.
func (b *Buffer) setAt(p pos, in []byte) {
	blk := p.blk
	off := p.off
	left := b.blockEnd(blk) - off
	n := 0
	for n < len(in) {
		chunk := len(in) - n
		if chunk > left {
			chunk = left
		}
		copy(blk.data[off:off+chunk], in[n:n+chunk])
		n += chunk
		blk = blk.next
		off = 0
		left = b.size
	}
}

// Get reads len(out) bytes starting at it into out.
func (b *Buffer) Get(it *Iterator, out []byte) error {
	if !b.Has(it, len(out)) {
		return ErrNoData
	}
	b.getAt(it.pos, out)
	return nil
}

// Set overwrites len(in) bytes starting at it with in. The region must
// already exist in the buffer (Set never grows it); use Insert/AppendBack
// first if more room is needed.
func (b *Buffer) Set(it *Iterator, in []byte) error {
	if !b.Has(it, len(in)) {
		return ErrNoData
	}
	b.setAt(it.pos, in)
	return nil
}

// GetIOV fills up to max byte slices describing the contiguous runs of
// buffer data starting at it, without consuming any bytes. It is the Go
// analogue of the original's getIOV(iovec[]).
func (b *Buffer) GetIOV(it *Iterator, max int) [][]byte {
	out := make([][]byte, 0, max)
	p := it.pos
	for len(out) < max {
		end := b.blockEnd(p.blk)
		out = append(out, p.blk.data[p.off:end])
		if p.blk == b.tail {
			break
		}
		p.blk = p.blk.next
		p.off = 0
	}
	return out
}
