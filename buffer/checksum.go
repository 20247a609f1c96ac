package buffer

import "github.com/zeebo/xxh3"

// Checksum hashes the bytes from it to End() with xxh3 (pulled from the
// pior-memcache example's dependency stack, where it hashes cache keys).
// It exists purely for tests and diagnostics -- comparing a checksum
// before and after an Insert/Release round trip is far cheaper than
// re-reading and diffing the whole tail when a test buffer spans many
// blocks.
func (b *Buffer) Checksum(it *Iterator) uint64 {
	h := xxh3.New()
	p := it.pos
	for {
		end := b.blockEnd(p.blk)
		h.Write(p.blk.data[p.off:end])
		if p.blk == b.tail {
			break
		}
		p.blk = p.blk.next
		p.off = 0
	}
	return h.Sum64()
}
