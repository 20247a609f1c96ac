package mpp

import "github.com/nimbledb/tnt-go/buffer"

// ByteRange pins a span of MessagePack bytes inside a buffer with a pair
// of iterators, enabling deferred, zero-copy decoding: the caller can
// later Buffer.Get the span out, or hand the iterators to another
// Decoder. This is exactly the ByteRange the response decoder uses to
// pin each returned tuple's bytes (spec section 3).
type ByteRange struct {
	Begin *buffer.Iterator
	End   *buffer.Iterator
}

// Size returns the number of bytes spanned by the range.
func (r ByteRange) Size() int {
	if r.Begin == nil || r.End == nil {
		return 0
	}
	return buffer.Distance(r.Begin, r.End)
}

// Bytes copies the range's bytes out of the buffer.
func (r ByteRange) Bytes(b *buffer.Buffer) ([]byte, error) {
	out := make([]byte, r.Size())
	if err := b.Get(r.Begin, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the range's iterators. Safe to call on a zero ByteRange.
func (r ByteRange) Close() {
	if r.Begin != nil {
		r.Begin.Close()
	}
	if r.End != nil {
		r.End.Close()
	}
}

// Tracked wraps a value so the encoder records the byte span it occupies
// into Out, matching the track(value, range) specificator.
type Tracked struct {
	Value any
	Out   *ByteRange
}

func Track(v any, out *ByteRange) Tracked { return Tracked{v, out} }
