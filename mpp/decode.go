package mpp

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nimbledb/tnt-go/buffer"
)

// Decoder reads MessagePack values from a segmented buffer starting at a
// tracked cursor position. DecodeValue is transactional: on StatusOK the
// cursor advances past the consumed value; on StatusNeedMore or an error
// the cursor is left exactly where it was, so the caller can retry once
// more bytes have arrived off the wire (spec section 4.2, "NEEDMORE").
type Decoder struct {
	buf    *buffer.Buffer
	cursor *buffer.Iterator

	// pending accumulates every ByteRange handed to a Reader callback
	// during the current DecodeValue attempt. A composite value (array,
	// map) can deliver ranges for its earlier children and then hit
	// StatusNeedMore on a later one; since the whole attempt is retried
	// from the original cursor once more bytes arrive, those already
	// delivered ranges must be closed rather than leaked as orphaned
	// iterators in the buffer's iterator list.
	pending []ByteRange
}

// NewDecoder starts decoding at it. The Decoder takes ownership of a
// clone of it; the caller's iterator is not mutated or closed.
func NewDecoder(buf *buffer.Buffer, it *buffer.Iterator) *Decoder {
	return &Decoder{buf: buf, cursor: it.Clone()}
}

// Pos returns the decoder's current read cursor. The returned iterator is
// owned by the Decoder; callers must not Close it.
func (d *Decoder) Pos() *buffer.Iterator { return d.cursor }

// Close releases the decoder's cursor iterator.
func (d *Decoder) Close() { d.cursor.Close() }

// DecodeValue decodes the next MessagePack value at the cursor, feeding
// it to r's callbacks.
func (d *Decoder) DecodeValue(r Reader) (Status, error) {
	tmp := d.cursor.Clone()
	defer tmp.Close()
	d.pending = d.pending[:0]
	status, err := d.decodeInto(tmp, r)
	if status == StatusOK {
		d.buf.Assign(d.cursor, tmp)
	} else {
		for _, rng := range d.pending {
			rng.Close()
		}
	}
	d.pending = d.pending[:0]
	return status, err
}

func (d *Decoder) need(tmp *buffer.Iterator, n int) bool {
	return d.buf.Has(tmp, n)
}

func (d *Decoder) readByte(tmp *buffer.Iterator) (byte, error) {
	var b [1]byte
	if err := d.buf.Get(tmp, b[:]); err != nil {
		return 0, err
	}
	d.buf.MoveForward(tmp, 1)
	return b[0], nil
}

func (d *Decoder) readUint(tmp *buffer.Iterator, width int) (uint64, error) {
	buf := make([]byte, width)
	if err := d.buf.Get(tmp, buf); err != nil {
		return 0, err
	}
	d.buf.MoveForward(tmp, width)
	switch width {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(binary.BigEndian.Uint16(buf)), nil
	case 4:
		return uint64(binary.BigEndian.Uint32(buf)), nil
	case 8:
		return binary.BigEndian.Uint64(buf), nil
	}
	return 0, fmt.Errorf("mpp: bad uint width %d", width)
}

// readRange consumes n bytes at tmp and returns a ByteRange pinning them,
// without copying.
func (d *Decoder) readRange(tmp *buffer.Iterator, n int) ByteRange {
	begin := tmp.Clone()
	d.buf.MoveForward(tmp, n)
	end := tmp.Clone()
	return ByteRange{Begin: begin, End: end}
}

func (d *Decoder) decodeInto(tmp *buffer.Iterator, r Reader) (Status, error) {
	if !d.need(tmp, 1) {
		return StatusNeedMore, nil
	}
	tag, err := d.readByte(tmp)
	if err != nil {
		return StatusNeedMore, nil
	}
	fam := familyOf(tag)
	if !r.ValidTypes().Has(fam) {
		return StatusAbort, fmt.Errorf("mpp: unexpected family %v for tag 0x%02x", fam, tag)
	}

	switch fam {
	case FamNil:
		return StatusOK, r.OnNil()
	case FamBool:
		return StatusOK, r.OnBool(tag == tagTrue)
	case FamPosInt:
		return StatusOK, r.OnUint(uint64(tag))
	case FamNegInt:
		return StatusOK, r.OnInt(int64(int8(tag)))
	case FamUint8, FamUint16, FamUint32, FamUint64:
		width := uintWidth(fam)
		if !d.need(tmp, width) {
			return StatusNeedMore, nil
		}
		v, err := d.readUint(tmp, width)
		if err != nil {
			return StatusAbort, err
		}
		return StatusOK, r.OnUint(v)
	case FamInt8, FamInt16, FamInt32, FamInt64:
		width := intWidth(fam)
		if !d.need(tmp, width) {
			return StatusNeedMore, nil
		}
		u, err := d.readUint(tmp, width)
		if err != nil {
			return StatusAbort, err
		}
		return StatusOK, r.OnInt(signExtend(u, width))
	case FamFloat32:
		if !d.need(tmp, 4) {
			return StatusNeedMore, nil
		}
		u, err := d.readUint(tmp, 4)
		if err != nil {
			return StatusAbort, err
		}
		return StatusOK, r.OnFloat32(math.Float32frombits(uint32(u)))
	case FamFloat64:
		if !d.need(tmp, 8) {
			return StatusNeedMore, nil
		}
		u, err := d.readUint(tmp, 8)
		if err != nil {
			return StatusAbort, err
		}
		return StatusOK, r.OnFloat64(math.Float64frombits(u))
	case FamFixStr:
		return d.decodeStr(tmp, r, int(tag&0x1f))
	case FamStr8, FamStr16, FamStr32:
		return d.decodeLenPrefixed(tmp, r, strLenWidth(fam), r.OnStr)
	case FamFixBin:
		return d.decodeStr(tmp, r, int(tag&0x1f))
	case FamBin8, FamBin16, FamBin32:
		return d.decodeLenPrefixed(tmp, r, binLenWidth(fam), r.OnBin)
	case FamFixArray:
		return d.decodeArray(tmp, r, int(tag&0x0f))
	case FamArray16, FamArray32:
		return d.decodeArrayHeader(tmp, r, arrLenWidth(fam))
	case FamFixMap:
		return d.decodeMap(tmp, r, int(tag&0x0f))
	case FamMap16, FamMap32:
		return d.decodeMapHeader(tmp, r, mapLenWidth(fam))
	case FamFixExt:
		return d.decodeExt(tmp, r, fixExtLen(tag))
	case FamExt8, FamExt16, FamExt32:
		return d.decodeExtHeader(tmp, r, extLenWidth(fam))
	}
	return StatusAbort, fmt.Errorf("mpp: unhandled family %v", fam)
}

func (d *Decoder) decodeStr(tmp *buffer.Iterator, r Reader, n int) (Status, error) {
	if !d.need(tmp, n) {
		return StatusNeedMore, nil
	}
	rng := d.readRange(tmp, n)
	d.pending = append(d.pending, rng)
	if err := r.OnStr(rng); err != nil {
		return StatusAbort, err
	}
	return StatusOK, nil
}

func (d *Decoder) decodeLenPrefixed(tmp *buffer.Iterator, r Reader, lenWidth int, deliver func(ByteRange) error) (Status, error) {
	if !d.need(tmp, lenWidth) {
		return StatusNeedMore, nil
	}
	n64, err := d.readUint(tmp, lenWidth)
	if err != nil {
		return StatusAbort, err
	}
	n := int(n64)
	if !d.need(tmp, n) {
		return StatusNeedMore, nil
	}
	rng := d.readRange(tmp, n)
	d.pending = append(d.pending, rng)
	if err := deliver(rng); err != nil {
		return StatusAbort, err
	}
	return StatusOK, nil
}

func (d *Decoder) decodeExt(tmp *buffer.Iterator, r Reader, n int) (Status, error) {
	if !d.need(tmp, 1+n) {
		return StatusNeedMore, nil
	}
	extType, err := d.readByte(tmp)
	if err != nil {
		return StatusAbort, err
	}
	rng := d.readRange(tmp, n)
	d.pending = append(d.pending, rng)
	if err := r.OnExt(int8(extType), rng); err != nil {
		return StatusAbort, err
	}
	return StatusOK, nil
}

func (d *Decoder) decodeExtHeader(tmp *buffer.Iterator, r Reader, lenWidth int) (Status, error) {
	if !d.need(tmp, lenWidth) {
		return StatusNeedMore, nil
	}
	n64, err := d.readUint(tmp, lenWidth)
	if err != nil {
		return StatusAbort, err
	}
	return d.decodeExt(tmp, r, int(n64))
}

func (d *Decoder) decodeArrayHeader(tmp *buffer.Iterator, r Reader, lenWidth int) (Status, error) {
	if !d.need(tmp, lenWidth) {
		return StatusNeedMore, nil
	}
	n64, err := d.readUint(tmp, lenWidth)
	if err != nil {
		return StatusAbort, err
	}
	return d.decodeArray(tmp, r, int(n64))
}

func (d *Decoder) decodeArray(tmp *buffer.Iterator, r Reader, n int) (Status, error) {
	child, err := r.OnArray(n)
	if err != nil {
		return StatusAbort, err
	}
	if child == nil {
		child = discardReader{}
	}
	for i := 0; i < n; i++ {
		status, err := d.decodeInto(tmp, child)
		if status != StatusOK {
			return status, err
		}
	}
	return StatusOK, nil
}

func (d *Decoder) decodeMapHeader(tmp *buffer.Iterator, r Reader, lenWidth int) (Status, error) {
	if !d.need(tmp, lenWidth) {
		return StatusNeedMore, nil
	}
	n64, err := d.readUint(tmp, lenWidth)
	if err != nil {
		return StatusAbort, err
	}
	return d.decodeMap(tmp, r, int(n64))
}

func (d *Decoder) decodeMap(tmp *buffer.Iterator, r Reader, n int) (Status, error) {
	child, err := r.OnMap(n)
	if err != nil {
		return StatusAbort, err
	}
	if child == nil {
		child = discardReader{}
	}
	for i := 0; i < 2*n; i++ {
		status, err := d.decodeInto(tmp, child)
		if status != StatusOK {
			return status, err
		}
	}
	return StatusOK, nil
}

func uintWidth(f Family) int {
	switch f {
	case FamUint8:
		return 1
	case FamUint16:
		return 2
	case FamUint32:
		return 4
	default:
		return 8
	}
}

func intWidth(f Family) int {
	switch f {
	case FamInt8:
		return 1
	case FamInt16:
		return 2
	case FamInt32:
		return 4
	default:
		return 8
	}
}

func strLenWidth(f Family) int {
	switch f {
	case FamStr8:
		return 1
	case FamStr16:
		return 2
	default:
		return 4
	}
}

func binLenWidth(f Family) int {
	switch f {
	case FamBin8:
		return 1
	case FamBin16:
		return 2
	default:
		return 4
	}
}

func arrLenWidth(f Family) int {
	if f == FamArray16 {
		return 2
	}
	return 4
}

func mapLenWidth(f Family) int {
	if f == FamMap16 {
		return 2
	}
	return 4
}

func extLenWidth(f Family) int {
	switch f {
	case FamExt8:
		return 1
	case FamExt16:
		return 2
	default:
		return 4
	}
}

func signExtend(u uint64, width int) int64 {
	switch width {
	case 1:
		return int64(int8(u))
	case 2:
		return int64(int16(u))
	case 4:
		return int64(int32(u))
	default:
		return int64(u)
	}
}
