package mpp

import (
	"fmt"
	"math"

	"github.com/nimbledb/tnt-go/buffer"
)

// ExtValue is the materialized form of a MessagePack extension value
// produced by DecodeAny.
type ExtValue struct {
	Type int8
	Data []byte
}

// DecodeAny decodes the next value at the cursor into a plain Go value
// tree (nil, bool, uint64, int64, float32, float64, string, []byte,
// []any, map[any]any, ExtValue), copying every string/binary payload out
// of the buffer. It is the convenience path for callers that don't need
// zero-copy access or fine-grained family validation -- e.g. decoding a
// CALL response's return values, whose shape isn't known ahead of time.
// IPROTO's own maps (headers, bodies) key on small integers, which are
// always comparable map keys in Go; a MessagePack map keyed on an array
// or another map would panic here, which the wire protocol never does.
func (d *Decoder) DecodeAny() (any, Status, error) {
	tmp := d.cursor.Clone()
	defer tmp.Close()
	v, status, err := d.decodeAnyInto(tmp)
	if status == StatusOK {
		d.buf.Assign(d.cursor, tmp)
	}
	return v, status, err
}

func (d *Decoder) decodeAnyInto(tmp *buffer.Iterator) (any, Status, error) {
	if !d.need(tmp, 1) {
		return nil, StatusNeedMore, nil
	}
	tag, err := d.readByte(tmp)
	if err != nil {
		return nil, StatusNeedMore, nil
	}
	fam := familyOf(tag)

	switch fam {
	case FamNil:
		return nil, StatusOK, nil
	case FamBool:
		return tag == tagTrue, StatusOK, nil
	case FamPosInt:
		return uint64(tag), StatusOK, nil
	case FamNegInt:
		return int64(int8(tag)), StatusOK, nil
	case FamUint8, FamUint16, FamUint32, FamUint64:
		width := uintWidth(fam)
		if !d.need(tmp, width) {
			return nil, StatusNeedMore, nil
		}
		v, err := d.readUint(tmp, width)
		return v, statusFromErr(err), err
	case FamInt8, FamInt16, FamInt32, FamInt64:
		width := intWidth(fam)
		if !d.need(tmp, width) {
			return nil, StatusNeedMore, nil
		}
		u, err := d.readUint(tmp, width)
		if err != nil {
			return nil, StatusAbort, err
		}
		return signExtend(u, width), StatusOK, nil
	case FamFloat32:
		if !d.need(tmp, 4) {
			return nil, StatusNeedMore, nil
		}
		u, err := d.readUint(tmp, 4)
		if err != nil {
			return nil, StatusAbort, err
		}
		return math.Float32frombits(uint32(u)), StatusOK, nil
	case FamFloat64:
		if !d.need(tmp, 8) {
			return nil, StatusNeedMore, nil
		}
		u, err := d.readUint(tmp, 8)
		if err != nil {
			return nil, StatusAbort, err
		}
		return math.Float64frombits(u), StatusOK, nil
	case FamFixStr, FamFixBin:
		return d.decodeAnyBytes(tmp, int(tag&0x1f), fam == FamFixStr)
	case FamStr8, FamStr16, FamStr32:
		return d.decodeAnyLenPrefixedBytes(tmp, strLenWidth(fam), true)
	case FamBin8, FamBin16, FamBin32:
		return d.decodeAnyLenPrefixedBytes(tmp, binLenWidth(fam), false)
	case FamFixArray:
		return d.decodeAnyArray(tmp, int(tag&0x0f))
	case FamArray16, FamArray32:
		return d.decodeAnyArrayHeader(tmp, arrLenWidth(fam))
	case FamFixMap:
		return d.decodeAnyMap(tmp, int(tag&0x0f))
	case FamMap16, FamMap32:
		return d.decodeAnyMapHeader(tmp, mapLenWidth(fam))
	case FamFixExt:
		return d.decodeAnyExt(tmp, fixExtLen(tag))
	case FamExt8, FamExt16, FamExt32:
		return d.decodeAnyExtHeader(tmp, extLenWidth(fam))
	}
	return nil, StatusAbort, fmt.Errorf("mpp: unrecognized tag 0x%02x", tag)
}

func statusFromErr(err error) Status {
	if err != nil {
		return StatusAbort
	}
	return StatusOK
}

func (d *Decoder) decodeAnyBytes(tmp *buffer.Iterator, n int, asStr bool) (any, Status, error) {
	if !d.need(tmp, n) {
		return nil, StatusNeedMore, nil
	}
	out := make([]byte, n)
	if err := d.buf.Get(tmp, out); err != nil {
		return nil, StatusAbort, err
	}
	d.buf.MoveForward(tmp, n)
	if asStr {
		return string(out), StatusOK, nil
	}
	return out, StatusOK, nil
}

func (d *Decoder) decodeAnyLenPrefixedBytes(tmp *buffer.Iterator, lenWidth int, asStr bool) (any, Status, error) {
	if !d.need(tmp, lenWidth) {
		return nil, StatusNeedMore, nil
	}
	n64, err := d.readUint(tmp, lenWidth)
	if err != nil {
		return nil, StatusAbort, err
	}
	return d.decodeAnyBytes(tmp, int(n64), asStr)
}

func (d *Decoder) decodeAnyExt(tmp *buffer.Iterator, n int) (any, Status, error) {
	if !d.need(tmp, 1+n) {
		return nil, StatusNeedMore, nil
	}
	extType, err := d.readByte(tmp)
	if err != nil {
		return nil, StatusAbort, err
	}
	data := make([]byte, n)
	if err := d.buf.Get(tmp, data); err != nil {
		return nil, StatusAbort, err
	}
	d.buf.MoveForward(tmp, n)
	return ExtValue{Type: int8(extType), Data: data}, StatusOK, nil
}

func (d *Decoder) decodeAnyExtHeader(tmp *buffer.Iterator, lenWidth int) (any, Status, error) {
	if !d.need(tmp, lenWidth) {
		return nil, StatusNeedMore, nil
	}
	n64, err := d.readUint(tmp, lenWidth)
	if err != nil {
		return nil, StatusAbort, err
	}
	return d.decodeAnyExt(tmp, int(n64))
}

func (d *Decoder) decodeAnyArrayHeader(tmp *buffer.Iterator, lenWidth int) (any, Status, error) {
	if !d.need(tmp, lenWidth) {
		return nil, StatusNeedMore, nil
	}
	n64, err := d.readUint(tmp, lenWidth)
	if err != nil {
		return nil, StatusAbort, err
	}
	return d.decodeAnyArray(tmp, int(n64))
}

func (d *Decoder) decodeAnyArray(tmp *buffer.Iterator, n int) (any, Status, error) {
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		v, status, err := d.decodeAnyInto(tmp)
		if status != StatusOK {
			return nil, status, err
		}
		out = append(out, v)
	}
	return out, StatusOK, nil
}

func (d *Decoder) decodeAnyMapHeader(tmp *buffer.Iterator, lenWidth int) (any, Status, error) {
	if !d.need(tmp, lenWidth) {
		return nil, StatusNeedMore, nil
	}
	n64, err := d.readUint(tmp, lenWidth)
	if err != nil {
		return nil, StatusAbort, err
	}
	return d.decodeAnyMap(tmp, int(n64))
}

func (d *Decoder) decodeAnyMap(tmp *buffer.Iterator, n int) (any, Status, error) {
	out := make(map[any]any, n)
	for i := 0; i < n; i++ {
		k, status, err := d.decodeAnyInto(tmp)
		if status != StatusOK {
			return nil, status, err
		}
		v, status, err := d.decodeAnyInto(tmp)
		if status != StatusOK {
			return nil, status, err
		}
		out[k] = v
	}
	return out, StatusOK, nil
}
