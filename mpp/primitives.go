package mpp

import "fmt"

// DecodeMapHeader decodes just a map's entry count, without touching its
// entries -- the building block callers use when they need to branch on
// specific keys instead of materializing the whole map (the response
// decoder's header/body maps, spec section 4.4).
func (d *Decoder) DecodeMapHeader() (int, Status, error) {
	tmp := d.cursor.Clone()
	defer tmp.Close()
	if !d.need(tmp, 1) {
		return 0, StatusNeedMore, nil
	}
	tag, err := d.readByte(tmp)
	if err != nil {
		return 0, StatusNeedMore, nil
	}
	switch familyOf(tag) {
	case FamFixMap:
		d.buf.Assign(d.cursor, tmp)
		return int(tag & 0x0f), StatusOK, nil
	case FamMap16, FamMap32:
		w := mapLenWidth(familyOf(tag))
		if !d.need(tmp, w) {
			return 0, StatusNeedMore, nil
		}
		n, err := d.readUint(tmp, w)
		if err != nil {
			return 0, StatusAbort, err
		}
		d.buf.Assign(d.cursor, tmp)
		return int(n), StatusOK, nil
	default:
		return 0, StatusAbort, fmt.Errorf("mpp: expected map, got tag 0x%02x", tag)
	}
}

// DecodeArrayHeader is DecodeMapHeader's array counterpart.
func (d *Decoder) DecodeArrayHeader() (int, Status, error) {
	tmp := d.cursor.Clone()
	defer tmp.Close()
	if !d.need(tmp, 1) {
		return 0, StatusNeedMore, nil
	}
	tag, err := d.readByte(tmp)
	if err != nil {
		return 0, StatusNeedMore, nil
	}
	switch familyOf(tag) {
	case FamFixArray:
		d.buf.Assign(d.cursor, tmp)
		return int(tag & 0x0f), StatusOK, nil
	case FamArray16, FamArray32:
		w := arrLenWidth(familyOf(tag))
		if !d.need(tmp, w) {
			return 0, StatusNeedMore, nil
		}
		n, err := d.readUint(tmp, w)
		if err != nil {
			return 0, StatusAbort, err
		}
		d.buf.Assign(d.cursor, tmp)
		return int(n), StatusOK, nil
	default:
		return 0, StatusAbort, fmt.Errorf("mpp: expected array, got tag 0x%02x", tag)
	}
}

// DecodeUint decodes the next value as an unsigned integer, rejecting
// negative values -- the numeric-semantics rule that integer decoding
// must reject values that don't fit the target type.
func (d *Decoder) DecodeUint() (uint64, Status, error) {
	v, status, err := d.DecodeAny()
	if status != StatusOK {
		return 0, status, err
	}
	switch x := v.(type) {
	case uint64:
		return x, StatusOK, nil
	case int64:
		if x < 0 {
			return 0, StatusAbort, fmt.Errorf("mpp: expected non-negative integer, got %d", x)
		}
		return uint64(x), StatusOK, nil
	default:
		return 0, StatusAbort, fmt.Errorf("mpp: expected integer, got %T", v)
	}
}

// DecodeInt decodes the next value as a signed integer.
func (d *Decoder) DecodeInt() (int64, Status, error) {
	v, status, err := d.DecodeAny()
	if status != StatusOK {
		return 0, status, err
	}
	switch x := v.(type) {
	case uint64:
		if x > 1<<63-1 {
			return 0, StatusAbort, fmt.Errorf("mpp: value %d overflows int64", x)
		}
		return int64(x), StatusOK, nil
	case int64:
		return x, StatusOK, nil
	default:
		return 0, StatusAbort, fmt.Errorf("mpp: expected integer, got %T", v)
	}
}

// SkipValue consumes the next value without materializing it, returning
// only the ByteRange of its raw encoded bytes. This is how the response
// decoder pins each tuple's bytes for deferred, zero-copy application
// decoding (spec section 4.4).
func (d *Decoder) SkipValue() (ByteRange, Status, error) {
	tmp := d.cursor.Clone()
	defer tmp.Close()
	begin := tmp.Clone()
	_, status, err := d.decodeAnyInto(tmp)
	if status != StatusOK {
		begin.Close()
		return ByteRange{}, status, err
	}
	end := tmp.Clone()
	d.buf.Assign(d.cursor, tmp)
	return ByteRange{Begin: begin, End: end}, StatusOK, nil
}
