package mpp

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nimbledb/tnt-go/buffer"
)

// Encoder writes MessagePack-encoded values to a segmented buffer's tail,
// picking the narrowest wire representation for each value unless a
// specificator forces one (spec section 4.2).
type Encoder struct {
	buf *buffer.Buffer
}

// NewEncoder wraps buf for MessagePack encoding. Every Encode call appends
// to buf's tail.
func NewEncoder(buf *buffer.Buffer) *Encoder { return &Encoder{buf: buf} }

// Buffer returns the underlying buffer, for callers (like the request
// encoder) that need to interleave raw writes -- e.g. the IPROTO frame's
// length prefix -- with MessagePack values.
func (e *Encoder) Buffer() *buffer.Buffer { return e.buf }

func (e *Encoder) write(p []byte) error {
	_, err := e.buf.AddBack(p)
	return err
}

func (e *Encoder) writeTag(tag byte) error {
	return e.write([]byte{tag})
}

// Encode dispatches on the runtime type of v -- the Go rendering of the
// original's compile-time type dispatch, since Go generics cannot key a
// single call off arbitrary heterogeneous arguments the way C++ template
// overloads can. Specificators (Str, Bin, Arr, Map, Ext, Raw, Reserved,
// Fixed, Tracked) take priority over the native-Go-type fallback paths.
func (e *Encoder) Encode(v any) error {
	switch x := v.(type) {
	case nil:
		return e.EncodeNil()
	case bool:
		return e.EncodeBool(x)
	case int:
		return e.EncodeInt(int64(x))
	case int8:
		return e.EncodeInt(int64(x))
	case int16:
		return e.EncodeInt(int64(x))
	case int32:
		return e.EncodeInt(int64(x))
	case int64:
		return e.EncodeInt(x)
	case uint:
		return e.EncodeUint(uint64(x))
	case uint8:
		return e.EncodeUint(uint64(x))
	case uint16:
		return e.EncodeUint(uint64(x))
	case uint32:
		return e.EncodeUint(uint64(x))
	case uint64:
		return e.EncodeUint(x)
	case float32:
		return e.EncodeFloat32(x)
	case float64:
		return e.EncodeFloat64(x)
	case string:
		return e.EncodeStr(x)
	case []byte:
		return e.EncodeBin(x)
	case []any:
		return e.EncodeArr(x)
	case Str:
		return e.EncodeStr(x.Value)
	case Bin:
		return e.EncodeBin(x.Value)
	case Raw:
		return e.write(x.Value)
	case Arr:
		return e.EncodeArr(x.Values)
	case Map:
		return e.EncodeMap(x.Entries)
	case Ext:
		return e.EncodeExt(x.Type, x.Value)
	case Reserved:
		it, err := e.buf.AppendBack(x.N)
		if err != nil {
			return err
		}
		it.Close()
		return nil
	case Fixed:
		return e.encodeFixedValue(x)
	case Tracked:
		begin := e.buf.End()
		if err := e.Encode(x.Value); err != nil {
			begin.Close()
			return err
		}
		end := e.buf.End()
		if x.Out != nil {
			*x.Out = ByteRange{Begin: begin, End: end}
		} else {
			begin.Close()
			end.Close()
		}
		return nil
	default:
		return fmt.Errorf("mpp: encode: unsupported type %T", v)
	}
}

func (e *Encoder) EncodeNil() error { return e.writeTag(tagNil) }

func (e *Encoder) EncodeBool(v bool) error {
	if v {
		return e.writeTag(tagTrue)
	}
	return e.writeTag(tagFalse)
}

// EncodeUint picks the narrowest unsigned representation: positive fixint
// for 0..127, otherwise the smallest of uint8/16/32/64 that fits.
func (e *Encoder) EncodeUint(v uint64) error {
	switch {
	case v <= 0x7f:
		return e.writeTag(byte(v))
	case v <= math.MaxUint8:
		return e.write([]byte{tagUint8, byte(v)})
	case v <= math.MaxUint16:
		buf := make([]byte, 3)
		buf[0] = tagUint16
		binary.BigEndian.PutUint16(buf[1:], uint16(v))
		return e.write(buf)
	case v <= math.MaxUint32:
		buf := make([]byte, 5)
		buf[0] = tagUint32
		binary.BigEndian.PutUint32(buf[1:], uint32(v))
		return e.write(buf)
	default:
		buf := make([]byte, 9)
		buf[0] = tagUint64
		binary.BigEndian.PutUint64(buf[1:], v)
		return e.write(buf)
	}
}

// EncodeInt picks the narrowest signed representation, including the
// negative-fixint range (-32..-1) and positive fixint for small
// non-negative values.
func (e *Encoder) EncodeInt(v int64) error {
	if v >= 0 {
		return e.EncodeUint(uint64(v))
	}
	switch {
	case v >= -32:
		return e.writeTag(byte(int8(v)))
	case v >= math.MinInt8:
		return e.write([]byte{tagInt8, byte(int8(v))})
	case v >= math.MinInt16:
		buf := make([]byte, 3)
		buf[0] = tagInt16
		binary.BigEndian.PutUint16(buf[1:], uint16(int16(v)))
		return e.write(buf)
	case v >= math.MinInt32:
		buf := make([]byte, 5)
		buf[0] = tagInt32
		binary.BigEndian.PutUint32(buf[1:], uint32(int32(v)))
		return e.write(buf)
	default:
		buf := make([]byte, 9)
		buf[0] = tagInt64
		binary.BigEndian.PutUint64(buf[1:], uint64(v))
		return e.write(buf)
	}
}

func (e *Encoder) EncodeFloat32(v float32) error {
	buf := make([]byte, 5)
	buf[0] = tagFloat32
	binary.BigEndian.PutUint32(buf[1:], math.Float32bits(v))
	return e.write(buf)
}

func (e *Encoder) EncodeFloat64(v float64) error {
	buf := make([]byte, 9)
	buf[0] = tagFloat64
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(v))
	return e.write(buf)
}

func (e *Encoder) EncodeStr(s string) error {
	if err := e.encodeStrHeader(len(s)); err != nil {
		return err
	}
	return e.write([]byte(s))
}

func (e *Encoder) encodeStrHeader(n int) error {
	switch {
	case n <= 31:
		return e.writeTag(0xa0 | byte(n))
	case n <= math.MaxUint8:
		return e.write([]byte{tagStr8, byte(n)})
	case n <= math.MaxUint16:
		buf := make([]byte, 3)
		buf[0] = tagStr16
		binary.BigEndian.PutUint16(buf[1:], uint16(n))
		return e.write(buf)
	default:
		buf := make([]byte, 5)
		buf[0] = tagStr32
		binary.BigEndian.PutUint32(buf[1:], uint32(n))
		return e.write(buf)
	}
}

func (e *Encoder) EncodeBin(b []byte) error {
	if err := e.encodeBinHeader(len(b)); err != nil {
		return err
	}
	return e.write(b)
}

func (e *Encoder) encodeBinHeader(n int) error {
	switch {
	case n <= math.MaxUint8:
		return e.write([]byte{tagBin8, byte(n)})
	case n <= math.MaxUint16:
		buf := make([]byte, 3)
		buf[0] = tagBin16
		binary.BigEndian.PutUint16(buf[1:], uint16(n))
		return e.write(buf)
	default:
		buf := make([]byte, 5)
		buf[0] = tagBin32
		binary.BigEndian.PutUint32(buf[1:], uint32(n))
		return e.write(buf)
	}
}

// EncodeArrayHeader writes only the array tag+length; callers append n
// values themselves. Used by callers building arrays incrementally (e.g.
// IPROTO_KEY tuples) without materializing a []any first.
func (e *Encoder) EncodeArrayHeader(n int) error {
	switch {
	case n <= 15:
		return e.writeTag(0x90 | byte(n))
	case n <= math.MaxUint16:
		buf := make([]byte, 3)
		buf[0] = tagArray16
		binary.BigEndian.PutUint16(buf[1:], uint16(n))
		return e.write(buf)
	default:
		buf := make([]byte, 5)
		buf[0] = tagArray32
		binary.BigEndian.PutUint32(buf[1:], uint32(n))
		return e.write(buf)
	}
}

func (e *Encoder) EncodeArr(values []any) error {
	if err := e.EncodeArrayHeader(len(values)); err != nil {
		return err
	}
	for _, v := range values {
		if err := e.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

// EncodeMapHeader writes only the map tag+length.
func (e *Encoder) EncodeMapHeader(n int) error {
	switch {
	case n <= 15:
		return e.writeTag(0x80 | byte(n))
	case n <= math.MaxUint16:
		buf := make([]byte, 3)
		buf[0] = tagMap16
		binary.BigEndian.PutUint16(buf[1:], uint16(n))
		return e.write(buf)
	default:
		buf := make([]byte, 5)
		buf[0] = tagMap32
		binary.BigEndian.PutUint32(buf[1:], uint32(n))
		return e.write(buf)
	}
}

func (e *Encoder) EncodeMap(entries []MapEntry) error {
	if err := e.EncodeMapHeader(len(entries)); err != nil {
		return err
	}
	for _, kv := range entries {
		if err := e.Encode(kv.Key); err != nil {
			return err
		}
		if err := e.Encode(kv.Value); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) EncodeExt(extType int8, data []byte) error {
	switch len(data) {
	case 1:
		return e.write([]byte{tagFixExt1, byte(extType), data[0]})
	case 2:
		return e.write(append([]byte{tagFixExt2, byte(extType)}, data...))
	case 4:
		return e.write(append([]byte{tagFixExt4, byte(extType)}, data...))
	case 8:
		return e.write(append([]byte{tagFixExt8, byte(extType)}, data...))
	case 16:
		return e.write(append([]byte{tagFixExt16, byte(extType)}, data...))
	}
	var hdr []byte
	switch {
	case len(data) <= math.MaxUint8:
		hdr = []byte{tagExt8, byte(len(data)), byte(extType)}
	case len(data) <= math.MaxUint16:
		hdr = make([]byte, 4)
		hdr[0] = tagExt16
		binary.BigEndian.PutUint16(hdr[1:3], uint16(len(data)))
		hdr[3] = byte(extType)
	default:
		hdr = make([]byte, 6)
		hdr[0] = tagExt32
		binary.BigEndian.PutUint32(hdr[1:5], uint32(len(data)))
		hdr[5] = byte(extType)
	}
	if err := e.write(hdr); err != nil {
		return err
	}
	return e.write(data)
}

// encodeFixedValue implements as_fixed<U>: write a one-byte tag followed by
// exactly Width payload bytes (or a single tag byte, for Width == 0, i.e.
// "void") no matter how small the value actually is.
func (e *Encoder) encodeFixedValue(f Fixed) error {
	i64, isInt := asInt64(f.Value)
	if !isInt {
		return fmt.Errorf("mpp: as_fixed only supports integer values, got %T", f.Value)
	}
	switch f.Width {
	case 0:
		if i64 < 0 || i64 > 0x7f {
			return fmt.Errorf("mpp: as_fixed<void> value %d does not fit in a tag byte", i64)
		}
		return e.writeTag(byte(i64))
	case 1:
		return e.write([]byte{tagUint8, byte(i64)})
	case 2:
		buf := make([]byte, 3)
		buf[0] = tagUint16
		binary.BigEndian.PutUint16(buf[1:], uint16(i64))
		return e.write(buf)
	case 4:
		buf := make([]byte, 5)
		buf[0] = tagUint32
		binary.BigEndian.PutUint32(buf[1:], uint32(i64))
		return e.write(buf)
	case 8:
		buf := make([]byte, 9)
		buf[0] = tagUint64
		binary.BigEndian.PutUint64(buf[1:], uint64(i64))
		return e.write(buf)
	default:
		return fmt.Errorf("mpp: unsupported fixed width %d", f.Width)
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	}
	return 0, false
}
