package buffer

import "encoding/binary"

// Fixed is the set of fixed-width integer types the typed buffer helpers
// accept, mirroring the "standard layout" constraint the C++ original
// places on Buffer::addBack<T>/set<T>/get<T>.
type Fixed interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64
}

// sizeOf returns the encoded width, in bytes, of a Fixed value.
func sizeOf[T Fixed](v T) int {
	switch any(v).(type) {
	case uint8, int8:
		return 1
	case uint16, int16:
		return 2
	case uint32, int32:
		return 4
	default:
		return 8
	}
}

func encodeFixed[T Fixed](v T, out []byte) {
	switch x := any(v).(type) {
	case uint8:
		out[0] = x
	case int8:
		out[0] = uint8(x)
	case uint16:
		binary.BigEndian.PutUint16(out, x)
	case int16:
		binary.BigEndian.PutUint16(out, uint16(x))
	case uint32:
		binary.BigEndian.PutUint32(out, x)
	case int32:
		binary.BigEndian.PutUint32(out, uint32(x))
	case uint64:
		binary.BigEndian.PutUint64(out, x)
	case int64:
		binary.BigEndian.PutUint64(out, uint64(x))
	}
}

func decodeFixed[T Fixed](in []byte) T {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return T(in[0])
	case int8:
		return T(int8(in[0]))
	case uint16:
		return T(binary.BigEndian.Uint16(in))
	case int16:
		return T(int16(binary.BigEndian.Uint16(in)))
	case uint32:
		return T(binary.BigEndian.Uint32(in))
	case int32:
		return T(int32(binary.BigEndian.Uint32(in)))
	case uint64:
		return T(binary.BigEndian.Uint64(in))
	default:
		return T(int64(binary.BigEndian.Uint64(in)))
	}
}

// AddBackT appends a fixed-width value to the buffer's tail.
func AddBackT[T Fixed](b *Buffer, v T) (int, error) {
	n := sizeOf(v)
	buf := make([]byte, n)
	encodeFixed(v, buf)
	return b.AddBack(buf)
}

// SetT overwrites a fixed-width value at it.
func SetT[T Fixed](b *Buffer, it *Iterator, v T) error {
	n := sizeOf(v)
	buf := make([]byte, n)
	encodeFixed(v, buf)
	return b.Set(it, buf)
}

// GetT reads a fixed-width value starting at it.
func GetT[T Fixed](b *Buffer, it *Iterator) (T, error) {
	var zero T
	n := sizeOf(zero)
	buf := make([]byte, n)
	if err := b.Get(it, buf); err != nil {
		return zero, err
	}
	return decodeFixed[T](buf), nil
}
