package mpp

// Specificators annotate a value at the encode call site to say how it
// must be packed, mirroring _examples/original_source/src/mpp/Types.hpp.
// Unlike the C++ template holders, these are ordinary Go structs; Go's
// lack of user-defined implicit conversions means callers wrap values
// explicitly (mpp.AsStr(x) rather than an implicit as_str(x) constructor
// picked by overload resolution), which is the idiomatic Go rendering of
// a "lightweight wrapper... carrying the intent" per spec section 9.

// Str wraps a value to be packed as a MessagePack string.
type Str struct{ Value string }

func AsStr(v string) Str { return Str{v} }

// Bin wraps a value to be packed as MessagePack binary.
type Bin struct{ Value []byte }

func AsBin(v []byte) Bin { return Bin{v} }

// Arr wraps a slice of values to be packed as a MessagePack array. Each
// element is encoded with the encoder's normal type dispatch.
type Arr struct{ Values []any }

func AsArr(v []any) Arr { return Arr{v} }

// MapEntry is one key/value pair of a Map specificator, preserving
// caller-given order (msgpack maps are not required to sort keys, and the
// wire protocol's request/response headers do not).
type MapEntry struct {
	Key   any
	Value any
}

// Map wraps a set of entries to be packed as a MessagePack map.
type Map struct{ Entries []MapEntry }

func AsMap(entries ...MapEntry) Map { return Map{entries} }

// Ext wraps a value to be packed as a MessagePack extension of the given
// type.
type Ext struct {
	Type  int8
	Value []byte
}

func AsExt(extType int8, v []byte) Ext { return Ext{extType, v} }

// Raw marks a byte slice as an already-encoded MessagePack object to be
// copied verbatim into the stream instead of re-encoded.
type Raw struct{ Value []byte }

func AsRaw(v []byte) Raw { return Raw{v} }

// Reserved marks N bytes to be skipped (left unwritten) in the stream, to
// be back-filled later via the buffer's Set. A Reserved value with N == 0
// reserves nothing.
type Reserved struct{ N int }

func Reserve(n int) Reserved { return Reserved{n} }

// Fixed forces an integer value to be encoded with a payload of exactly
// Width bytes after its tag, regardless of the value's magnitude, matching
// as_fixed<U>. Width 0 means "pack into the tag byte alone, with no payload
// at all", which only fits integers 0..127; non-integer values are rejected.
// Fixed is primarily useful to force a wider-than-necessary integer encoding
// (e.g. always emitting a uint32 in a header slot other than IPROTO's own
// length prefix, for structs that must stay a fixed byte width).
type Fixed struct {
	Value any
	Width int // encoded width in bytes; 0 means "fit in the tag byte alone"
}

func AsFixed(v any, width int) Fixed { return Fixed{v, width} }
