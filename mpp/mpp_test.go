package mpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbledb/tnt-go/buffer"
)

func newBuf(t *testing.T) *buffer.Buffer {
	t.Helper()
	return buffer.New(64)
}

func TestEncodeDecodeScalarRoundTrip(t *testing.T) {
	buf := newBuf(t)
	enc := NewEncoder(buf)

	// input is what gets encoded; want is what DecodeAny should produce.
	// MessagePack doesn't distinguish a positive int from a uint on the
	// wire, so every non-negative integer decodes back as uint64
	// regardless of the Go type it was encoded from -- only negative
	// values round-trip as int64.
	type pair struct{ input, want any }
	cases := []pair{
		{nil, nil},
		{true, true},
		{false, false},
		{int64(0), uint64(0)},
		{int64(-1), int64(-1)},
		{int64(-32), int64(-32)},
		{int64(-33), int64(-33)},
		{int64(127), uint64(127)},
		{int64(128), uint64(128)},
		{int64(70000), uint64(70000)},
		{uint64(1 << 40), uint64(1 << 40)},
		{"hello", "hello"},
		{[]byte("bin-payload"), []byte("bin-payload")},
		{float32(1.5), float32(1.5)},
		{float64(3.25), float64(3.25)},
	}
	for _, c := range cases {
		require.NoError(t, enc.Encode(c.input))
	}

	begin := buf.Begin()
	defer begin.Close()
	dec := NewDecoder(buf, begin)
	defer dec.Close()

	for _, c := range cases {
		got, status, err := dec.DecodeAny()
		require.NoError(t, err)
		require.Equal(t, StatusOK, status)
		assert.Equal(t, c.want, got)
	}
}

func TestEncodeDecodeArrayAndMap(t *testing.T) {
	buf := newBuf(t)
	enc := NewEncoder(buf)

	require.NoError(t, enc.Encode(AsArr([]any{int64(1), "two", true})))
	require.NoError(t, enc.Encode(AsMap(
		MapEntry{Key: int64(0), Value: "zero"},
		MapEntry{Key: int64(1), Value: int64(42)},
	)))

	begin := buf.Begin()
	defer begin.Close()
	dec := NewDecoder(buf, begin)
	defer dec.Close()

	arr, status, err := dec.DecodeAny()
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	// Non-negative integers decode back as uint64 (see the round-trip
	// test's comment on positive-integer family ambiguity).
	assert.Equal(t, []any{uint64(1), "two", true}, arr)

	m, status, err := dec.DecodeAny()
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	mm, ok := m.(map[any]any)
	require.True(t, ok)
	assert.Equal(t, "zero", mm[uint64(0)])
	assert.Equal(t, uint64(42), mm[uint64(1)])
}

func TestDecodeNeedMoreLeavesCursorUntouched(t *testing.T) {
	buf := newBuf(t)
	enc := NewEncoder(buf)
	require.NoError(t, enc.Encode("a longer string value than one byte"))

	begin := buf.Begin()
	defer begin.Close()
	end := buf.End()
	defer end.Close()
	total := buffer.Distance(begin, end)

	full := make([]byte, total)
	require.NoError(t, buf.Get(begin, full))

	// Every strict prefix of the encoded value must report NEEDMORE
	// without moving the read cursor.
	for n := 0; n < total; n++ {
		prefix := buffer.New(64)
		_, err := prefix.AddBack(full[:n])
		require.NoError(t, err)

		pbegin := prefix.Begin()
		dec := NewDecoder(prefix, pbegin)
		_, status, err := dec.DecodeAny()
		require.NoError(t, err)
		assert.Equal(t, StatusNeedMore, status)
		assert.Equal(t, 0, buffer.Distance(pbegin, dec.Pos()))
		dec.Close()
		pbegin.Close()
	}
}

func TestTrackRecordsByteRange(t *testing.T) {
	buf := newBuf(t)
	enc := NewEncoder(buf)

	var rng ByteRange
	require.NoError(t, enc.Encode(Track(AsArr([]any{int64(1), int64(2), int64(3)}), &rng)))
	defer rng.Close()

	raw, err := rng.Bytes(buf)
	require.NoError(t, err)

	// Decoding the pinned range independently must reproduce the same
	// array.
	tmp := buffer.New(64)
	_, err = tmp.AddBack(raw)
	require.NoError(t, err)
	tbegin := tmp.Begin()
	defer tbegin.Close()
	dec := NewDecoder(tmp, tbegin)
	defer dec.Close()
	v, status, err := dec.DecodeAny()
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	assert.Equal(t, []any{uint64(1), uint64(2), uint64(3)}, v)
}

func TestAsFixedForcesWidth(t *testing.T) {
	buf := newBuf(t)
	enc := NewEncoder(buf)
	require.NoError(t, enc.Encode(AsFixed(uint64(1), 4)))

	begin := buf.Begin()
	defer begin.Close()
	end := buf.End()
	defer end.Close()
	assert.Equal(t, 5, buffer.Distance(begin, end)) // tag byte + 4-byte width

	dec := NewDecoder(buf, begin)
	defer dec.Close()
	v, status, err := dec.DecodeAny()
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	assert.Equal(t, uint64(1), v)
}

func TestSpecificatorsRoundTrip(t *testing.T) {
	buf := newBuf(t)
	enc := NewEncoder(buf)

	require.NoError(t, enc.Encode(AsStr("forced-string")))
	require.NoError(t, enc.Encode(AsBin([]byte("forced-bin"))))
	require.NoError(t, enc.Encode(AsExt(5, []byte{0xde, 0xad, 0xbe, 0xef})))
	require.NoError(t, enc.Encode(AsRaw([]byte{0xc0}))) // a raw nil tag, copied verbatim
	require.NoError(t, enc.Encode(Reserve(4)))
	require.NoError(t, enc.Encode(int64(7))) // marks where Reserve's 4 bytes end

	begin := buf.Begin()
	defer begin.Close()
	dec := NewDecoder(buf, begin)
	defer dec.Close()

	v, status, err := dec.DecodeAny()
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	assert.Equal(t, "forced-string", v)

	v, status, err = dec.DecodeAny()
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	assert.Equal(t, []byte("forced-bin"), v)

	v, status, err = dec.DecodeAny()
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	assert.Equal(t, ExtValue{Type: 5, Data: []byte{0xde, 0xad, 0xbe, 0xef}}, v)

	// Raw's byte was copied verbatim, so it decodes as the nil it encodes.
	v, status, err = dec.DecodeAny()
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	assert.Nil(t, v)

	// Reserve left 4 unwritten bytes; skip them to reach the trailing marker.
	require.True(t, buf.Has(dec.Pos(), 4))
	buf.MoveForward(dec.Pos(), 4)
	v, status, err = dec.DecodeAny()
	require.NoError(t, err)
	require.Equal(t, StatusOK, status)
	assert.Equal(t, uint64(7), v)
}
