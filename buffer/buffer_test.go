package buffer

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyBuffer(t *testing.T) {
	b := New(64)
	assert.True(t, b.Empty())
	begin := b.Begin()
	end := b.End()
	assert.True(t, begin.Equal(end))
	begin.Close()
	end.Close()
	assert.False(t, b.HasLiveIterators())
}

func TestAddBackAndGet(t *testing.T) {
	b := New(16) // small blocks to force multi-block spans
	data := []byte("the quick brown fox jumps over the lazy dog")
	n, err := b.AddBack(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	begin := b.Begin()
	defer begin.Close()
	out := make([]byte, len(data))
	require.NoError(t, b.Get(begin, out))
	assert.Equal(t, data, out)
}

func TestDropFrontDropBack(t *testing.T) {
	b := New(8)
	_, err := b.AddBack([]byte("0123456789abcdef"))
	require.NoError(t, err)

	b.DropFront(4)
	begin := b.Begin()
	out := make([]byte, 4)
	require.NoError(t, b.Get(begin, out))
	assert.Equal(t, []byte("4567"), out)
	begin.Close()

	b.DropBack(4)
	begin = b.Begin()
	end := b.End()
	assert.Equal(t, 8, Distance(begin, end))
	begin.Close()
	end.Close()
}

func TestInsertReleaseRoundTrip(t *testing.T) {
	b := New(8)
	_, err := b.AddBack([]byte("headTAILbytes"))
	require.NoError(t, err)

	mid := b.At(4)
	defer mid.Close()

	before := b.Checksum(b.Begin())

	require.NoError(t, b.Insert(mid, 5))
	require.NoError(t, b.Release(mid, 5))

	after := b.Checksum(b.Begin())
	assert.Equal(t, before, after, "insert followed by release must be a no-op on bytes")
}

func TestInsertShiftsLaterIteratorsNotTheAnchor(t *testing.T) {
	b := New(8)
	_, err := b.AddBack([]byte("0123456789"))
	require.NoError(t, err)

	anchor := b.At(3) // points at '3'
	defer anchor.Close()
	after := b.At(5) // points at '5', strictly after anchor
	defer after.Close()

	require.NoError(t, b.Insert(anchor, 2))

	// anchor stays at the start of the new gap...
	got := make([]byte, 1)
	// distance from Begin() to anchor should still be 3
	begin := b.Begin()
	defer begin.Close()
	assert.Equal(t, 3, Distance(begin, anchor))

	// ...while `after` moved forward by 2.
	assert.Equal(t, 5+2, Distance(begin, after))
	_ = got
}

func TestGetIOVCoversExactRange(t *testing.T) {
	b := New(4) // tiny blocks so a 10-byte payload spans several
	data := []byte("0123456789")
	_, err := b.AddBack(data)
	require.NoError(t, err)

	begin := b.Begin()
	defer begin.Close()
	vecs := b.GetIOV(begin, 32)
	total := 0
	for _, v := range vecs {
		total += len(v)
	}
	assert.Equal(t, len(data), total)

	var joined bytes.Buffer
	for _, v := range vecs {
		joined.Write(v)
	}
	assert.Equal(t, data, joined.Bytes())
}

func TestHas(t *testing.T) {
	b := New(4)
	_, err := b.AddBack([]byte("abcdefgh"))
	require.NoError(t, err)
	begin := b.Begin()
	defer begin.Close()
	assert.True(t, b.Has(begin, 8))
	assert.False(t, b.Has(begin, 9))
}

func TestSetGetRandomBytesAcrossBlocks(t *testing.T) {
	b := New(4)
	total := 100
	_, err := b.AppendBack(total)
	require.NoError(t, err)

	begin := b.Begin()
	defer begin.Close()

	rnd := rand.New(rand.NewSource(1))
	payload := make([]byte, total)
	rnd.Read(payload)

	require.NoError(t, b.Set(begin, payload))
	out := make([]byte, total)
	require.NoError(t, b.Get(begin, out))
	assert.Equal(t, payload, out)
}

func TestIteratorOrderingInvariant(t *testing.T) {
	b := New(4)
	_, err := b.AddBack([]byte("0123456789abcdef"))
	require.NoError(t, err)

	a := b.At(2)
	c := b.At(10)
	defer a.Close()
	defer c.Close()

	assert.True(t, a.Less(c))
	assert.False(t, c.Less(a))
	assert.Equal(t, Distance(a, c) > 0, a.Less(c))
}

func TestTypedRoundTrip(t *testing.T) {
	b := New(8)
	_, err := AddBackT[uint32](b, 0xdeadbeef)
	require.NoError(t, err)
	it := b.Begin()
	defer it.Close()
	v, err := GetT[uint32](b, it)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v)
}
