package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbledb/tnt-go/iproto"
)

func TestSpaceIndexSugarMatchesDirectCalls(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	sp := c.Space(512)
	idx := sp.Index(0)

	_, err := sp.Insert([]any{uint64(1), "a"})
	require.NoError(t, err)
	_, err = sp.Replace([]any{uint64(2), "b"})
	require.NoError(t, err)
	_, err = idx.Select([]any{uint64(1)}, 10, 0, iproto.IterEQ)
	require.NoError(t, err)
	_, err = idx.Update([]any{uint64(1)}, []any{[]any{"=", 1, "c"}})
	require.NoError(t, err)
	_, err = idx.Delete([]any{uint64(1)})
	require.NoError(t, err)
	_, err = idx.Upsert([]any{uint64(3), "d"}, nil, 0)
	require.NoError(t, err)

	// Every request encoded a frame onto the same outbound buffer the
	// direct Connection methods would have used.
	dec := iproto.NewResponseDecoder(c.Impl().OutBuf(), 0)
	defer dec.Close()

	count := 0
	for {
		resp, err := dec.DecodeFrame()
		require.NoError(t, err)
		if resp == nil {
			break
		}
		count++
	}
	assert.Equal(t, 6, count)
}
