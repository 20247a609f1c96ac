package conn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbledb/tnt-go/iproto"
)

func TestGetResponseBeforeReadyIsBadUsage(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	_, err := c.GetResponse(1)
	assert.ErrorIs(t, err, iproto.ErrBadUsage)
}

func TestDecodeReadyDeliversFutureBySync(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	// A response frame has the same {SYNC, CODE} header shape a request
	// does, so a RequestEncoder aimed at the inbound buffer stands in for
	// "the server wrote a frame" without a real socket.
	fakeServer := iproto.NewRequestEncoder(c.Impl().InBuf())
	sync, err := fakeServer.Ping()
	require.NoError(t, err)

	assert.False(t, c.FutureIsReady(sync))
	c.Impl().DecodeReady()
	require.True(t, c.FutureIsReady(sync))

	resp, err := c.GetResponse(sync)
	require.NoError(t, err)
	assert.Equal(t, sync, resp.Sync)

	// A future is consumed by GetResponse, same sync fails a second time.
	_, err = c.GetResponse(sync)
	assert.ErrorIs(t, err, iproto.ErrBadUsage)
}

func TestFlushDiscardsPendingFutures(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	fakeServer := iproto.NewRequestEncoder(c.Impl().InBuf())
	sync, err := fakeServer.Ping()
	require.NoError(t, err)
	c.Impl().DecodeReady()
	require.True(t, c.FutureIsReady(sync))

	c.Flush()
	assert.False(t, c.FutureIsReady(sync))
}

func TestCloneSharesImplAndRefcount(t *testing.T) {
	c := New(Config{})
	clone := c.Clone()
	defer c.Close()
	defer clone.Close()

	assert.True(t, c.Equal(clone))
}

func TestErrorIsStickyUntilReset(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	assert.NoError(t, c.Error())
	sentinel := errors.New("boom")
	c.Impl().SetError(sentinel)
	assert.ErrorIs(t, c.Error(), sentinel)

	// Setting again does not overwrite the first sticky error.
	c.Impl().SetError(errors.New("second"))
	assert.ErrorIs(t, c.Error(), sentinel)

	c.Reset()
	assert.NoError(t, c.Error())
}

func TestHasReadyFuture(t *testing.T) {
	c := New(Config{})
	defer c.Close()

	assert.False(t, c.Impl().HasReadyFuture())

	fakeServer := iproto.NewRequestEncoder(c.Impl().InBuf())
	_, err := fakeServer.Ping()
	require.NoError(t, err)
	c.Impl().DecodeReady()

	assert.True(t, c.Impl().HasReadyFuture())
}
