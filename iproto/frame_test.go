package iproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbledb/tnt-go/buffer"
)

func TestRequestEncoderPingRoundTrip(t *testing.T) {
	buf := buffer.New(256)
	enc := NewRequestEncoder(buf)

	sync, err := enc.Ping()
	require.NoError(t, err)

	dec := NewResponseDecoderForRequests(buf)
	defer dec.Close()

	resp, err := dec.DecodeFrame()
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, sync, resp.Sync)
	assert.EqualValues(t, ReqPing, resp.Code)
}

func TestRequestEncoderSelectRoundTrip(t *testing.T) {
	buf := buffer.New(256)
	enc := NewRequestEncoder(buf)

	_, err := enc.Select(512, 0, 10, 0, IterEQ, []any{uint64(1)})
	require.NoError(t, err)

	dec := NewResponseDecoderForRequests(buf)
	defer dec.Close()

	resp, err := dec.DecodeFrame()
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.EqualValues(t, ReqSelect, resp.Code)
}

func TestDecodeFrameNeedsMoreLeavesCursorUntouched(t *testing.T) {
	buf := buffer.New(256)
	enc := NewRequestEncoder(buf)
	_, err := enc.Ping()
	require.NoError(t, err)

	begin := buf.Begin()
	end := buf.End()
	full := buffer.Distance(begin, end)
	begin.Close()
	end.Close()

	// Truncate the buffer to just the 5-byte length prefix -- DecodeFrame
	// must report NEEDMORE (nil, nil), not an error.
	buf.DropBack(full - 5)

	dec := NewResponseDecoderForRequests(buf)
	defer dec.Close()

	resp, err := dec.DecodeFrame()
	assert.NoError(t, err)
	assert.Nil(t, resp)

	begin = buf.Begin()
	defer begin.Close()
	assert.True(t, begin.Equal(dec.pos), "NEEDMORE must leave the read cursor at the frame start")
}

// NewResponseDecoderForRequests decodes frames written by a
// RequestEncoder using the response decoder's header/body switch --
// PING/SELECT/etc. requests and responses share the same {SYNC, CODE}
// header shape, so the response decoder round-trips them just fine for
// test purposes.
func NewResponseDecoderForRequests(buf *buffer.Buffer) *ResponseDecoder {
	return NewResponseDecoder(buf, 0)
}
