// Package conn implements the reference-counted Connection handle
// described in spec section 4.5: a thin, comparable, copyable handle
// over a ConnectionImpl that owns the two buffers, the codec, the
// futures map, and the connection's error slot.
//
// Grounded on _examples/original_source/src/Client/Connection.hpp for
// the impl/handle split and the futures-by-sync design, and on
// _examples/Eugene-Usachev-go-connector/internal/pipe/pipe.go for the
// request-fan-in-response-fan-out shape (rendered here as a lock-free
// map instead of a single result channel, since responses are matched
// by sync rather than delivered in request order).
package conn

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nimbledb/tnt-go/buffer"
	"github.com/nimbledb/tnt-go/iproto"
)

// SendNotifier is implemented by whatever reactor owns a connection's
// I/O, so request-encoding methods can register the connection for the
// next write pass without ConnectionImpl importing the reactor package
// (spec section 4.6's readyToSend, called from the encoder side).
type SendNotifier interface {
	NotifyReadyToSend(c *ConnectionImpl)
}

// ConnectionImpl is the shared state behind every Connection handle
// aliasing it. Never safe for concurrent use: the whole client is
// single-threaded and cooperative (spec section 5).
type ConnectionImpl struct {
	refs atomic.Int32

	fd       int
	notifier SendNotifier

	outBuf *buffer.Buffer
	inBuf  *buffer.Buffer
	enc    *iproto.RequestEncoder
	dec    *iproto.ResponseDecoder

	futures *xsync.MapOf[uint64, *iproto.Response]

	greeting iproto.Greeting
	ready    bool
	err      error
}

// Config controls the buffers and GC cadence backing a connection.
type Config struct {
	BlockSize   int
	GCStepCount int
}

func (c Config) withDefaults() Config {
	if c.BlockSize <= 0 {
		c.BlockSize = 64 * 1024
	}
	if c.GCStepCount <= 0 {
		c.GCStepCount = iproto.DefaultGCStepCount
	}
	return c
}

// NewImpl constructs a not-yet-connected ConnectionImpl. The connector
// fills in fd, greeting, and notifier once connect() succeeds.
func NewImpl(cfg Config) *ConnectionImpl {
	cfg = cfg.withDefaults()
	outBuf := buffer.New(cfg.BlockSize)
	inBuf := buffer.New(cfg.BlockSize)
	impl := &ConnectionImpl{
		fd:      -1,
		outBuf:  outBuf,
		inBuf:   inBuf,
		enc:     iproto.NewRequestEncoder(outBuf),
		dec:     iproto.NewResponseDecoder(inBuf, cfg.GCStepCount),
		futures: xsync.NewMapOf[uint64, *iproto.Response](),
	}
	impl.refs.Store(1)
	return impl
}

// Fd returns the underlying socket descriptor, or -1 before connect().
// Connection handles order by fd, per spec section 9.
func (impl *ConnectionImpl) Fd() int { return impl.fd }

// OutBuf and InBuf expose the raw buffers to the connector's reactor
// loop; application code should use the request methods and
// getResponse instead.
func (impl *ConnectionImpl) OutBuf() *buffer.Buffer { return impl.outBuf }
func (impl *ConnectionImpl) InBuf() *buffer.Buffer  { return impl.inBuf }

// SetConnected fills in the fields the connector's connect() discovers.
func (impl *ConnectionImpl) SetConnected(fd int, greeting iproto.Greeting, notifier SendNotifier) {
	impl.fd = fd
	impl.greeting = greeting
	impl.notifier = notifier
	impl.ready = true
}

// Greeting returns the server greeting parsed during connect().
func (impl *ConnectionImpl) Greeting() iproto.Greeting { return impl.greeting }

// Ready reports whether connect() has completed successfully.
func (impl *ConnectionImpl) Ready() bool { return impl.ready }

// SetError records a connection-level error (spec section 7's
// ConnectionError/ProtocolError kinds). Once set it is sticky until
// Reset.
func (impl *ConnectionImpl) SetError(err error) {
	if impl.err == nil {
		impl.err = err
	}
}

// Error returns the connection's sticky error, if any.
func (impl *ConnectionImpl) Error() error { return impl.err }

// DecodeReady drains as many complete frames as are currently buffered,
// delivering each into the futures map by sync. Called by the reactor
// after every read.
func (impl *ConnectionImpl) DecodeReady() {
	for {
		resp, err := impl.dec.DecodeFrame()
		if err != nil {
			impl.SetError(err)
			if errors.Is(err, iproto.ErrProtocol) {
				return
			}
			continue
		}
		if resp == nil {
			return
		}
		impl.futures.Store(resp.Sync, resp)
	}
}

// futureIsReady reports whether sync's response has arrived.
func (impl *ConnectionImpl) futureIsReady(sync uint64) bool {
	_, ok := impl.futures.Load(sync)
	return ok
}

// getResponse removes and returns sync's response. Callers are expected
// to have checked futureIsReady first (spec's BadUsage contract); calling
// this without a ready future returns ErrBadUsage rather than aborting,
// since a production Go library shouldn't crash the process to enforce
// a debug-mode invariant.
func (impl *ConnectionImpl) getResponse(sync uint64) (*iproto.Response, error) {
	resp, ok := impl.futures.LoadAndDelete(sync)
	if !ok {
		return nil, fmt.Errorf("%w: getResponse(%d) called before futureIsReady", iproto.ErrBadUsage, sync)
	}
	return resp, nil
}

// flush discards every pending future without delivering it.
func (impl *ConnectionImpl) flush() {
	impl.futures.Range(func(sync uint64, resp *iproto.Response) bool {
		resp.Close()
		impl.futures.Delete(sync)
		return true
	})
}

// reset clears the connection's sticky error.
func (impl *ConnectionImpl) reset() { impl.err = nil }

func (impl *ConnectionImpl) markReadyToSend() {
	if impl.notifier != nil {
		impl.notifier.NotifyReadyToSend(impl)
	}
}
