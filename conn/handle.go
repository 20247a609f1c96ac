package conn

import "github.com/nimbledb/tnt-go/iproto"

// Connection is a cheap, copyable handle over a shared ConnectionImpl.
// Many Connection values may alias one impl; the impl's lifetime is the
// longest-lived handle (spec section 9's reference-counted connection
// design, rendered without manual destructors via an explicit Close).
type Connection struct {
	impl *ConnectionImpl
}

// New wraps a freshly constructed impl in a Connection with one
// reference.
func New(cfg Config) Connection {
	return Connection{impl: NewImpl(cfg)}
}

// Impl exposes the shared state for the connector package, which must
// drive I/O without importing back into application-facing conn.
func (c Connection) Impl() *ConnectionImpl { return c.impl }

// Clone returns a new handle aliasing the same impl, incrementing its
// refcount.
func (c Connection) Clone() Connection {
	c.impl.refs.Add(1)
	return Connection{impl: c.impl}
}

// Close decrements the impl's refcount. The impl itself has no
// finalizer -- Go's GC reclaims it once every handle and every future
// dropped, and the connector's CloseConnection call is what actually
// closes the socket.
func (c Connection) Close() { c.impl.refs.Add(-1) }

// Equal reports whether c and other are handles to the same impl.
func (c Connection) Equal(other Connection) bool { return c.impl == other.impl }

// Less orders connections by socket fd, so they can be used as keys in
// ordered containers (spec section 9).
func (c Connection) Less(other Connection) bool { return c.impl.Fd() < other.impl.Fd() }

// Ready reports whether connect() has completed for this connection.
func (c Connection) Ready() bool { return c.impl.Ready() }

// Error returns the connection's sticky error slot.
func (c Connection) Error() error { return c.impl.Error() }

// Reset clears the connection's sticky error.
func (c Connection) Reset() { c.impl.reset() }

// Flush discards every pending future without delivering it.
func (c Connection) Flush() { c.impl.flush() }

// FutureIsReady reports whether sync's response has arrived.
func (c Connection) FutureIsReady(sync uint64) bool { return c.impl.futureIsReady(sync) }

// GetResponse removes and returns sync's response. Callers should check
// FutureIsReady first.
func (c Connection) GetResponse(sync uint64) (*iproto.Response, error) {
	return c.impl.getResponse(sync)
}

func (c Connection) encode(sync uint64, err error) (uint64, error) {
	if err != nil {
		return 0, err
	}
	c.impl.markReadyToSend()
	return sync, nil
}

// Ping requests PING.
func (c Connection) Ping() (uint64, error) { return c.encode(c.impl.enc.Ping()) }

// Select requests SELECT.
func (c Connection) Select(spaceID, indexID uint32, limit, offset, iterator uint32, key []any) (uint64, error) {
	return c.encode(c.impl.enc.Select(spaceID, indexID, limit, offset, iterator, key))
}

// Insert requests INSERT.
func (c Connection) Insert(spaceID uint32, tuple []any) (uint64, error) {
	return c.encode(c.impl.enc.Insert(spaceID, tuple))
}

// Replace requests REPLACE.
func (c Connection) Replace(spaceID uint32, tuple []any) (uint64, error) {
	return c.encode(c.impl.enc.Replace(spaceID, tuple))
}

// Update requests UPDATE.
func (c Connection) Update(spaceID, indexID uint32, key, ops []any) (uint64, error) {
	return c.encode(c.impl.enc.Update(spaceID, indexID, key, ops))
}

// Delete requests DELETE.
func (c Connection) Delete(spaceID, indexID uint32, key []any) (uint64, error) {
	return c.encode(c.impl.enc.Delete(spaceID, indexID, key))
}

// Upsert requests UPSERT.
func (c Connection) Upsert(spaceID, indexBase uint32, tuple, ops []any) (uint64, error) {
	return c.encode(c.impl.enc.Upsert(spaceID, indexBase, tuple, ops))
}

// Call requests CALL.
func (c Connection) Call(functionName string, args []any) (uint64, error) {
	return c.encode(c.impl.enc.Call(functionName, args))
}

// Space returns ergonomic sugar bound to a space id, per spec 4.5.
func (c Connection) Space(spaceID uint32) Space {
	return Space{conn: c, spaceID: spaceID}
}
