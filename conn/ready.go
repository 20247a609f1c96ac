package conn

import "github.com/nimbledb/tnt-go/iproto"

// HasReadyFuture reports whether any future is currently pending
// delivery, for waitAny's "any registered connection has at least one
// ready future" condition (spec section 4.6).
func (impl *ConnectionImpl) HasReadyFuture() bool {
	has := false
	impl.futures.Range(func(_ uint64, _ *iproto.Response) bool {
		has = true
		return false
	})
	return has
}

// FromImpl rebuilds a Connection handle around an impl the connector
// already holds, without touching its refcount -- used by waitAny to
// hand back the connection that became ready.
func FromImpl(impl *ConnectionImpl) Connection {
	return Connection{impl: impl}
}
