package iproto

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Error kind sentinels, matching spec section 7's taxonomy. Wrap one of
// these with fmt.Errorf("%w: ...", ...) to preserve errors.Is matching
// while adding detail.
var (
	// ErrConnection is a socket-level failure: connect failure, write
	// failure, or a read returning EOF.
	ErrConnection = errors.New("iproto: connection error")
	// ErrProtocol is a malformed frame length or other unrecoverable
	// decode failure; the connection must be closed.
	ErrProtocol = errors.New("iproto: protocol error")
	// ErrDecode is a recoverable per-frame decode failure. The frame is
	// skipped; later frames still parse.
	ErrDecode = errors.New("iproto: decode error")
	// ErrTimeout is returned by wait/waitAll/waitAny when the deadline
	// passes before the awaited condition holds.
	ErrTimeout = errors.New("iproto: wait timed out")
	// ErrBadUsage marks a caller contract violation, e.g. getResponse
	// called before futureIsReady.
	ErrBadUsage = errors.New("iproto: bad usage")
	// ErrNotConnected names the not-connected condition. No function in
	// this module returns it: a request encoded before connect() is queued
	// in the outbound buffer, and a wait on such a connection ends in
	// ErrTimeout.
	ErrNotConnected = errors.New("iproto: not connected")
)

// ServerError is one entry of a response's error_stack: a server-side
// RequestError, delivered as ordinary response data rather than a
// connection failure.
type ServerError struct {
	Code  uint32
	Msg   string
	File  string
	Line  uint32
	Errno uint32
	Type  string
}

func (e ServerError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: %s (code %d)", e.Type, e.Msg, e.Code)
	}
	return fmt.Sprintf("%s (code %d)", e.Msg, e.Code)
}

// ErrorStack combines a response's server-side errors into a single
// error via go.uber.org/multierr, matching the "core never throws,
// errors surface through wait*/error_stack" propagation policy.
func ErrorStack(errs []ServerError) error {
	if len(errs) == 0 {
		return nil
	}
	combined := error(nil)
	for _, e := range errs {
		combined = multierr.Append(combined, e)
	}
	return combined
}
