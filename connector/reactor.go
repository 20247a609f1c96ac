//go:build linux

// Package connector implements the non-blocking, single-threaded reactor
// described in spec section 4.6: one goroutine, one epoll instance, no
// background threads and no locks, driving many connections' sockets
// with readv/writev-equivalent syscalls straight into and out of their
// segmented buffers.
//
// Grounded on _examples/original_source/src/Client/Connector.hpp for the
// connect/wait/waitAll/waitAny/close shape, and rendered with raw
// golang.org/x/sys/unix syscalls rather than net.Conn and goroutines
// because spec section 5 explicitly rules out a goroutine-per-connection
// model for this component -- a deliberate departure from
// _examples/Eugene-Usachev-go-connector/internal/pipe/pipe.go's
// goroutine-per-pipe idiom, which the rest of this module otherwise
// follows closely.
package connector

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/nimbledb/tnt-go/conn"
	"github.com/nimbledb/tnt-go/internal/logging"
	"github.com/nimbledb/tnt-go/iproto"
)

const (
	maxEpollEvents = 256
	readChunk      = 64 * 1024
	maxIOVs        = 16
)

// DefaultTimeout bounds connect() and wait*() calls that don't specify
// their own deadline.
const DefaultTimeout = 5 * time.Second

// Reactor owns one epoll instance and every socket registered against
// it. Not safe for concurrent use -- the whole point of spec section 5
// is that one goroutine drives it.
type Reactor struct {
	epfd  int
	conns map[int]*conn.ConnectionImpl

	// writeArmed tracks which fds currently have EPOLLOUT armed, so the
	// reactor only wakes for writability while a connection actually has
	// data queued (spec section 4.6's "has data to send" gate) instead
	// of spinning on the level-triggered event a connected socket
	// reports almost continuously.
	writeArmed map[int]bool

	breaker *gobreaker.CircuitBreaker[struct{}]
	log     *zap.Logger

	DefaultTimeout time.Duration
}

// New creates a Reactor backed by a fresh epoll instance, logging
// through log (a nil logger disables logging, matching zap.NewNop's
// zero-cost no-op behavior).
func New(log *zap.Logger) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("%w: epoll_create1: %v", iproto.ErrConnection, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Reactor{
		epfd:           epfd,
		conns:          make(map[int]*conn.ConnectionImpl),
		writeArmed:     make(map[int]bool),
		log:            log,
		DefaultTimeout: DefaultTimeout,
	}
	r.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "tnt-connect",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return r, nil
}

// Close shuts down the epoll instance. Connections must be closed
// individually first.
func (r *Reactor) Close() error {
	return unix.Close(r.epfd)
}

// Connect dials host:port, exchanges the greeting, and registers the
// connection for I/O. The dial itself runs behind a circuit breaker
// (fail fast after a run of failures, not auto-reconnect) per spec
// section 4.6's connect() being the one call worth protecting from a
// dead or overloaded server.
func (r *Reactor) Connect(c conn.Connection, host, port string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = r.DefaultTimeout
	}
	_, err := r.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, r.connectOnce(c, host, port, timeout)
	})
	if err != nil {
		connectFailuresTotal.Inc()
		wrapped := fmt.Errorf("%w: %v", iproto.ErrConnection, err)
		c.Impl().SetError(wrapped)
		r.log.Warn("connect failed", zap.String("addr", net.JoinHostPort(host, port)), zap.Error(err))
		return wrapped
	}
	connectsTotal.Inc()
	r.log.Info("connected", logging.Fd(c.Impl().Fd()), zap.String("addr", net.JoinHostPort(host, port)))
	return nil
}

func (r *Reactor) connectOnce(c conn.Connection, host, port string, timeout time.Duration) error {
	sa, err := resolveSockaddr(host, port)
	if err != nil {
		return err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return err
	}

	deadline := time.Now().Add(timeout)
	// EPOLLOUT is armed from the start here because it is how a
	// non-blocking connect() completion is detected; r.setWriteInterest
	// below drops it back to just EPOLLIN once the handshake settles and
	// before the fd is handed to the general step loop, so an idle,
	// already-writable socket doesn't spin the reactor (spec section
	// 4.6's "never spins" requirement).
	if err := r.register(fd, unix.EPOLLIN|unix.EPOLLOUT); err != nil {
		unix.Close(fd)
		return err
	}
	r.writeArmed[fd] = true

	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		r.abortConnect(fd)
		return err
	}
	if err == unix.EINPROGRESS {
		if err := r.waitEvent(fd, unix.EPOLLOUT, deadline); err != nil {
			r.abortConnect(fd)
			return err
		}
		errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			r.abortConnect(fd)
			return err
		}
		if errno != 0 {
			r.abortConnect(fd)
			return unix.Errno(errno)
		}
	}

	greetingBuf := make([]byte, iproto.GreetingSize)
	if err := r.readFull(fd, greetingBuf, deadline); err != nil {
		r.abortConnect(fd)
		return err
	}
	greeting, err := iproto.ParseGreeting(greetingBuf)
	if err != nil {
		r.abortConnect(fd)
		return err
	}

	impl := c.Impl()
	impl.SetConnected(fd, greeting, r)
	r.conns[fd] = impl
	if err := r.setWriteInterest(fd, !impl.OutBuf().Empty()); err != nil {
		r.abortConnect(fd)
		delete(r.conns, fd)
		return err
	}
	return nil
}

// abortConnect tears down a socket that failed partway through
// connectOnce, undoing the registration and write-interest bookkeeping
// register()/r.writeArmed set up.
func (r *Reactor) abortConnect(fd int) {
	r.deregister(fd)
	unix.Close(fd)
	delete(r.writeArmed, fd)
}

func resolveSockaddr(host, port string) (unix.Sockaddr, error) {
	addr, err := net.ResolveTCPAddr("tcp4", net.JoinHostPort(host, port))
	if err != nil {
		return nil, err
	}
	ip4 := addr.IP.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%w: %s does not resolve to IPv4", iproto.ErrConnection, host)
	}
	var ip [4]byte
	copy(ip[:], ip4)
	return &unix.SockaddrInet4{Port: addr.Port, Addr: ip}, nil
}

// CloseConnection closes the socket and detaches the connection from the
// reactor. Futures already stored in the connection's map are left
// alone -- a caller can still drain what already arrived.
func (r *Reactor) CloseConnection(c conn.Connection) {
	r.closeFd(c.Impl().Fd())
}

func (r *Reactor) closeFd(fd int) {
	if fd < 0 {
		return
	}
	r.deregister(fd)
	unix.Close(fd)
	delete(r.conns, fd)
	delete(r.writeArmed, fd)
	r.log.Debug("connection closed", logging.Fd(fd))
}

// setWriteInterest arms or disarms EPOLLOUT on fd via EPOLL_CTL_MOD,
// idempotently -- a no-op if fd is already in the requested state. This
// is the "has data to send" gate spec section 4.6 calls for
// (_examples/original_source/src/Client/Connection.hpp's hasDataToSend:
// "it's enough to check buffer's emptiness"): without it, a connected
// TCP socket reports EPOLLOUT on almost every level-triggered poll,
// spinning the reactor between events instead of sleeping in
// epoll_wait.
func (r *Reactor) setWriteInterest(fd int, want bool) error {
	if r.writeArmed[fd] == want {
		return nil
	}
	events := uint32(unix.EPOLLIN)
	if want {
		events |= unix.EPOLLOUT
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: events, Fd: int32(fd)}); err != nil {
		return err
	}
	r.writeArmed[fd] = want
	return nil
}

// NotifyReadyToSend implements conn.SendNotifier. It tries an immediate
// non-blocking write; handleWritable re-arms EPOLLOUT itself if the
// buffer isn't fully drained by this attempt, so the next reactor step
// picks up the rest.
func (r *Reactor) NotifyReadyToSend(impl *conn.ConnectionImpl) {
	if impl.Ready() {
		r.handleWritable(impl)
	}
}

// Wait blocks until sync's response has arrived on c, or timeout elapses.
// A failed connection (peer hangup, read error, protocol error) surfaces
// its error slot here rather than making the caller wait out the full
// deadline for a response that will never arrive.
func (r *Reactor) Wait(c conn.Connection, sync uint64, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = r.DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	for !c.FutureIsReady(sync) {
		if err := c.Impl().Error(); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			waitTimeoutsTotal.Inc()
			return iproto.ErrTimeout
		}
		if err := r.step(remaining); err != nil {
			return err
		}
	}
	return nil
}

// WaitAll blocks until every sync in syncs has a response on c, or
// timeout elapses. See Wait for the connection-error-surfacing behavior.
func (r *Reactor) WaitAll(c conn.Connection, syncs []uint64, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = r.DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		allReady := true
		for _, s := range syncs {
			if !c.FutureIsReady(s) {
				allReady = false
				break
			}
		}
		if allReady {
			return nil
		}
		if err := c.Impl().Error(); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			waitTimeoutsTotal.Inc()
			return iproto.ErrTimeout
		}
		if err := r.step(remaining); err != nil {
			return err
		}
	}
}

// WaitAny blocks until some registered connection has at least one
// ready future or has failed, or timeout elapses. A failed connection is
// returned alongside its error, the same way a ready one is returned
// alongside a nil error. Only connections still registered with the
// reactor are examined: one the reactor has already closed (peer hangup,
// EOF, protocol error) is no longer registered, so neither its error nor
// its stored futures end the wait.
func (r *Reactor) WaitAny(timeout time.Duration) (conn.Connection, error) {
	if timeout <= 0 {
		timeout = r.DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		for _, impl := range r.conns {
			if impl.HasReadyFuture() {
				return conn.FromImpl(impl), nil
			}
		}
		for _, impl := range r.conns {
			if err := impl.Error(); err != nil {
				return conn.FromImpl(impl), err
			}
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			waitTimeoutsTotal.Inc()
			return conn.Connection{}, iproto.ErrTimeout
		}
		if err := r.step(remaining); err != nil {
			return conn.Connection{}, err
		}
	}
}

// step runs one epoll_wait pass and services every ready fd.
func (r *Reactor) step(timeout time.Duration) error {
	events, err := r.poll(timeout)
	if err != nil {
		return err
	}
	for _, ev := range events {
		impl, ok := r.conns[int(ev.Fd)]
		if !ok {
			continue
		}
		if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			impl.SetError(fmt.Errorf("%w: fd %d closed by peer", iproto.ErrConnection, ev.Fd))
			r.closeFd(int(ev.Fd))
			continue
		}
		if ev.Events&unix.EPOLLIN != 0 {
			r.handleReadable(impl)
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			r.handleWritable(impl)
		}
	}
	return nil
}

func (r *Reactor) handleReadable(impl *conn.ConnectionImpl) {
	it, err := impl.InBuf().AppendBack(readChunk)
	if err != nil {
		impl.SetError(fmt.Errorf("%w: %v", iproto.ErrConnection, err))
		return
	}
	iov := impl.InBuf().GetIOV(it, maxIOVs)
	it.Close()

	n, err := unix.Readv(impl.Fd(), iov)
	if err != nil {
		impl.InBuf().DropBack(readChunk)
		if err == unix.EAGAIN {
			return
		}
		impl.SetError(fmt.Errorf("%w: %v", iproto.ErrConnection, err))
		r.log.Warn("read failed", logging.Fd(impl.Fd()), zap.Error(err))
		return
	}
	if n == 0 {
		impl.InBuf().DropBack(readChunk)
		impl.SetError(fmt.Errorf("%w: peer closed connection", iproto.ErrConnection))
		r.closeFd(impl.Fd())
		return
	}
	if n < readChunk {
		impl.InBuf().DropBack(readChunk - n)
	}
	bytesReadTotal.Add(n)

	impl.DecodeReady()
	framesDecodedTotal.Inc()
	// A corrupted frame parks the decode cursor on the bad bytes -- spec
	// section 4.2's "aborts the connection" law means the fd must close
	// here, or every later EPOLLIN just re-feeds the same stuck decoder
	// and re-fails forever.
	if errors.Is(impl.Error(), iproto.ErrProtocol) {
		r.closeFd(impl.Fd())
	}
}

func (r *Reactor) handleWritable(impl *conn.ConnectionImpl) {
	out := impl.OutBuf()
	if out.Empty() {
		r.setWriteInterest(impl.Fd(), false)
		return
	}
	begin := out.Begin()
	iov := out.GetIOV(begin, maxIOVs)
	begin.Close()

	n, err := unix.Writev(impl.Fd(), iov)
	if err != nil {
		if err == unix.EAGAIN {
			r.setWriteInterest(impl.Fd(), true)
			return
		}
		impl.SetError(fmt.Errorf("%w: %v", iproto.ErrConnection, err))
		return
	}
	if n > 0 {
		out.DropFront(n)
		bytesWrittenTotal.Add(n)
	}
	r.setWriteInterest(impl.Fd(), !out.Empty())
}

// readFull blocks (via epoll) until buf is completely filled or the
// deadline passes, for the one-shot greeting read during connect().
func (r *Reactor) readFull(fd int, buf []byte, deadline time.Time) error {
	read := 0
	for read < len(buf) {
		n, err := unix.Read(fd, buf[read:])
		if err != nil {
			if err == unix.EAGAIN {
				if err := r.waitEvent(fd, unix.EPOLLIN, deadline); err != nil {
					return err
				}
				continue
			}
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: peer closed during greeting", iproto.ErrConnection)
		}
		read += n
	}
	return nil
}

// waitEvent blocks until fd reports one of the given epoll events, or
// deadline passes. Used only during connect(), before the fd is handed
// to the general reactor step loop.
func (r *Reactor) waitEvent(fd int, want uint32, deadline time.Time) error {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return iproto.ErrTimeout
		}
		events, err := r.poll(remaining)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if int(ev.Fd) == fd && ev.Events&want != 0 {
				return nil
			}
			if int(ev.Fd) == fd && ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				return fmt.Errorf("%w: fd %d failed during connect", iproto.ErrConnection, fd)
			}
		}
	}
}

func (r *Reactor) register(fd int, events uint32) error {
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: events, Fd: int32(fd)})
}

func (r *Reactor) deregister(fd int) error {
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (r *Reactor) poll(timeout time.Duration) ([]unix.EpollEvent, error) {
	events := make([]unix.EpollEvent, maxEpollEvents)
	ms := int(timeout / time.Millisecond)
	if ms <= 0 {
		ms = 1
	}
	start := time.Now()
	n, err := unix.EpollWait(r.epfd, events, ms)
	epollWaitDuration.UpdateDuration(start)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	return events[:n], nil
}
