// Package testsrv implements a minimal in-process IPROTO server: just
// enough of the greeting/ping/select/insert/replace/update/delete/
// upsert/call surface to drive iproto/conn/connector against a real
// socket in tests, standing in for the "embedded database" collaborator
// spec section 1 places out of scope.
//
// Grounded on _examples/luma-pharos/transport/tcp.go for the
// listener-per-goroutine/context-cancellation/zap shape; the wire codec
// itself reuses this module's own iproto key constants and mpp encoder/
// decoder rather than reinventing framing.
package testsrv

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/nimbledb/tnt-go/buffer"
	"github.com/nimbledb/tnt-go/iproto"
)

// Server is a bare-bones Tarantool-speaking TCP server backed by an
// in-memory map of spaces.
type Server struct {
	ln     net.Listener
	log    *zap.Logger
	spaces sync.Map // uint32 -> *space

	fnMu sync.RWMutex
	fns  map[string]Function

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Listen starts a Server on addr (host:port, or ":0" for an ephemeral
// port -- see Addr()).
func Listen(addr string, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("testsrv: listen: %w", err)
	}
	return &Server{ln: ln, log: log}, nil
}

// Addr returns the address the server is actually listening on.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Start runs the accept loop until Close closes the listener. Cancelling
// ctx stops connection handlers at their next frame boundary but does not
// by itself stop the accept loop.
func (s *Server) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			c, err := s.ln.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					s.log.Warn("accept failed", zap.Error(err))
					return
				}
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handle(ctx, c)
			}()
		}
	}()
}

// Close stops accepting and closes the listener. Already-accepted
// connections finish their current frame before observing ctx.Done.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	err := s.ln.Close()
	s.wg.Wait()
	return err
}

func (s *Server) spaceFor(id uint32) *space {
	v, _ := s.spaces.LoadOrStore(id, newSpace())
	return v.(*space)
}

func (s *Server) handle(ctx context.Context, c net.Conn) {
	defer c.Close()

	if err := writeGreeting(c); err != nil {
		s.log.Warn("greeting write failed", zap.Error(err))
		return
	}

	inBuf := buffer.New(64 * 1024)
	outBuf := buffer.New(64 * 1024)
	pos := inBuf.Begin()
	defer pos.Close()

	readBuf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		req, err := decodeRequest(inBuf, pos)
		if err != nil {
			s.log.Warn("decode failed", zap.Error(err))
			return
		}
		if req == nil {
			n, err := c.Read(readBuf)
			if err != nil {
				return
			}
			if _, err := inBuf.AddBack(readBuf[:n]); err != nil {
				s.log.Warn("buffer grow failed", zap.Error(err))
				return
			}
			continue
		}

		inBuf.GC()

		if err := s.dispatch(outBuf, req); err != nil {
			s.log.Warn("dispatch failed", zap.Error(err))
			return
		}
		if err := drain(outBuf, c); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(outBuf *buffer.Buffer, req *request) error {
	switch req.code {
	case iproto.ReqPing:
		return encodeResponse(outBuf, req.sync, nil)
	case iproto.ReqInsert, iproto.ReqReplace:
		sp := s.spaceFor(req.spaceID)
		row, ok := sp.insert(req.tuple, req.code == iproto.ReqReplace)
		if !ok {
			return encodeError(outBuf, req.sync, 0x2003, "duplicate key")
		}
		return encodeResponse(outBuf, req.sync, [][]any{row})
	case iproto.ReqSelect:
		sp := s.spaceFor(req.spaceID)
		if len(req.key) == 0 {
			return encodeResponse(outBuf, req.sync, applyLimitOffset(sp.selectAll(), req.limit, req.offset))
		}
		row, ok := sp.get(req.key)
		if !ok {
			return encodeResponse(outBuf, req.sync, nil)
		}
		return encodeResponse(outBuf, req.sync, [][]any{row})
	case iproto.ReqDelete:
		sp := s.spaceFor(req.spaceID)
		row, ok := sp.delete(req.key)
		if !ok {
			return encodeResponse(outBuf, req.sync, nil)
		}
		return encodeResponse(outBuf, req.sync, [][]any{row})
	case iproto.ReqUpdate:
		sp := s.spaceFor(req.spaceID)
		row, ok := sp.get(req.key)
		if !ok {
			return encodeResponse(outBuf, req.sync, nil)
		}
		updated := applyOps(row, req.ops)
		sp.insert(updated, true)
		return encodeResponse(outBuf, req.sync, [][]any{updated})
	case iproto.ReqUpsert:
		sp := s.spaceFor(req.spaceID)
		if row, ok := sp.get(req.tuple); ok {
			updated := applyOps(row, req.ops)
			sp.insert(updated, true)
		} else {
			sp.insert(req.tuple, true)
		}
		return encodeResponse(outBuf, req.sync, nil)
	case iproto.ReqCall:
		return s.dispatchCall(outBuf, req)
	default:
		return encodeError(outBuf, req.sync, 0x2000, fmt.Sprintf("unsupported request code %d", req.code))
	}
}

// applyLimitOffset trims rows for SELECT's LIMIT/OFFSET, treating a
// zero limit as "unlimited" the way Tarantool's own default does.
func applyLimitOffset(rows [][]any, limit, offset uint32) [][]any {
	if int(offset) >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && int(limit) < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// applyOps interprets a tiny subset of Tarantool's update operations:
// ["=", fieldIndex, value] overwrites a field, everything else is
// ignored -- this is a test double, not a full update-ops engine.
func applyOps(row []any, ops []any) []any {
	out := append([]any(nil), row...)
	for _, opAny := range ops {
		op, ok := opAny.([]any)
		if !ok || len(op) < 3 {
			continue
		}
		verb, _ := op[0].(string)
		idx, err := decodeAnyUintValue(op[1])
		if verb != "=" || err != nil || int(idx) >= len(out) {
			continue
		}
		out[idx] = op[2]
	}
	return out
}

func decodeAnyUintValue(v any) (uint64, error) {
	switch x := v.(type) {
	case uint64:
		return x, nil
	case int64:
		return uint64(x), nil
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}

func drain(outBuf *buffer.Buffer, c net.Conn) error {
	if outBuf.Empty() {
		return nil
	}
	begin := outBuf.Begin()
	defer begin.Close()
	end := outBuf.End()
	defer end.Close()
	n := buffer.Distance(begin, end)

	data := make([]byte, n)
	if err := outBuf.Get(begin, data); err != nil {
		return err
	}
	if _, err := c.Write(data); err != nil {
		return err
	}
	outBuf.DropFront(n)
	return nil
}

func writeGreeting(c net.Conn) error {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	saltB64 := base64.StdEncoding.EncodeToString(salt)

	greeting := make([]byte, iproto.GreetingSize)
	version := "Tarantool 2.11.0 (Binary) testsrv"
	copy(greeting[:64], version)
	copy(greeting[64:64+len(saltB64)], saltB64)
	_, err := c.Write(greeting)
	return err
}
