package testsrv

import (
	"fmt"

	"github.com/nimbledb/tnt-go/buffer"
)

// Function is a server-side function callable via CALL. Its result slice
// is sent back as a single tuple in the response's DATA array.
type Function func(args []any) ([]any, error)

// RegisterFunction makes name callable via CALL against this server.
func (s *Server) RegisterFunction(name string, fn Function) {
	s.fnMu.Lock()
	defer s.fnMu.Unlock()
	if s.fns == nil {
		s.fns = make(map[string]Function)
	}
	s.fns[name] = fn
}

func (s *Server) lookupFunction(name string) (Function, bool) {
	s.fnMu.RLock()
	defer s.fnMu.RUnlock()
	fn, ok := s.fns[name]
	return fn, ok
}

func (s *Server) dispatchCall(outBuf *buffer.Buffer, req *request) error {
	fn, ok := s.lookupFunction(req.functionName)
	if !ok {
		return encodeError(outBuf, req.sync, 0x2018, fmt.Sprintf("function %q not found", req.functionName))
	}
	result, err := fn(req.args)
	if err != nil {
		return encodeError(outBuf, req.sync, 0x2019, err.Error())
	}
	return encodeResponse(outBuf, req.sync, [][]any{result})
}
