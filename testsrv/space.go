package testsrv

import (
	"fmt"
	"sync"
)

// space is a naive in-memory single-index tuple store, keyed by the
// stringified first field of each tuple -- enough to exercise
// insert/replace/select/update/delete/upsert against something real,
// without pretending to be a real storage engine (out of scope per
// spec section 1's "embedded database" collaborator).
type space struct {
	mu   sync.Mutex
	rows map[string][]any
}

func newSpace() *space {
	return &space{rows: make(map[string][]any)}
}

func keyOf(key []any) string {
	if len(key) == 0 {
		return ""
	}
	return toKeyString(key[0])
}

func toKeyString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func (s *space) insert(tuple []any, replace bool) ([]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(tuple)
	if _, exists := s.rows[k]; exists && !replace {
		return nil, false
	}
	s.rows[k] = tuple
	return tuple, true
}

func (s *space) get(key []any) ([]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[keyOf(key)]
	return t, ok
}

func (s *space) delete(key []any) ([]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(key)
	t, ok := s.rows[k]
	if ok {
		delete(s.rows, k)
	}
	return t, ok
}

// selectAll returns every tuple, for the empty-key SELECT scenario.
func (s *space) selectAll() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, 0, len(s.rows))
	for _, t := range s.rows {
		out = append(out, t)
	}
	return out
}
