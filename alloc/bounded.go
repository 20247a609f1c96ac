package alloc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/puddle/v2"
)

// Bounded is an Allocator that caps the number of chunks live at once,
// backed by jackc/puddle's generic resource pool (pulled from the
// pior-memcache example's dependency stack, where puddle pools live
// connections; here it pools raw byte chunks instead).
//
// Where Pool grows without limit, Bounded blocks the caller (up to a
// configured timeout) once maxBlocks chunks are outstanding, giving a
// buffer built on it back-pressure against runaway growth instead of an
// OOM kill. This is a property of block allocation inside one buffer, not
// of connection management, so it does not reintroduce the "connection
// pooling" Non-goal.
type Bounded struct {
	size    int
	timeout time.Duration
	pool    *puddle.Pool[[]byte]

	mu   sync.Mutex
	live map[*byte]*puddle.Resource[[]byte]
}

// NewBounded creates a Bounded allocator producing chunks of blockSize
// bytes, capping the number of outstanding chunks at maxBlocks. Allocate
// waits up to timeout for a free chunk before failing with ErrOutOfMemory.
func NewBounded(blockSize, maxBlocks int, timeout time.Duration) (*Bounded, error) {
	if blockSize <= 0 || maxBlocks <= 0 {
		return nil, fmt.Errorf("alloc: invalid bounded allocator size=%d max=%d", blockSize, maxBlocks)
	}
	b := &Bounded{
		size:    blockSize,
		timeout: timeout,
		live:    make(map[*byte]*puddle.Resource[[]byte]),
	}
	pool, err := puddle.NewPool(&puddle.Config[[]byte]{
		Constructor: func(context.Context) ([]byte, error) {
			return make([]byte, blockSize), nil
		},
		Destructor: func([]byte) {},
		MaxSize:    int32(maxBlocks),
	})
	if err != nil {
		return nil, err
	}
	b.pool = pool
	return b, nil
}

func (b *Bounded) BlockSize() int { return b.size }

func (b *Bounded) Allocate() ([]byte, error) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if b.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	res, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	chunk := res.Value()
	b.mu.Lock()
	b.live[&chunk[0]] = res
	b.mu.Unlock()
	return chunk, nil
}

func (b *Bounded) Deallocate(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	key := &chunk[0]
	b.mu.Lock()
	res, ok := b.live[key]
	if ok {
		delete(b.live, key)
	}
	b.mu.Unlock()
	if ok {
		res.Release()
	}
}

// Close releases the underlying puddle pool. Outstanding chunks must be
// deallocated first.
func (b *Bounded) Close() {
	b.pool.Close()
}
