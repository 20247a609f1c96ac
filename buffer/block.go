package buffer

import "strconv"

// block is one fixed-size chunk of a Buffer's storage. Blocks are threaded
// into a doubly-linked list; id orders blocks along that list so two
// positions in different blocks can be compared without walking the list.
//
// Grounded on _examples/original_source/src/Buffer/Buffer.hpp's BlockBase
// (rlist link + monotonic id) and Block (fixed data array). Go blocks are
// garbage collected, so unlike the C++ original there is no need to model
// the block arena as an index-addressed slot table to avoid raw pointer
// aliasing -- a plain pointer-linked list is both idiomatic Go (it is how
// container/list is built) and safe here, since nothing outside this
// package ever takes the address of a block.
type block struct {
	data []byte
	id   uint64
	next *block
	prev *block
}

func (b *block) String() string {
	if b == nil {
		return "<nil>"
	}
	return "block#" + strconv.FormatUint(b.id, 10)
}
