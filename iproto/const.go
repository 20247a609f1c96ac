// Package iproto implements the request encoder and response decoder for
// the wire protocol described in spec section 4.3-4.6: a MessagePack
// frame carrying IPROTO-keyed header/body maps.
//
// Grounded on _examples/original_source/src/Client/Connection.hpp for
// the framing and futures-delivery shape, and on
// _examples/Eugene-Usachev-go-connector/internal/pipe/pipe.go for the
// length-prefixed read/write loop idiom (rendered here on top of the
// segmented buffer and MessagePack codec instead of raw net.Conn
// buffers).
package iproto

// FrameTag is the single byte that opens every frame on the wire.
const FrameTag byte = 0xce

// IPROTO key codes used in request/response header and body maps.
const (
	KeyCode         uint32 = 0x00
	KeySync         uint32 = 0x01
	KeySchemaID     uint32 = 0x05
	KeySpaceID      uint32 = 0x10
	KeyIndexID      uint32 = 0x11
	KeyLimit        uint32 = 0x12
	KeyOffset       uint32 = 0x13
	KeyIterator     uint32 = 0x14
	KeyIndexBase    uint32 = 0x15
	KeyKey          uint32 = 0x20
	KeyTuple        uint32 = 0x21
	KeyFunctionName uint32 = 0x22
	KeyOps          uint32 = 0x28
	KeyData         uint32 = 0x30
	KeyError24      uint32 = 0x31
	KeyError        uint32 = 0x52
	KeyUsername     uint32 = 0x23
)

// Request type codes.
const (
	ReqSelect  uint32 = 1
	ReqInsert  uint32 = 2
	ReqReplace uint32 = 3
	ReqUpdate  uint32 = 4
	ReqDelete  uint32 = 5
	ReqUpsert  uint32 = 9
	ReqCall    uint32 = 10
	ReqAuth    uint32 = 7
	ReqPing    uint32 = 64
)

// Iterator enum for SELECT/UPDATE/DELETE key matching.
const (
	IterEQ  uint32 = 0
	IterREQ uint32 = 1
	IterALL uint32 = 2
	IterLT  uint32 = 3
	IterLE  uint32 = 4
	IterGE  uint32 = 5
	IterGT  uint32 = 6
)

// Greeting layout: 128 bytes split 64 (version) + 44 (base64 salt) + 20
// (reserved).
const (
	GreetingSize        = 128
	greetingVersionSize = 64
	greetingSaltB64Size = 44
)

// DefaultGCStepCount is how many decoded frames pass between inbound
// buffer reclamation passes, unless a Connection is configured
// otherwise.
const DefaultGCStepCount = 128
