package iproto

import (
	"encoding/binary"
	"fmt"

	"github.com/nimbledb/tnt-go/buffer"
	"github.com/nimbledb/tnt-go/mpp"
)

// Response is a fully decoded IPROTO response header plus a body that
// keeps its tuples as unmaterialized byte ranges into the inbound
// buffer, for deferred zero-copy decoding by the application.
type Response struct {
	Sync     uint64
	Code     uint32
	SchemaID uint64
	Tuples   []mpp.ByteRange
	Errors   []ServerError
}

// Err returns the response's server-side error stack combined into a
// single error, or nil if the response carries no errors (Code is not
// consulted).
func (r *Response) Err() error {
	return ErrorStack(r.Errors)
}

// Close releases every tuple range's iterators. Callers must call this
// (or copy tuple bytes out first) before discarding a Response, or the
// inbound buffer can never reclaim the region those ranges pin.
func (r *Response) Close() {
	for _, t := range r.Tuples {
		t.Close()
	}
}

// ResponseDecoder decodes framed IPROTO responses off an inbound buffer,
// starting at a tracked read cursor equivalent to the original's
// endDecoded.
type ResponseDecoder struct {
	buf           *buffer.Buffer
	pos           *buffer.Iterator
	gcStepCount   int
	framesSinceGC int
}

// NewResponseDecoder decodes responses out of buf starting at its
// current Begin(). gcStepCount <= 0 uses DefaultGCStepCount.
func NewResponseDecoder(buf *buffer.Buffer, gcStepCount int) *ResponseDecoder {
	if gcStepCount <= 0 {
		gcStepCount = DefaultGCStepCount
	}
	return &ResponseDecoder{buf: buf, pos: buf.Begin(), gcStepCount: gcStepCount}
}

// Close releases the decoder's read cursor.
func (d *ResponseDecoder) Close() { d.pos.Close() }

// DecodeFrame attempts to decode one frame at the read cursor.
//
//   - (resp, nil) on a fully decoded response.
//   - (nil, nil) if fewer than a full frame is currently buffered
//     (NEEDMORE); the cursor is untouched and the caller should retry
//     after more bytes arrive.
//   - (nil, err) where errors.Is(err, ErrProtocol) for a corrupted
//     length prefix -- the connection is unrecoverable.
//   - (nil, err) where errors.Is(err, ErrDecode) for a corrupted body;
//     the frame was skipped and later frames still parse.
func (d *ResponseDecoder) DecodeFrame() (*Response, error) {
	if !d.buf.Has(d.pos, 5) {
		return nil, nil
	}
	hdr := make([]byte, 5)
	if err := d.buf.Get(d.pos, hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if hdr[0] != FrameTag {
		return nil, fmt.Errorf("%w: bad frame tag 0x%02x", ErrProtocol, hdr[0])
	}
	length := int(binary.BigEndian.Uint32(hdr[1:]))

	bodyStart := d.pos.Clone()
	defer bodyStart.Close()
	d.buf.MoveForward(bodyStart, 5)
	if !d.buf.Has(bodyStart, length) {
		return nil, nil
	}
	frameEnd := bodyStart.Clone()
	defer frameEnd.Close()
	d.buf.MoveForward(frameEnd, length)

	dec := mpp.NewDecoder(d.buf, bodyStart)
	resp, decErr := decodeHeaderAndBody(dec)
	dec.Close()

	d.buf.Assign(d.pos, frameEnd)
	d.afterFrame()

	if decErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, decErr)
	}
	return resp, nil
}

func (d *ResponseDecoder) afterFrame() {
	d.framesSinceGC++
	if d.framesSinceGC >= d.gcStepCount {
		d.framesSinceGC = 0
		d.buf.GC()
	}
}

func decodeHeaderAndBody(dec *mpp.Decoder) (*Response, error) {
	resp := &Response{}

	n, status, err := dec.DecodeMapHeader()
	if err != nil {
		return nil, err
	}
	if status != mpp.StatusOK {
		return nil, fmt.Errorf("truncated response header inside a complete frame")
	}
	for i := 0; i < n; i++ {
		key, status, err := dec.DecodeUint()
		if err != nil || status != mpp.StatusOK {
			return nil, fmt.Errorf("bad response header key: %w", err)
		}
		switch uint32(key) {
		case KeySync:
			v, _, err := dec.DecodeUint()
			if err != nil {
				return nil, err
			}
			resp.Sync = v
		case KeyCode:
			v, _, err := dec.DecodeUint()
			if err != nil {
				return nil, err
			}
			resp.Code = uint32(v)
		case KeySchemaID:
			v, _, err := dec.DecodeUint()
			if err != nil {
				return nil, err
			}
			resp.SchemaID = v
		default:
			rng, _, err := dec.SkipValue()
			rng.Close()
			if err != nil {
				return nil, err
			}
		}
	}

	m, status, err := dec.DecodeMapHeader()
	if err != nil {
		return nil, err
	}
	if status != mpp.StatusOK {
		return nil, fmt.Errorf("truncated response body inside a complete frame")
	}
	for i := 0; i < m; i++ {
		key, status, err := dec.DecodeUint()
		if err != nil || status != mpp.StatusOK {
			return nil, fmt.Errorf("bad response body key: %w", err)
		}
		switch uint32(key) {
		case KeyData:
			tuples, err := decodeDataArray(dec)
			if err != nil {
				return nil, err
			}
			resp.Tuples = tuples
		case KeyError24:
			errs, err := decodeError24(dec)
			if err != nil {
				return nil, err
			}
			resp.Errors = append(resp.Errors, errs...)
		case KeyError:
			errs, err := decodeErrorStack(dec)
			if err != nil {
				return nil, err
			}
			resp.Errors = append(resp.Errors, errs...)
		default:
			rng, _, err := dec.SkipValue()
			rng.Close()
			if err != nil {
				return nil, err
			}
		}
	}
	return resp, nil
}

func decodeDataArray(dec *mpp.Decoder) ([]mpp.ByteRange, error) {
	n, status, err := dec.DecodeArrayHeader()
	if err != nil {
		return nil, err
	}
	if status != mpp.StatusOK {
		return nil, fmt.Errorf("truncated data array inside a complete frame")
	}
	tuples := make([]mpp.ByteRange, 0, n)
	for i := 0; i < n; i++ {
		rng, status, err := dec.SkipValue()
		if err != nil {
			return nil, err
		}
		if status != mpp.StatusOK {
			return nil, fmt.Errorf("truncated tuple inside a complete frame")
		}
		tuples = append(tuples, rng)
	}
	return tuples, nil
}

// decodeError24 decodes the legacy single-message error field: a plain
// string.
func decodeError24(dec *mpp.Decoder) ([]ServerError, error) {
	v, status, err := dec.DecodeAny()
	if err != nil {
		return nil, err
	}
	if status != mpp.StatusOK {
		return nil, fmt.Errorf("truncated ERROR_24 field")
	}
	msg, _ := v.(string)
	return []ServerError{{Msg: msg}}, nil
}

// Sub-keys of each ERROR stack frame's map, per spec section 4.4's
// "{code, msg, file, line, errno, type}". The wire doesn't fix a public
// numbering for these, so this mirrors Tarantool's own error_ext MP_MAP
// field ids.
const (
	errFieldType  = 0x00
	errFieldFile  = 0x01
	errFieldLine  = 0x02
	errFieldMsg   = 0x03
	errFieldErrno = 0x04
	errFieldCode  = 0x05
)

// decodeErrorStack decodes the ERROR key: an array of per-frame error
// maps.
func decodeErrorStack(dec *mpp.Decoder) ([]ServerError, error) {
	v, status, err := dec.DecodeAny()
	if err != nil {
		return nil, err
	}
	if status != mpp.StatusOK {
		return nil, fmt.Errorf("truncated ERROR field")
	}
	frames, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("ERROR field is not an array")
	}
	out := make([]ServerError, 0, len(frames))
	for _, f := range frames {
		m, ok := f.(map[any]any)
		if !ok {
			continue
		}
		out = append(out, ServerError{
			Type:  asString(m[uint64(errFieldType)]),
			File:  asString(m[uint64(errFieldFile)]),
			Line:  asUint32(m[uint64(errFieldLine)]),
			Msg:   asString(m[uint64(errFieldMsg)]),
			Errno: asUint32(m[uint64(errFieldErrno)]),
			Code:  asUint32(m[uint64(errFieldCode)]),
		})
	}
	return out, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asUint32(v any) uint32 {
	switch x := v.(type) {
	case uint64:
		return uint32(x)
	case int64:
		return uint32(x)
	default:
		return 0
	}
}
