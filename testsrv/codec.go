package testsrv

import (
	"encoding/binary"
	"fmt"

	"github.com/nimbledb/tnt-go/buffer"
	"github.com/nimbledb/tnt-go/iproto"
	"github.com/nimbledb/tnt-go/mpp"
)

// request is a decoded client frame, general enough to cover every
// request type this server understands.
type request struct {
	sync         uint64
	code         uint32
	spaceID      uint32
	indexID      uint32
	limit        uint32
	offset       uint32
	iterator     uint32
	key          []any
	tuple        []any
	ops          []any
	functionName string
	args         []any
}

// decodeRequest reads one length-prefixed frame from buf starting at
// pos, mirroring iproto.ResponseDecoder.DecodeFrame's framing but for
// the request side of the wire (spec section 4.3's framing is
// symmetric in both directions).
func decodeRequest(buf *buffer.Buffer, pos *buffer.Iterator) (*request, error) {
	tmp := pos.Clone()
	defer tmp.Close()

	prefix := make([]byte, 5)
	if !buf.Has(tmp, 5) {
		return nil, nil
	}
	if err := buf.Get(tmp, prefix); err != nil {
		return nil, err
	}
	if prefix[0] != iproto.FrameTag {
		return nil, fmt.Errorf("%w: bad frame tag 0x%02x", iproto.ErrProtocol, prefix[0])
	}
	length := int(binary.BigEndian.Uint32(prefix[1:]))
	buf.MoveForward(tmp, 5)
	if !buf.Has(tmp, length) {
		return nil, nil
	}

	bodyStart := tmp.Clone()
	defer bodyStart.Close()
	frameEnd := bodyStart.Clone()
	defer frameEnd.Close()
	buf.MoveForward(frameEnd, length)

	dec := mpp.NewDecoder(buf, bodyStart)
	defer dec.Close()

	req := &request{}
	if err := decodeRequestHeader(dec, req); err != nil {
		return nil, err
	}
	if err := decodeRequestBody(dec, req); err != nil {
		return nil, err
	}

	buf.Assign(pos, frameEnd)
	return req, nil
}

func decodeRequestHeader(dec *mpp.Decoder, req *request) error {
	n, status, err := dec.DecodeMapHeader()
	if err != nil || status != mpp.StatusOK {
		return firstErr(err, status)
	}
	for i := 0; i < n; i++ {
		key, status, err := dec.DecodeUint()
		if err != nil || status != mpp.StatusOK {
			return firstErr(err, status)
		}
		switch uint32(key) {
		case iproto.KeySync:
			v, status, err := dec.DecodeUint()
			if err != nil || status != mpp.StatusOK {
				return firstErr(err, status)
			}
			req.sync = v
		case iproto.KeyCode:
			v, status, err := dec.DecodeUint()
			if err != nil || status != mpp.StatusOK {
				return firstErr(err, status)
			}
			req.code = uint32(v)
		default:
			rng, status, err := dec.SkipValue()
			rng.Close()
			if err != nil || status != mpp.StatusOK {
				return firstErr(err, status)
			}
		}
	}
	return nil
}

func decodeRequestBody(dec *mpp.Decoder, req *request) error {
	n, status, err := dec.DecodeMapHeader()
	if err != nil || status != mpp.StatusOK {
		return firstErr(err, status)
	}
	for i := 0; i < n; i++ {
		key, status, err := dec.DecodeUint()
		if err != nil || status != mpp.StatusOK {
			return firstErr(err, status)
		}
		switch uint32(key) {
		case iproto.KeySpaceID:
			v, err := decodeAnyUint(dec)
			if err != nil {
				return err
			}
			req.spaceID = uint32(v)
		case iproto.KeyIndexID:
			v, err := decodeAnyUint(dec)
			if err != nil {
				return err
			}
			req.indexID = uint32(v)
		case iproto.KeyLimit:
			v, err := decodeAnyUint(dec)
			if err != nil {
				return err
			}
			req.limit = uint32(v)
		case iproto.KeyOffset:
			v, err := decodeAnyUint(dec)
			if err != nil {
				return err
			}
			req.offset = uint32(v)
		case iproto.KeyIterator:
			v, err := decodeAnyUint(dec)
			if err != nil {
				return err
			}
			req.iterator = uint32(v)
		case iproto.KeyKey:
			v, err := decodeAnyArray(dec)
			if err != nil {
				return err
			}
			req.key = v
		case iproto.KeyTuple:
			v, err := decodeAnyArray(dec)
			if err != nil {
				return err
			}
			if req.code == iproto.ReqCall {
				req.args = v
			} else {
				req.tuple = v
			}
		case iproto.KeyOps:
			v, err := decodeAnyArray(dec)
			if err != nil {
				return err
			}
			req.ops = v
		case iproto.KeyFunctionName:
			v, err := decodeAnyString(dec)
			if err != nil {
				return err
			}
			req.functionName = v
		default:
			rng, status, err := dec.SkipValue()
			rng.Close()
			if err != nil || status != mpp.StatusOK {
				return firstErr(err, status)
			}
		}
	}
	return nil
}

func decodeAnyUint(dec *mpp.Decoder) (uint64, error) {
	v, status, err := dec.DecodeAny()
	if err != nil || status != mpp.StatusOK {
		return 0, firstErr(err, status)
	}
	switch x := v.(type) {
	case uint64:
		return x, nil
	case int64:
		return uint64(x), nil
	default:
		return 0, fmt.Errorf("%w: expected integer, got %T", iproto.ErrDecode, v)
	}
}

func decodeAnyString(dec *mpp.Decoder) (string, error) {
	v, status, err := dec.DecodeAny()
	if err != nil || status != mpp.StatusOK {
		return "", firstErr(err, status)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	default:
		return "", fmt.Errorf("%w: expected string, got %T", iproto.ErrDecode, v)
	}
}

func decodeAnyArray(dec *mpp.Decoder) ([]any, error) {
	v, status, err := dec.DecodeAny()
	if err != nil || status != mpp.StatusOK {
		return nil, firstErr(err, status)
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected array, got %T", iproto.ErrDecode, v)
	}
	return arr, nil
}

func firstErr(err error, status mpp.Status) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: unexpected status %s", iproto.ErrDecode, status)
}

// encodeResponse appends one OK response frame (sync, DATA=rows) to buf.
func encodeResponse(buf *buffer.Buffer, sync uint64, rows [][]any) error {
	return encodeFrame(buf, sync, 0, func(enc *mpp.Encoder) error {
		if err := enc.EncodeMapHeader(1); err != nil {
			return err
		}
		if err := enc.EncodeUint(uint64(iproto.KeyData)); err != nil {
			return err
		}
		if err := enc.EncodeArrayHeader(len(rows)); err != nil {
			return err
		}
		for _, row := range rows {
			if err := enc.EncodeArr(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// encodeError appends one error response frame to buf.
func encodeError(buf *buffer.Buffer, sync uint64, code uint32, msg string) error {
	return encodeFrame(buf, sync, code, func(enc *mpp.Encoder) error {
		if err := enc.EncodeMapHeader(1); err != nil {
			return err
		}
		if err := enc.EncodeUint(uint64(iproto.KeyError24)); err != nil {
			return err
		}
		return enc.EncodeStr(msg)
	})
}

func encodeFrame(buf *buffer.Buffer, sync uint64, code uint32, body func(*mpp.Encoder) error) error {
	enc := mpp.NewEncoder(buf)

	lenIt, err := buf.AppendBack(5)
	if err != nil {
		return err
	}
	defer lenIt.Close()

	if err := enc.EncodeMapHeader(2); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(iproto.KeySync)); err != nil {
		return err
	}
	if err := enc.EncodeUint(sync); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(iproto.KeyCode)); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(code)); err != nil {
		return err
	}

	if err := body(enc); err != nil {
		return err
	}

	end := buf.End()
	defer end.Close()
	length := buffer.Distance(lenIt, end) - 5

	prefix := make([]byte, 5)
	prefix[0] = iproto.FrameTag
	binary.BigEndian.PutUint32(prefix[1:], uint32(length))
	return buf.Set(lenIt, prefix)
}
