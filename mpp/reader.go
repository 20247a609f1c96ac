package mpp

// Reader receives decoded values from Decoder.DecodeValue. It is the Go
// rendering of the original CRTP Reader base: instead of a compile-time
// mixin, callers assemble a Callbacks value with the function fields they
// care about, leaving the rest nil (a no-op accept).
type Reader interface {
	// ValidTypes returns the families this reader accepts; DecodeValue
	// aborts with StatusAbort if the next value's family isn't in this
	// set, without consuming it.
	ValidTypes() Family

	OnNil() error
	OnBool(v bool) error
	OnUint(v uint64) error
	OnInt(v int64) error
	OnFloat32(v float32) error
	OnFloat64(v float64) error
	// OnStr and OnBin receive the payload as a ByteRange pinned into the
	// decoder's buffer -- no copy is made unless the callback asks for
	// one via ByteRange.Bytes.
	OnStr(r ByteRange) error
	OnBin(r ByteRange) error
	OnExt(extType int8, r ByteRange) error
	// OnArray and OnMap are called with the element/entry count once the
	// header is decoded; the returned Reader decodes each subsequent
	// child value (each of the 2*n values for a map, alternating key
	// and value). Returning nil skips (drains) the container's children
	// instead of decoding them.
	OnArray(n int) (Reader, error)
	OnMap(n int) (Reader, error)
}

// Callbacks is a ready-to-use Reader built from function fields; nil
// fields silently accept the value with no side effect (Raw/Reserve's
// decode-time analogue). Types embeds the accepted Family mask.
type Callbacks struct {
	Types Family

	Nil     func() error
	Bool    func(v bool) error
	Uint    func(v uint64) error
	Int     func(v int64) error
	Float32 func(v float32) error
	Float64 func(v float64) error
	Str     func(r ByteRange) error
	Bin     func(r ByteRange) error
	Ext     func(extType int8, r ByteRange) error
	Array   func(n int) (Reader, error)
	Map     func(n int) (Reader, error)
}

func (c *Callbacks) ValidTypes() Family { return c.Types }

func (c *Callbacks) OnNil() error {
	if c.Nil == nil {
		return nil
	}
	return c.Nil()
}

func (c *Callbacks) OnBool(v bool) error {
	if c.Bool == nil {
		return nil
	}
	return c.Bool(v)
}

func (c *Callbacks) OnUint(v uint64) error {
	if c.Uint == nil {
		return nil
	}
	return c.Uint(v)
}

func (c *Callbacks) OnInt(v int64) error {
	if c.Int == nil {
		return nil
	}
	return c.Int(v)
}

func (c *Callbacks) OnFloat32(v float32) error {
	if c.Float32 == nil {
		return nil
	}
	return c.Float32(v)
}

func (c *Callbacks) OnFloat64(v float64) error {
	if c.Float64 == nil {
		return nil
	}
	return c.Float64(v)
}

func (c *Callbacks) OnStr(r ByteRange) error {
	if c.Str == nil {
		r.Close()
		return nil
	}
	return c.Str(r)
}

func (c *Callbacks) OnBin(r ByteRange) error {
	if c.Bin == nil {
		r.Close()
		return nil
	}
	return c.Bin(r)
}

func (c *Callbacks) OnExt(extType int8, r ByteRange) error {
	if c.Ext == nil {
		r.Close()
		return nil
	}
	return c.Ext(extType, r)
}

func (c *Callbacks) OnArray(n int) (Reader, error) {
	if c.Array == nil {
		return nil, nil
	}
	return c.Array(n)
}

func (c *Callbacks) OnMap(n int) (Reader, error) {
	if c.Map == nil {
		return nil, nil
	}
	return c.Map(n)
}
