package mpp

// discardReader accepts and drops any value, used as the default when a
// caller's OnArray/OnMap returns a nil child reader ("skip the
// container's children").
type discardReader struct{}

func (discardReader) ValidTypes() Family      { return FamAny }
func (discardReader) OnNil() error            { return nil }
func (discardReader) OnBool(bool) error       { return nil }
func (discardReader) OnUint(uint64) error     { return nil }
func (discardReader) OnInt(int64) error       { return nil }
func (discardReader) OnFloat32(float32) error { return nil }
func (discardReader) OnFloat64(float64) error { return nil }
func (discardReader) OnStr(r ByteRange) error {
	r.Close()
	return nil
}
func (discardReader) OnBin(r ByteRange) error {
	r.Close()
	return nil
}
func (discardReader) OnExt(_ int8, r ByteRange) error {
	r.Close()
	return nil
}
func (discardReader) OnArray(int) (Reader, error) { return nil, nil }
func (discardReader) OnMap(int) (Reader, error)   { return nil, nil }
