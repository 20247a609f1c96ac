// Package mpp implements the MessagePack codec described in spec section
// 4.2: compile-time-flavored type dispatch (rendered in Go as a closed
// Family enum plus generic encode/decode helpers), specificators that
// annotate values at the call site, and a reader-callback decoder that
// supports zero-copy string/binary payloads via buffer iterator ranges.
//
// Grounded on _examples/original_source/src/mpp/Types.hpp (specificators)
// and Traits.hpp (the family/compact-type classification).
package mpp

// Family is a bitmask over the MessagePack type families, used both to
// classify a decoded tag byte and to describe which families a Reader
// accepts (its VALID_TYPES in the original).
type Family uint32

const (
	FamNil Family = 1 << iota
	FamBool
	FamPosInt
	FamNegInt
	FamUint8
	FamUint16
	FamUint32
	FamUint64
	FamInt8
	FamInt16
	FamInt32
	FamInt64
	FamFloat32
	FamFloat64
	FamFixStr
	FamStr8
	FamStr16
	FamStr32
	FamFixBin
	FamBin8
	FamBin16
	FamBin32
	FamFixArray
	FamArray16
	FamArray32
	FamFixMap
	FamMap16
	FamMap32
	FamFixExt
	FamExt8
	FamExt16
	FamExt32
)

// Convenience unions matching how callers usually want to accept a family
// of related wire representations regardless of the width the encoder
// picked.
const (
	FamAnyInt   = FamPosInt | FamNegInt | FamUint8 | FamUint16 | FamUint32 | FamUint64 | FamInt8 | FamInt16 | FamInt32 | FamInt64
	FamAnyFloat = FamFloat32 | FamFloat64
	FamAnyStr   = FamFixStr | FamStr8 | FamStr16 | FamStr32
	FamAnyBin   = FamFixBin | FamBin8 | FamBin16 | FamBin32
	FamAnyArray = FamFixArray | FamArray16 | FamArray32
	FamAnyMap   = FamFixMap | FamMap16 | FamMap32
	FamAnyExt   = FamFixExt | FamExt8 | FamExt16 | FamExt32
	FamAny      = ^Family(0)
)

func (f Family) Has(want Family) bool { return f&want != 0 }
