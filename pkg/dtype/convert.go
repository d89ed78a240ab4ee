package dtype

import (
	"encoding/binary"
	"math"
)

// Scalar holds one element value decoded from its byte representation.
// Only the field matching Kind is meaningful.
type Scalar struct {
	Kind Kind
	B    bool
	I    int64
	U    uint64
	F    float64
	C    complex128
}

// BoolScalar, IntScalar, UintScalar, FloatScalar and ComplexScalar build
// scalars of each kind.
func BoolScalar(v bool) Scalar          { return Scalar{Kind: KindBool, B: v} }
func IntScalar(v int64) Scalar          { return Scalar{Kind: KindInt, I: v} }
func UintScalar(v uint64) Scalar        { return Scalar{Kind: KindUint, U: v} }
func FloatScalar(v float64) Scalar      { return Scalar{Kind: KindFloat, F: v} }
func ComplexScalar(v complex128) Scalar { return Scalar{Kind: KindComplex, C: v} }

// Bool reports whether the value is nonzero.
func (s Scalar) Bool() bool {
	switch s.Kind {
	case KindBool:
		return s.B
	case KindInt:
		return s.I != 0
	case KindUint:
		return s.U != 0
	case KindFloat:
		return s.F != 0
	case KindComplex:
		return s.C != 0
	}
	return false
}

// Int64 converts the value the way a C cast would; complex values drop the
// imaginary part.
func (s Scalar) Int64() int64 {
	switch s.Kind {
	case KindBool:
		if s.B {
			return 1
		}
		return 0
	case KindInt:
		return s.I
	case KindUint:
		return int64(s.U)
	case KindFloat:
		return int64(s.F)
	case KindComplex:
		return int64(real(s.C))
	}
	return 0
}

// Uint64 converts the value the way a C cast would. Negative floats wrap
// through int64.
func (s Scalar) Uint64() uint64 {
	switch s.Kind {
	case KindUint:
		return s.U
	case KindFloat:
		if s.F < 0 {
			return uint64(int64(s.F))
		}
		return uint64(s.F)
	case KindComplex:
		if r := real(s.C); r < 0 {
			return uint64(int64(r))
		}
		return uint64(real(s.C))
	}
	return uint64(s.Int64())
}

// Float64 converts the value to float64.
func (s Scalar) Float64() float64 {
	switch s.Kind {
	case KindBool:
		if s.B {
			return 1
		}
		return 0
	case KindInt:
		return float64(s.I)
	case KindUint:
		return float64(s.U)
	case KindFloat:
		return s.F
	case KindComplex:
		return real(s.C)
	}
	return 0
}

// Complex128 converts the value to complex128.
func (s Scalar) Complex128() complex128 {
	if s.Kind == KindComplex {
		return s.C
	}
	return complex(s.Float64(), 0)
}

// Load decodes one little-endian element of type d from b.
func Load(d DType, b []byte) Scalar {
	le := binary.LittleEndian
	switch d {
	case Bool:
		return BoolScalar(b[0] != 0)
	case Int8:
		return IntScalar(int64(int8(b[0])))
	case Int16:
		return IntScalar(int64(int16(le.Uint16(b))))
	case Int32:
		return IntScalar(int64(int32(le.Uint32(b))))
	case Int64:
		return IntScalar(int64(le.Uint64(b)))
	case Uint8:
		return UintScalar(uint64(b[0]))
	case Uint16:
		return UintScalar(uint64(le.Uint16(b)))
	case Uint32:
		return UintScalar(uint64(le.Uint32(b)))
	case Uint64:
		return UintScalar(le.Uint64(b))
	case Float16:
		return FloatScalar(float64(Float16ToFloat32(le.Uint16(b))))
	case Float32:
		return FloatScalar(float64(math.Float32frombits(le.Uint32(b))))
	case Float64:
		return FloatScalar(math.Float64frombits(le.Uint64(b)))
	case Complex64:
		re := math.Float32frombits(le.Uint32(b))
		im := math.Float32frombits(le.Uint32(b[4:]))
		return ComplexScalar(complex(float64(re), float64(im)))
	case Complex128:
		re := math.Float64frombits(le.Uint64(b))
		im := math.Float64frombits(le.Uint64(b[8:]))
		return ComplexScalar(complex(re, im))
	}
	return Scalar{}
}

// Store encodes v as one little-endian element of type d into b, converting
// with C cast semantics.
func Store(d DType, b []byte, v Scalar) {
	le := binary.LittleEndian
	switch d {
	case Bool:
		if v.Bool() {
			b[0] = 1
		} else {
			b[0] = 0
		}
	case Int8:
		b[0] = byte(int8(v.Int64()))
	case Int16:
		le.PutUint16(b, uint16(int16(v.Int64())))
	case Int32:
		le.PutUint32(b, uint32(int32(v.Int64())))
	case Int64:
		le.PutUint64(b, uint64(v.Int64()))
	case Uint8:
		b[0] = byte(v.Uint64())
	case Uint16:
		le.PutUint16(b, uint16(v.Uint64()))
	case Uint32:
		le.PutUint32(b, uint32(v.Uint64()))
	case Uint64:
		le.PutUint64(b, v.Uint64())
	case Float16:
		le.PutUint16(b, Float16FromFloat64(v.Float64()))
	case Float32:
		le.PutUint32(b, math.Float32bits(float32(v.Float64())))
	case Float64:
		le.PutUint64(b, math.Float64bits(v.Float64()))
	case Complex64:
		c := v.Complex128()
		le.PutUint32(b, math.Float32bits(float32(real(c))))
		le.PutUint32(b[4:], math.Float32bits(float32(imag(c))))
	case Complex128:
		c := v.Complex128()
		le.PutUint64(b, math.Float64bits(real(c)))
		le.PutUint64(b[8:], math.Float64bits(imag(c)))
	}
}

// Convert rewrites one element from type from (in src) to type to (in dst).
func Convert(to DType, dst []byte, from DType, src []byte) {
	if to == from {
		copy(dst[:to.Size()], src)
		return
	}
	Store(to, dst, Load(from, src))
}
