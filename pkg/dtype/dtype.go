// Package dtype describes array element types and the rules for converting
// between them.
package dtype

import (
	"fmt"
	"strings"
)

// DType identifies the element type of an array.
type DType uint8

const (
	Invalid DType = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float16
	Float32
	Float64
	Complex64
	Complex128
)

// Kind groups element types the way NumPy's dtype.kind does.
type Kind byte

const (
	KindInvalid Kind = 0
	KindBool    Kind = 'b'
	KindUint    Kind = 'u'
	KindInt     Kind = 'i'
	KindFloat   Kind = 'f'
	KindComplex Kind = 'c'
)

func (k Kind) String() string {
	if k == KindInvalid {
		return "invalid"
	}
	return string(rune(k))
}

type info struct {
	name        string
	short       string
	safetensors string
	size        int
	kind        Kind
}

var infos = [...]info{
	Invalid:    {name: "invalid"},
	Bool:       {"bool", "?", "BOOL", 1, KindBool},
	Int8:       {"int8", "i1", "I8", 1, KindInt},
	Int16:      {"int16", "i2", "I16", 2, KindInt},
	Int32:      {"int32", "i4", "I32", 4, KindInt},
	Int64:      {"int64", "i8", "I64", 8, KindInt},
	Uint8:      {"uint8", "u1", "U8", 1, KindUint},
	Uint16:     {"uint16", "u2", "U16", 2, KindUint},
	Uint32:     {"uint32", "u4", "U32", 4, KindUint},
	Uint64:     {"uint64", "u8", "U64", 8, KindUint},
	Float16:    {"float16", "f2", "F16", 2, KindFloat},
	Float32:    {"float32", "f4", "F32", 4, KindFloat},
	Float64:    {"float64", "f8", "F64", 8, KindFloat},
	Complex64:  {"complex64", "c8", "C64", 8, KindComplex},
	Complex128: {"complex128", "c16", "C128", 16, KindComplex},
}

// All lists every valid element type in declaration order.
func All() []DType {
	out := make([]DType, 0, len(infos)-1)
	for d := Bool; int(d) < len(infos); d++ {
		out = append(out, d)
	}
	return out
}

func (d DType) info() info {
	if int(d) < len(infos) {
		return infos[d]
	}
	return infos[Invalid]
}

// Valid reports whether d is a known element type.
func (d DType) Valid() bool {
	return d != Invalid && int(d) < len(infos)
}

// Size returns the byte size of one element, or 0 for an invalid type.
func (d DType) Size() int { return d.info().size }

// Kind returns the element kind.
func (d DType) Kind() Kind { return d.info().kind }

// SafetensorsName returns the dtype spelling used in safetensors headers.
func (d DType) SafetensorsName() string { return d.info().safetensors }

func (d DType) String() string {
	if !d.Valid() {
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
	return d.info().name
}

// MarshalText encodes the canonical name.
func (d DType) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid dtype %d", uint8(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText accepts anything Parse accepts.
func (d *DType) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

var aliases = map[string]DType{
	"bool_":  Bool,
	"b1":     Bool,
	"byte":   Int8,
	"ubyte":  Uint8,
	"short":  Int16,
	"ushort": Uint16,
	"int":    Int64,
	"uint":   Uint64,
	"half":   Float16,
	"single": Float32,
	"float":  Float64,
	"double": Float64,
	"cfloat": Complex128,
}

// Parse resolves a dtype name. Canonical names (float32), NumPy type codes
// with an optional little-endian or native prefix (f4, <f4, =i8) and
// safetensors names (F32, BOOL) are accepted.
func Parse(name string) (DType, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		return Invalid, fmt.Errorf("empty dtype name")
	}
	for d := Bool; int(d) < len(infos); d++ {
		if s == infos[d].safetensors {
			return d, nil
		}
	}
	lower := strings.ToLower(s)
	if len(lower) > 1 && (lower[0] == '<' || lower[0] == '=' || lower[0] == '|') {
		lower = lower[1:]
	}
	for d := Bool; int(d) < len(infos); d++ {
		if lower == infos[d].name || lower == infos[d].short {
			return d, nil
		}
	}
	if d, ok := aliases[lower]; ok {
		return d, nil
	}
	return Invalid, fmt.Errorf("unknown dtype %q", name)
}
