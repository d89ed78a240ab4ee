package dtype

import (
	"fmt"
	"strings"
)

// Casting is a rule restricting which element conversions are allowed.
type Casting uint8

const (
	// No allows only identical types.
	No Casting = iota
	// Equiv also allows byte-order changes. All types here are native
	// little-endian, so it behaves like No.
	Equiv
	// Safe allows conversions that preserve every value.
	Safe
	// SameKind allows safe conversions and conversions within a kind,
	// such as float64 to float32.
	SameKind
	// Unsafe allows any conversion.
	Unsafe
)

// DefaultCasting matches the default of numpy.copyto.
const DefaultCasting = SameKind

var castingNames = [...]string{"no", "equiv", "safe", "same_kind", "unsafe"}

func (c Casting) String() string {
	if int(c) < len(castingNames) {
		return castingNames[c]
	}
	return fmt.Sprintf("casting(%d)", uint8(c))
}

// MarshalText encodes the casting name.
func (c Casting) MarshalText() ([]byte, error) {
	if int(c) >= len(castingNames) {
		return nil, fmt.Errorf("invalid casting %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText accepts anything ParseCasting accepts.
func (c *Casting) UnmarshalText(b []byte) error {
	v, err := ParseCasting(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseCasting resolves a casting rule name. Hyphens and underscores are
// interchangeable; an empty name yields DefaultCasting.
func ParseCasting(name string) (Casting, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return DefaultCasting, nil
	}
	s = strings.ReplaceAll(s, "-", "_")
	for i, n := range castingNames {
		if s == n {
			return Casting(i), nil
		}
	}
	return No, fmt.Errorf("unknown casting %q (expected no, equiv, safe, same_kind, or unsafe)", name)
}

// kindOrder ranks kinds for same_kind casting. A value may move to a kind
// of equal or higher rank.
func kindOrder(k Kind) int {
	switch k {
	case KindBool:
		return 0
	case KindUint:
		return 1
	case KindInt:
		return 2
	case KindFloat:
		return 3
	case KindComplex:
		return 4
	default:
		return -1
	}
}

// CanCast reports whether values of type from may be converted to type to
// under the casting rule c. The result matches numpy.can_cast for native
// byte order types.
func CanCast(from, to DType, c Casting) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	switch c {
	case No, Equiv:
		return from == to
	case Safe:
		return canCastSafe(from, to)
	case SameKind:
		if canCastSafe(from, to) {
			return true
		}
		return kindOrder(from.Kind()) <= kindOrder(to.Kind())
	case Unsafe:
		return true
	default:
		return false
	}
}

// minFloatSize is the size of the smallest float that holds every integer
// of the given byte size; minComplexSize is the complex equivalent.
func minFloatSize(intSize int) int {
	switch intSize {
	case 1:
		return 2
	case 2:
		return 4
	default:
		return 8
	}
}

func minComplexSize(intSize int) int {
	if intSize <= 2 {
		return 8
	}
	return 16
}

func canCastSafe(from, to DType) bool {
	if from == to {
		return true
	}
	fs, ts := from.Size(), to.Size()
	switch from.Kind() {
	case KindBool:
		return true
	case KindInt:
		switch to.Kind() {
		case KindInt:
			return ts >= fs
		case KindFloat:
			return ts >= minFloatSize(fs)
		case KindComplex:
			return ts >= minComplexSize(fs)
		}
	case KindUint:
		switch to.Kind() {
		case KindUint:
			return ts >= fs
		case KindInt:
			return ts > fs
		case KindFloat:
			return ts >= minFloatSize(fs)
		case KindComplex:
			return ts >= minComplexSize(fs)
		}
	case KindFloat:
		switch to.Kind() {
		case KindFloat:
			return ts >= fs
		case KindComplex:
			return ts >= 2*fs
		}
	case KindComplex:
		return to.Kind() == KindComplex && ts >= fs
	}
	return false
}
