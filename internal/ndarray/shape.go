package ndarray

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Shape represents the dimensions of an array.
type Shape []int

// Strides are byte offsets between consecutive elements along each dimension.
type Strides []int

// NumElements returns the total number of elements in the shape.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal checks if two shapes are identical.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	c := make(Shape, len(s))
	copy(c, s)
	return c
}

func (s Shape) String() string {
	return fmt.Sprintf("%v", []int(s))
}

// Bytes returns the size in bytes of a dense array of this shape. It fails
// on negative dimensions and on sizes that do not fit in an int.
func (s Shape) Bytes(itemSize int) (int, error) {
	n := itemSize
	for _, d := range s {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative dimension in %v", ErrInvalidShape, s)
		}
		if d == 0 {
			n = 0
		}
	}
	if n == 0 {
		return 0, nil
	}
	for _, d := range s {
		var ok bool
		if n, ok = mulInt(n, d); !ok {
			return 0, fmt.Errorf("%w: size of %v overflows", ErrInvalidShape, s)
		}
	}
	return n, nil
}

func (s Shape) validate() error {
	_, err := s.Bytes(1)
	return err
}

// ParseShape reads a comma separated list of dimensions such as "3,3".
// An empty string is the 0-d shape.
func ParseShape(s string) (Shape, error) {
	s = strings.Trim(strings.TrimSpace(s), "()[]")
	if s == "" {
		return Shape{}, nil
	}
	parts := strings.Split(s, ",")
	shape := make(Shape, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad dimension %q", ErrInvalidShape, p)
		}
		shape = append(shape, n)
	}
	return shape, nil
}

// Clone returns a copy of the strides.
func (s Strides) Clone() Strides {
	c := make(Strides, len(s))
	copy(c, s)
	return c
}

// Order is a memory layout order.
type Order byte

const (
	// C is row-major order: the last index varies fastest.
	C Order = 'C'
	// F is column-major order: the first index varies fastest.
	F Order = 'F'
)

func (o Order) String() string { return string(rune(o)) }

// ParseOrder reads "C" or "F" (case-insensitive); empty means C.
func ParseOrder(s string) (Order, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "C":
		return C, nil
	case "F":
		return F, nil
	default:
		return 0, fmt.Errorf("unknown order %q (expected C or F)", s)
	}
}

// ContiguousStrides computes dense strides for shape in the given order.
func ContiguousStrides(shape Shape, itemSize int, order Order) Strides {
	strides := make(Strides, len(shape))
	acc := itemSize
	if order == F {
		for i := 0; i < len(shape); i++ {
			strides[i] = acc
			acc *= max(shape[i], 1)
		}
		return strides
	}
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= max(shape[i], 1)
	}
	return strides
}

// Strided is the layout name for a C-order view of every other element.
const Strided = "strided"

// LayoutStrides returns byte strides for a named layout: "C" or "F" for the
// dense orders (empty means C), or Strided for a C-order view with every
// stride doubled.
func LayoutStrides(shape Shape, itemSize int, layout string) (Strides, error) {
	if !strings.EqualFold(strings.TrimSpace(layout), Strided) {
		order, err := ParseOrder(layout)
		if err != nil {
			return nil, err
		}
		if _, err := shape.Bytes(itemSize); err != nil {
			return nil, err
		}
		return ContiguousStrides(shape, itemSize, order), nil
	}
	if _, err := shape.Bytes(2 * itemSize); err != nil {
		return nil, err
	}
	strides := ContiguousStrides(shape, itemSize, C)
	for i := range strides {
		strides[i] *= 2
	}
	return strides, nil
}

// Flags describes the memory layout of an array.
type Flags struct {
	CContiguous bool
	FContiguous bool
}

// Contiguous reports whether the array is dense in either order.
func (f Flags) Contiguous() bool { return f.CContiguous || f.FContiguous }

// LayoutFlags derives contiguity the way NumPy does: dimensions of extent 1
// place no constraint on their stride, and an empty array is contiguous in
// both orders.
func LayoutFlags(shape Shape, strides Strides, itemSize int) Flags {
	if shape.NumElements() == 0 {
		return Flags{CContiguous: true, FContiguous: true}
	}
	return Flags{
		CContiguous: isDense(shape, strides, itemSize, C),
		FContiguous: isDense(shape, strides, itemSize, F),
	}
}

func isDense(shape Shape, strides Strides, itemSize int, order Order) bool {
	expected := itemSize
	check := func(i int) bool {
		if shape[i] == 1 {
			return true
		}
		if strides[i] != expected {
			return false
		}
		expected *= shape[i]
		return true
	}
	if order == F {
		for i := 0; i < len(shape); i++ {
			if !check(i) {
				return false
			}
		}
		return true
	}
	for i := len(shape) - 1; i >= 0; i-- {
		if !check(i) {
			return false
		}
	}
	return true
}

// BroadcastStrides returns strides that present an array of the given
// shape and strides as an array of shape target, using zero strides for
// broadcast dimensions. Follows NumPy broadcasting rules, but only in the
// direction of target.
func BroadcastStrides(shape Shape, strides Strides, target Shape) (Strides, error) {
	if len(shape) > len(target) {
		return nil, fmt.Errorf("%w: %v to %v", ErrShapeMismatch, shape, target)
	}
	out := make(Strides, len(target))
	lead := len(target) - len(shape)
	for i := range target {
		if i < lead {
			continue
		}
		d := shape[i-lead]
		switch {
		case d == target[i]:
			out[i] = strides[i-lead]
		case d == 1:
			out[i] = 0
		default:
			return nil, fmt.Errorf("%w: %v to %v", ErrShapeMismatch, shape, target)
		}
	}
	return out, nil
}

// extent returns the lowest and one-past-highest byte touched by an array.
// It fails when the span does not fit in an int.
func extent(shape Shape, strides Strides, offset, itemSize int) (lo, hi int, err error) {
	for _, d := range shape {
		if d == 0 {
			return offset, offset, nil
		}
	}
	lo = offset
	hi, ok := addInt(offset, itemSize)
	for i, d := range shape {
		if !ok {
			break
		}
		var span int
		if span, ok = mulInt(d-1, strides[i]); !ok {
			break
		}
		if span < 0 {
			lo, ok = addInt(lo, span)
		} else {
			hi, ok = addInt(hi, span)
		}
	}
	if !ok {
		return 0, 0, fmt.Errorf("%w: byte span of %v with strides %v overflows", ErrInvalidShape, shape, strides)
	}
	return lo, hi, nil
}

func mulInt(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt) || (b == -1 && a == math.MinInt) {
		return 0, false
	}
	c := a * b
	return c, c/b == a
}

func addInt(a, b int) (int, bool) {
	c := a + b
	return c, (b >= 0) == (c >= a)
}
