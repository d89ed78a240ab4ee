package ndarray

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/pkg/dtype"
)

// Element is the set of Go types with a matching dtype.
type Element interface {
	bool | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 |
		float32 | float64 | complex64 | complex128
}

// DTypeOf returns the dtype matching T.
func DTypeOf[T Element]() dtype.DType {
	var zero T
	switch any(zero).(type) {
	case bool:
		return dtype.Bool
	case int8:
		return dtype.Int8
	case int16:
		return dtype.Int16
	case int32:
		return dtype.Int32
	case int64:
		return dtype.Int64
	case uint8:
		return dtype.Uint8
	case uint16:
		return dtype.Uint16
	case uint32:
		return dtype.Uint32
	case uint64:
		return dtype.Uint64
	case float32:
		return dtype.Float32
	case float64:
		return dtype.Float64
	case complex64:
		return dtype.Complex64
	case complex128:
		return dtype.Complex128
	}
	return dtype.Invalid
}

// Zeros allocates a zero-filled host array on dev.
func Zeros(dev device.Device, shape Shape, dt dtype.DType, order Order) (*Array, error) {
	nbytes, err := shape.Bytes(dt.Size())
	if err != nil {
		return nil, err
	}
	return New(NewHostStorage(dev, nbytes), shape, dt, order)
}

// FromSlice creates a host array on dev holding data, read in row-major
// order, laid out in the given memory order.
func FromSlice[T Element](dev device.Device, data []T, shape Shape, order Order) (*Array, error) {
	if err := shape.validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("%w: data length %d != shape elements %d", ErrInvalidShape, len(data), shape.NumElements())
	}
	dt := DTypeOf[T]()
	a, err := Zeros(dev, shape, dt, order)
	if err != nil {
		return nil, err
	}
	buf := a.storage.Bytes()
	i := 0
	Iterate(a.shape, []int{a.offset}, []Strides{a.strides}, func(off []int) {
		putElement(buf[off[0]:], data[i])
		i++
	})
	return a, nil
}

// ToSlice reads a host array in row-major order. T must match the array's
// dtype.
func ToSlice[T Element](a *Array) ([]T, error) {
	if want := DTypeOf[T](); want != a.dtype {
		return nil, fmt.Errorf("%w: array is %v, requested %v", ErrDTypeMismatch, a.dtype, want)
	}
	buf := a.storage.Bytes()
	if buf == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotHostMemory, a.Device())
	}
	out := make([]T, 0, a.Size())
	Iterate(a.shape, []int{a.offset}, []Strides{a.strides}, func(off []int) {
		out = append(out, getElement[T](buf[off[0]:]))
	})
	return out, nil
}

// Scalars reads a host array of any dtype in row-major order.
func Scalars(a *Array) ([]dtype.Scalar, error) {
	buf := a.storage.Bytes()
	if buf == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotHostMemory, a.Device())
	}
	out := make([]dtype.Scalar, 0, a.Size())
	Iterate(a.shape, []int{a.offset}, []Strides{a.strides}, func(off []int) {
		out = append(out, dtype.Load(a.dtype, buf[off[0]:]))
	})
	return out, nil
}

// SetScalars writes values into a host array in row-major order,
// converting each to the array's dtype.
func SetScalars(a *Array, values []dtype.Scalar) error {
	buf := a.storage.Bytes()
	if buf == nil {
		return fmt.Errorf("%w: %s", ErrNotHostMemory, a.Device())
	}
	if len(values) != a.Size() {
		return fmt.Errorf("%w: %d values for %d elements", ErrInvalidShape, len(values), a.Size())
	}
	item := a.dtype.Size()
	i := 0
	Iterate(a.shape, []int{a.offset}, []Strides{a.strides}, func(off []int) {
		dtype.Store(a.dtype, buf[off[0]:off[0]+item], values[i])
		i++
	})
	return nil
}

// ContiguousBytes returns the elements of a host array packed in row-major
// order. The result never aliases the array's storage.
func ContiguousBytes(a *Array) ([]byte, error) {
	buf := a.storage.Bytes()
	if buf == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotHostMemory, a.Device())
	}
	item := a.dtype.Size()
	out := make([]byte, a.NBytes())
	if a.flags.CContiguous {
		copy(out, buf[a.offset:a.offset+len(out)])
		return out, nil
	}
	pos := 0
	Iterate(a.shape, []int{a.offset}, []Strides{a.strides}, func(off []int) {
		copy(out[pos:pos+item], buf[off[0]:off[0]+item])
		pos += item
	})
	return out, nil
}

// Clone copies a host array into fresh C-ordered storage on the same device.
func Clone(a *Array) (*Array, error) {
	b, err := ContiguousBytes(a)
	if err != nil {
		return nil, err
	}
	return New(WrapHostStorage(a.Device(), b), a.shape.Clone(), a.dtype, C)
}

func putElement[T Element](b []byte, v T) {
	le := binary.LittleEndian
	switch x := any(v).(type) {
	case bool:
		if x {
			b[0] = 1
		} else {
			b[0] = 0
		}
	case int8:
		b[0] = byte(x)
	case int16:
		le.PutUint16(b, uint16(x))
	case int32:
		le.PutUint32(b, uint32(x))
	case int64:
		le.PutUint64(b, uint64(x))
	case uint8:
		b[0] = x
	case uint16:
		le.PutUint16(b, x)
	case uint32:
		le.PutUint32(b, x)
	case uint64:
		le.PutUint64(b, x)
	case float32:
		le.PutUint32(b, math.Float32bits(x))
	case float64:
		le.PutUint64(b, math.Float64bits(x))
	case complex64:
		le.PutUint32(b, math.Float32bits(real(x)))
		le.PutUint32(b[4:], math.Float32bits(imag(x)))
	case complex128:
		le.PutUint64(b, math.Float64bits(real(x)))
		le.PutUint64(b[8:], math.Float64bits(imag(x)))
	}
}

func getElement[T Element](b []byte) T {
	le := binary.LittleEndian
	var out T
	switch p := any(&out).(type) {
	case *bool:
		*p = b[0] != 0
	case *int8:
		*p = int8(b[0])
	case *int16:
		*p = int16(le.Uint16(b))
	case *int32:
		*p = int32(le.Uint32(b))
	case *int64:
		*p = int64(le.Uint64(b))
	case *uint8:
		*p = b[0]
	case *uint16:
		*p = le.Uint16(b)
	case *uint32:
		*p = le.Uint32(b)
	case *uint64:
		*p = le.Uint64(b)
	case *float32:
		*p = math.Float32frombits(le.Uint32(b))
	case *float64:
		*p = math.Float64frombits(le.Uint64(b))
	case *complex64:
		*p = complex(math.Float32frombits(le.Uint32(b)), math.Float32frombits(le.Uint32(b[4:])))
	case *complex128:
		*p = complex(math.Float64frombits(le.Uint64(b)), math.Float64frombits(le.Uint64(b[8:])))
	}
	return out
}
