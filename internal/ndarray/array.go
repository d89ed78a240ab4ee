// Package ndarray provides the n-dimensional array container: a typed,
// strided view over device storage.
package ndarray

import (
	"fmt"

	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/pkg/dtype"
)

// Array is an n-dimensional view over a Storage. Strides and offset are in
// bytes. Views share storage with the array they were taken from.
type Array struct {
	storage Storage
	shape   Shape
	strides Strides
	offset  int
	dtype   dtype.DType
	flags   Flags
}

// New creates a dense array of the given order over storage, starting at
// byte 0.
func New(storage Storage, shape Shape, dt dtype.DType, order Order) (*Array, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("invalid dtype %v", dt)
	}
	if _, err := shape.Bytes(dt.Size()); err != nil {
		return nil, err
	}
	return NewView(storage, shape, ContiguousStrides(shape, dt.Size(), order), 0, dt)
}

// NewView creates an array with explicit strides and offset. The storage
// must cover every byte the view can address.
func NewView(storage Storage, shape Shape, strides Strides, offset int, dt dtype.DType) (*Array, error) {
	if storage == nil {
		return nil, ErrNoStorage
	}
	if !dt.Valid() {
		return nil, fmt.Errorf("invalid dtype %v", dt)
	}
	if err := shape.validate(); err != nil {
		return nil, err
	}
	if len(strides) != len(shape) {
		return nil, fmt.Errorf("%w: %d strides for %d dimensions", ErrInvalidShape, len(strides), len(shape))
	}
	lo, hi, err := extent(shape, strides, offset, dt.Size())
	if err != nil {
		return nil, err
	}
	if lo < 0 || hi > storage.Len() {
		return nil, fmt.Errorf("%w: view spans [%d, %d), storage has %d bytes", ErrStorageTooSmall, lo, hi, storage.Len())
	}
	return newArray(storage, shape.Clone(), strides.Clone(), offset, dt), nil
}

func newArray(storage Storage, shape Shape, strides Strides, offset int, dt dtype.DType) *Array {
	return &Array{
		storage: storage,
		shape:   shape,
		strides: strides,
		offset:  offset,
		dtype:   dt,
		flags:   LayoutFlags(shape, strides, dt.Size()),
	}
}

// Describe returns an array with the given layout on dev that has no
// backing memory. It can be planned but not copied.
func Describe(dev device.Device, shape Shape, strides Strides, dt dtype.DType) (*Array, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("invalid dtype %v", dt)
	}
	if _, err := shape.Bytes(dt.Size()); err != nil {
		return nil, err
	}
	if strides == nil {
		strides = ContiguousStrides(shape, dt.Size(), C)
	}
	if len(strides) != len(shape) {
		return nil, fmt.Errorf("%w: %d strides for %d dimensions", ErrInvalidShape, len(strides), len(shape))
	}
	_, hi, err := extent(shape, strides, 0, dt.Size())
	if err != nil {
		return nil, err
	}
	return NewView(detached{dev: dev, n: hi}, shape, strides, 0, dt)
}

func (a *Array) Shape() Shape          { return a.shape }
func (a *Array) Strides() Strides      { return a.strides }
func (a *Array) Offset() int           { return a.offset }
func (a *Array) DType() dtype.DType    { return a.dtype }
func (a *Array) NDim() int             { return len(a.shape) }
func (a *Array) Size() int             { return a.shape.NumElements() }
func (a *Array) ItemSize() int         { return a.dtype.Size() }
func (a *Array) NBytes() int           { return a.Size() * a.dtype.Size() }
func (a *Array) Flags() Flags          { return a.flags }
func (a *Array) Storage() Storage      { return a.storage }
func (a *Array) Device() device.Device { return a.storage.Device() }

// Data points at the array's first element.
func (a *Array) Data() Pointer {
	return Pointer{Storage: a.storage, Offset: a.offset}
}

// SharesStorage reports whether a and b are views of the same buffer.
func (a *Array) SharesStorage(b *Array) bool {
	return a.storage == b.storage
}

// Transpose returns a view with permuted axes. With no axes the order of
// all axes is reversed.
func (a *Array) Transpose(axes ...int) (*Array, error) {
	nd := len(a.shape)
	if len(axes) == 0 {
		axes = make([]int, nd)
		for i := range axes {
			axes[i] = nd - 1 - i
		}
	}
	if len(axes) != nd {
		return nil, fmt.Errorf("axes length %d != ndim %d", len(axes), nd)
	}
	seen := make([]bool, nd)
	shape := make(Shape, nd)
	strides := make(Strides, nd)
	for i, ax := range axes {
		if ax < 0 || ax >= nd {
			return nil, fmt.Errorf("axis %d out of range for %d dimensions", ax, nd)
		}
		if seen[ax] {
			return nil, fmt.Errorf("duplicate axis %d", ax)
		}
		seen[ax] = true
		shape[i] = a.shape[ax]
		strides[i] = a.strides[ax]
	}
	return newArray(a.storage, shape, strides, a.offset, a.dtype), nil
}

// T reverses the axes.
func (a *Array) T() (*Array, error) { return a.Transpose() }

// Reshape returns a view with a new shape. The array must be C-contiguous.
func (a *Array) Reshape(shape Shape) (*Array, error) {
	if err := shape.validate(); err != nil {
		return nil, err
	}
	if !a.flags.CContiguous {
		return nil, fmt.Errorf("reshape: %w", ErrNotContiguous)
	}
	if shape.NumElements() != a.Size() {
		return nil, fmt.Errorf("%w: cannot reshape %d elements into %v", ErrInvalidShape, a.Size(), shape)
	}
	return newArray(a.storage, shape.Clone(), ContiguousStrides(shape, a.dtype.Size(), C), a.offset, a.dtype), nil
}

// Slice returns a view selecting start:stop:step along axis. Negative
// start and stop count from the end; step must be positive.
func (a *Array) Slice(axis, start, stop, step int) (*Array, error) {
	if axis < 0 || axis >= len(a.shape) {
		return nil, fmt.Errorf("axis %d out of range for %d dimensions", axis, len(a.shape))
	}
	if step <= 0 {
		return nil, fmt.Errorf("slice step must be positive, got %d", step)
	}
	n := a.shape[axis]
	clamp := func(i int) int {
		if i < 0 {
			i += n
		}
		return min(max(i, 0), n)
	}
	start, stop = clamp(start), clamp(stop)
	count := 0
	if stop > start {
		count = (stop - start + step - 1) / step
	}

	shape := a.shape.Clone()
	strides := a.strides.Clone()
	shape[axis] = count
	offset := a.offset
	if count > 0 {
		offset += start * a.strides[axis]
	}
	strides[axis] *= step
	return newArray(a.storage, shape, strides, offset, a.dtype), nil
}

func (a *Array) String() string {
	return fmt.Sprintf("Array(shape=%v, dtype=%s, device=%s, c=%t, f=%t)",
		a.shape, a.dtype, a.Device(), a.flags.CContiguous, a.flags.FContiguous)
}
