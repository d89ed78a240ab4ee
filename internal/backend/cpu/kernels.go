package cpu

import (
	"context"
	"fmt"

	"github.com/samcharles93/devcopy/internal/ndarray"
	"github.com/samcharles93/devcopy/pkg/dtype"
)

// Copy writes src into dst element by element. src is broadcast to dst's
// shape and each element is converted to dst's dtype.
func (b *Backend) Copy(_ context.Context, src, dst *ndarray.Array) error {
	if err := b.sameDevice(dst, src); err != nil {
		return err
	}
	src, err := stage(src, dst)
	if err != nil {
		return err
	}
	srcStrides, err := ndarray.BroadcastStrides(src.Shape(), src.Strides(), dst.Shape())
	if err != nil {
		return err
	}

	out, in := dst.Storage().Bytes(), src.Storage().Bytes()
	dt, st := dst.DType(), src.DType()
	ds, ss := dt.Size(), st.Size()
	ndarray.Iterate(dst.Shape(),
		[]int{dst.Offset(), src.Offset()},
		[]ndarray.Strides{dst.Strides(), srcStrides},
		func(off []int) {
			dtype.Convert(dt, out[off[0]:off[0]+ds], st, in[off[1]:off[1]+ss])
		})
	return nil
}

// CopyWhere writes src into dst wherever mask is true. src and mask are
// broadcast to dst's shape.
func (b *Backend) CopyWhere(_ context.Context, src, mask, dst *ndarray.Array) error {
	if mask.DType() != dtype.Bool {
		return fmt.Errorf("mask must be bool, got %s", mask.DType())
	}
	if err := b.sameDevice(dst, src, mask); err != nil {
		return err
	}
	src, err := stage(src, dst)
	if err != nil {
		return err
	}
	mask, err = stage(mask, dst)
	if err != nil {
		return err
	}
	srcStrides, err := ndarray.BroadcastStrides(src.Shape(), src.Strides(), dst.Shape())
	if err != nil {
		return err
	}
	maskStrides, err := ndarray.BroadcastStrides(mask.Shape(), mask.Strides(), dst.Shape())
	if err != nil {
		return err
	}

	out, in, m := dst.Storage().Bytes(), src.Storage().Bytes(), mask.Storage().Bytes()
	dt, st := dst.DType(), src.DType()
	ds, ss := dt.Size(), st.Size()
	ndarray.Iterate(dst.Shape(),
		[]int{dst.Offset(), src.Offset(), mask.Offset()},
		[]ndarray.Strides{dst.Strides(), srcStrides, maskStrides},
		func(off []int) {
			if m[off[2]] == 0 {
				return
			}
			dtype.Convert(dt, out[off[0]:off[0]+ds], st, in[off[1]:off[1]+ss])
		})
	return nil
}

func (b *Backend) sameDevice(dst *ndarray.Array, others ...*ndarray.Array) error {
	if err := b.check(dst.Device()); err != nil {
		return err
	}
	if dst.Storage().Bytes() == nil {
		return fmt.Errorf("%w: %s", ndarray.ErrNotHostMemory, dst.Device())
	}
	for _, a := range others {
		if a.Device() != dst.Device() {
			return fmt.Errorf("%w: kernel operand on %s, destination on %s", ErrDeviceMismatch, a.Device(), dst.Device())
		}
		if a.Storage().Bytes() == nil {
			return fmt.Errorf("%w: %s", ndarray.ErrNotHostMemory, a.Device())
		}
	}
	return nil
}

// stage returns a private copy of a when it aliases dst's storage, so the
// kernel never reads an element it has already overwritten.
func stage(a, dst *ndarray.Array) (*ndarray.Array, error) {
	if !a.SharesStorage(dst) {
		return a, nil
	}
	return ndarray.Clone(a)
}
