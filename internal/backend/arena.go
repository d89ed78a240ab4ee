package backend

import (
	"errors"
	"fmt"
	"io"

	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/internal/ndarray"
	"github.com/samcharles93/devcopy/pkg/dtype"
)

// Arena tracks arrays allocated on a backend so they can be freed together
// once a request or command is done with them. It is not safe for
// concurrent use.
type Arena struct {
	b      Backend
	arrays []*ndarray.Array
}

func NewArena(b Backend) *Arena {
	return &Arena{b: b}
}

// Alloc creates a zeroed dense array on dev and tracks it.
func (a *Arena) Alloc(dev device.Device, shape ndarray.Shape, dt dtype.DType, order ndarray.Order) (*ndarray.Array, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("invalid dtype %v", dt)
	}
	nbytes, err := shape.Bytes(dt.Size())
	if err != nil {
		return nil, err
	}
	storage, err := a.b.Alloc(dev, nbytes)
	if err != nil {
		return nil, err
	}
	arr, err := ndarray.New(storage, shape, dt, order)
	if err != nil {
		if r, ok := storage.(ndarray.Releaser); ok {
			err = errors.Join(err, r.Free())
		}
		return nil, err
	}
	a.arrays = append(a.arrays, arr)
	return arr, nil
}

// Len returns the number of arrays still held.
func (a *Arena) Len() int { return len(a.arrays) }

// Release frees every tracked array. The arena can be reused afterwards.
func (a *Arena) Release() error {
	err := ndarray.Release(a.arrays...)
	a.arrays = nil
	return err
}

// Close releases backend resources when b holds any.
func Close(b Backend) error {
	if c, ok := b.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
