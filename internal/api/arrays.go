package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/samcharles93/devcopy/internal/backend"
	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/internal/ndarray"
	"github.com/samcharles93/devcopy/pkg/dtype"
)

func parseDevice(name string) (device.Device, error) {
	if strings.TrimSpace(name) == "" {
		return device.CPU0, nil
	}
	d, err := device.Parse(name)
	if err != nil {
		return device.Device{}, newInvalidRequest(err.Error())
	}
	return d, nil
}

func parseDType(name string) (dtype.DType, error) {
	dt, err := dtype.Parse(name)
	if err != nil {
		return dtype.Invalid, newInvalidRequest(err.Error())
	}
	return dt, nil
}

func parseShape(dims []int) (ndarray.Shape, error) {
	for _, d := range dims {
		if d < 0 {
			return nil, newInvalidRequest(fmt.Sprintf("negative dimension in %v", dims))
		}
	}
	return ndarray.Shape(dims).Clone(), nil
}

// describe turns a layout description into a memoryless array.
func describe(d ArrayDesc) (*ndarray.Array, error) {
	dev, err := parseDevice(d.Device)
	if err != nil {
		return nil, err
	}
	dt, err := parseDType(d.DType)
	if err != nil {
		return nil, err
	}
	shape, err := parseShape(d.Shape)
	if err != nil {
		return nil, err
	}

	var strides ndarray.Strides
	switch {
	case len(d.Strides) > 0:
		if len(d.Strides) != len(shape) {
			return nil, newInvalidRequest(fmt.Sprintf("%d strides for %d dimensions", len(d.Strides), len(shape)))
		}
		strides = ndarray.Strides(d.Strides).Clone()
	default:
		strides, err = ndarray.LayoutStrides(shape, dt.Size(), d.Order)
		if err != nil {
			return nil, newInvalidRequest(err.Error())
		}
	}

	a, err := ndarray.Describe(dev, shape, strides, dt)
	if err != nil {
		return nil, newInvalidRequest(err.Error())
	}
	return a, nil
}

// materialize allocates d in arena and fills it with d's values.
func materialize(ctx context.Context, arena *backend.Arena, b backend.Backend, d ArrayData) (*ndarray.Array, error) {
	dev, err := parseDevice(d.Device)
	if err != nil {
		return nil, err
	}
	if _, err := backend.Device(b, dev); err != nil {
		return nil, newInvalidRequest(err.Error())
	}
	dt, err := parseDType(d.DType)
	if err != nil {
		return nil, err
	}
	shape, err := parseShape(d.Shape)
	if err != nil {
		return nil, err
	}
	if _, err := shape.Bytes(dt.Size()); err != nil {
		return nil, newInvalidRequest(err.Error())
	}
	order, err := ndarray.ParseOrder(d.Order)
	if err != nil {
		return nil, newInvalidRequest(err.Error())
	}
	if len(d.Values) != shape.NumElements() {
		return nil, newInvalidRequest(fmt.Sprintf("%d values for shape %v", len(d.Values), shape))
	}

	a, err := arena.Alloc(dev, shape, dt, order)
	if err != nil {
		return nil, err
	}
	if a.Storage().Bytes() != nil {
		return a, ndarray.SetScalars(a, d.Values)
	}

	host, err := ndarray.Zeros(device.CPU0, shape, dt, order)
	if err != nil {
		return nil, err
	}
	if err := ndarray.SetScalars(host, d.Values); err != nil {
		return nil, err
	}
	if err := b.CopyPeerFrom(ctx, a.Data(), host.Data(), a.NBytes()); err != nil {
		return nil, err
	}
	return a, nil
}

// readBack returns the values of a dense array allocated by materialize.
func readBack(ctx context.Context, b backend.Backend, a *ndarray.Array, order ndarray.Order) (Values, error) {
	if a.Storage().Bytes() != nil {
		return ndarray.Scalars(a)
	}
	host, err := ndarray.Zeros(device.CPU0, a.Shape(), a.DType(), order)
	if err != nil {
		return nil, err
	}
	if err := b.CopyPeerFrom(ctx, host.Data(), a.Data(), a.NBytes()); err != nil {
		return nil, err
	}
	return ndarray.Scalars(host)
}
