// Package cpu implements the host backend. It models any number of logical
// devices in Go memory and runs the copy kernels on the calling goroutine.
package cpu

import (
	"context"
	"errors"
	"fmt"

	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/internal/ndarray"
)

var (
	// ErrDeviceMismatch is returned when a buffer is on the wrong device
	// for the requested operation.
	ErrDeviceMismatch = errors.New("device mismatch")

	// ErrUnknownDevice is returned for devices the backend does not own.
	ErrUnknownDevice = errors.New("unknown device")
)

// Backend is the host backend. Its device set is fixed at construction.
type Backend struct {
	devices int
}

// New creates a host backend exposing devices cpu:0 to cpu:devices-1.
// At least one device is always present.
func New(devices int) *Backend {
	return &Backend{devices: max(devices, 1)}
}

func (b *Backend) Name() string {
	return "cpu"
}

// Devices lists the logical host devices.
func (b *Backend) Devices() []device.Device {
	out := make([]device.Device, b.devices)
	for i := range out {
		out[i] = device.Host(i)
	}
	return out
}

func (b *Backend) owns(d device.Device) bool {
	return d.Kind == device.CPU && d.Index >= 0 && d.Index < b.devices
}

func (b *Backend) check(d device.Device) error {
	if !b.owns(d) {
		return fmt.Errorf("%w: %s (host backend has %d devices)", ErrUnknownDevice, d, b.devices)
	}
	return nil
}

// Alloc returns nbytes of zeroed memory on dev.
func (b *Backend) Alloc(dev device.Device, nbytes int) (ndarray.Storage, error) {
	if err := b.check(dev); err != nil {
		return nil, err
	}
	if nbytes < 0 {
		return nil, fmt.Errorf("alloc size must be >= 0, got %d", nbytes)
	}
	return ndarray.NewHostStorage(dev, nbytes), nil
}

// CopyFrom copies nbytes within one device.
func (b *Backend) CopyFrom(_ context.Context, dst, src ndarray.Pointer, nbytes int) error {
	if dst.Storage == nil || src.Storage == nil {
		return ndarray.ErrNoStorage
	}
	if dst.Device() != src.Device() {
		return fmt.Errorf("%w: copy from %s to %s needs a peer copy", ErrDeviceMismatch, src.Device(), dst.Device())
	}
	return b.move(dst, src, nbytes)
}

// CopyPeerFrom copies nbytes from src's device to a different device.
func (b *Backend) CopyPeerFrom(_ context.Context, dst, src ndarray.Pointer, nbytes int) error {
	if dst.Storage == nil || src.Storage == nil {
		return ndarray.ErrNoStorage
	}
	if dst.Device() == src.Device() {
		return fmt.Errorf("%w: peer copy within %s", ErrDeviceMismatch, dst.Device())
	}
	return b.move(dst, src, nbytes)
}

func (b *Backend) move(dst, src ndarray.Pointer, nbytes int) error {
	if err := b.check(dst.Device()); err != nil {
		return err
	}
	if err := b.check(src.Device()); err != nil {
		return err
	}
	from, err := src.Span(nbytes)
	if err != nil {
		return fmt.Errorf("copy source: %w", err)
	}
	to, err := dst.Span(nbytes)
	if err != nil {
		return fmt.Errorf("copy destination: %w", err)
	}
	copy(to, from)
	return nil
}
