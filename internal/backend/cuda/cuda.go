//go:build cuda

// Package cuda implements the CUDA backend on top of the CUDA runtime.
// Raw and peer copies run on the device. Elementwise kernels are staged
// through host memory and executed by the host backend.
package cuda

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/samcharles93/devcopy/internal/backend/cpu"
	"github.com/samcharles93/devcopy/internal/backend/cuda/native"
	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/internal/ndarray"
)

type Backend struct {
	count int
	host  *cpu.Backend

	// mu serializes runtime calls: the current device is per OS thread.
	mu     sync.Mutex
	stream native.Stream
}

func New() (*Backend, error) {
	count, err := native.DeviceCount()
	if err != nil {
		return nil, fmt.Errorf("cuda device query failed: %w", err)
	}
	if count < 1 {
		return nil, fmt.Errorf("no cuda devices detected")
	}
	stream, err := native.NewStream()
	if err != nil {
		return nil, fmt.Errorf("cuda stream create failed: %w", err)
	}
	return &Backend{count: count, host: cpu.New(1), stream: stream}, nil
}

func (b *Backend) Name() string {
	return "cuda"
}

func (b *Backend) Devices() []device.Device {
	out := make([]device.Device, b.count)
	for i := range out {
		out[i] = device.CUDADevice(i)
	}
	return out
}

// Alloc allocates nbytes on dev. Zero-byte allocations are not backed by
// device memory.
func (b *Backend) Alloc(dev device.Device, nbytes int) (ndarray.Storage, error) {
	if err := b.check(dev); err != nil {
		return nil, err
	}
	if nbytes == 0 {
		return &Buffer{dev: dev}, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := native.SetDevice(dev.Index); err != nil {
		return nil, err
	}
	buf, err := native.AllocDevice(int64(nbytes))
	if err != nil {
		return nil, err
	}
	return &Buffer{dev: dev, buf: buf, n: nbytes}, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stream.Destroy()
}

func (b *Backend) check(dev device.Device) error {
	if dev.Kind != device.CUDA || dev.Index < 0 || dev.Index >= b.count {
		return fmt.Errorf("%w: %s (cuda backend has %d devices)", cpu.ErrUnknownDevice, dev, b.count)
	}
	return nil
}

// Buffer is device memory owned by the CUDA backend.
type Buffer struct {
	dev device.Device
	buf native.DeviceBuffer
	n   int
}

func (s *Buffer) Device() device.Device { return s.dev }
func (s *Buffer) Len() int              { return s.n }
func (s *Buffer) Bytes() []byte         { return nil }

// Free releases the device memory. The buffer must not be used afterwards.
func (s *Buffer) Free() error {
	err := s.buf.Free()
	s.buf, s.n = native.DeviceBuffer{}, 0
	return err
}
