//go:build cuda

package cuda

import (
	"context"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/samcharles93/devcopy/internal/backend/cpu"
	"github.com/samcharles93/devcopy/internal/backend/cuda/native"
	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/internal/ndarray"
)

// CopyFrom copies nbytes within one CUDA device.
func (b *Backend) CopyFrom(_ context.Context, dst, src ndarray.Pointer, nbytes int) error {
	if dst.Device() != src.Device() {
		return fmt.Errorf("%w: copy from %s to %s needs a peer copy", cpu.ErrDeviceMismatch, src.Device(), dst.Device())
	}
	d, err := b.span(dst, nbytes)
	if err != nil {
		return err
	}
	s, err := b.span(src, nbytes)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := native.SetDevice(dst.Device().Index); err != nil {
		return err
	}
	return native.MemcpyD2D(d, s, int64(nbytes))
}

// CopyPeerFrom copies nbytes between devices. Either side may be host
// memory, in which case the transfer is a plain upload or download.
func (b *Backend) CopyPeerFrom(_ context.Context, dst, src ndarray.Pointer, nbytes int) error {
	if dst.Device() == src.Device() {
		return fmt.Errorf("%w: peer copy within %s", cpu.ErrDeviceMismatch, dst.Device())
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	switch {
	case dst.Device().Kind == device.CPU:
		host, err := dst.Span(nbytes)
		if err != nil {
			return err
		}
		s, err := b.span(src, nbytes)
		if err != nil {
			return err
		}
		if nbytes == 0 {
			return nil
		}
		if err := native.SetDevice(src.Device().Index); err != nil {
			return err
		}
		return native.MemcpyD2H(unsafe.Pointer(&host[0]), s, int64(nbytes))
	case src.Device().Kind == device.CPU:
		host, err := src.Span(nbytes)
		if err != nil {
			return err
		}
		d, err := b.span(dst, nbytes)
		if err != nil {
			return err
		}
		if nbytes == 0 {
			return nil
		}
		if err := native.SetDevice(dst.Device().Index); err != nil {
			return err
		}
		return native.MemcpyH2D(d, unsafe.Pointer(&host[0]), int64(nbytes))
	}

	d, err := b.span(dst, nbytes)
	if err != nil {
		return err
	}
	s, err := b.span(src, nbytes)
	if err != nil {
		return err
	}
	if err := native.MemcpyPeer(d, dst.Device().Index, s, src.Device().Index, int64(nbytes), b.stream); err != nil {
		return err
	}
	return b.stream.Synchronize()
}

func (b *Backend) span(p ndarray.Pointer, nbytes int) (native.DeviceBuffer, error) {
	if p.Storage == nil {
		return native.DeviceBuffer{}, ndarray.ErrNoStorage
	}
	if err := b.check(p.Device()); err != nil {
		return native.DeviceBuffer{}, err
	}
	buf, ok := p.Storage.(*Buffer)
	if !ok {
		return native.DeviceBuffer{}, fmt.Errorf("%w: %T is not cuda memory", cpu.ErrDeviceMismatch, p.Storage)
	}
	if nbytes < 0 || p.Offset < 0 || p.Offset+nbytes > buf.n {
		return native.DeviceBuffer{}, fmt.Errorf("%w: [%d, %d) of %d bytes", ndarray.ErrOutOfRange, p.Offset, p.Offset+nbytes, buf.n)
	}
	if buf.n == 0 {
		return buf.buf, nil
	}
	return buf.buf.Add(p.Offset), nil
}
