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

func (b *Backend) Copy(ctx context.Context, src, dst *ndarray.Array) error {
	return b.staged(dst, []*ndarray.Array{src, dst}, func(h []*ndarray.Array) error {
		return b.host.Copy(ctx, h[0], h[1])
	})
}

func (b *Backend) CopyWhere(ctx context.Context, src, mask, dst *ndarray.Array) error {
	return b.staged(dst, []*ndarray.Array{src, mask, dst}, func(h []*ndarray.Array) error {
		return b.host.CopyWhere(ctx, h[0], h[1], h[2])
	})
}

// staged downloads the buffers behind arrays, runs fn on host views with
// the same layout and uploads the destination buffer again.
func (b *Backend) staged(dst *ndarray.Array, arrays []*ndarray.Array, fn func([]*ndarray.Array) error) (err error) {
	for _, a := range arrays {
		if a.Device() != dst.Device() {
			return fmt.Errorf("%w: kernel operand on %s, destination on %s", cpu.ErrDeviceMismatch, a.Device(), dst.Device())
		}
	}
	if err := b.check(dst.Device()); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := native.SetDevice(dst.Device().Index); err != nil {
		return err
	}

	hosts := make(map[ndarray.Storage]*ndarray.HostStorage, len(arrays))
	views := make([]*ndarray.Array, len(arrays))
	for i, a := range arrays {
		hs, ok := hosts[a.Storage()]
		if !ok {
			hs, err = download(a.Storage())
			if err != nil {
				return err
			}
			hosts[a.Storage()] = hs
		}
		views[i], err = ndarray.NewView(hs, a.Shape(), a.Strides(), a.Offset(), a.DType())
		if err != nil {
			return err
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = cudaExecutionError(rec)
		}
	}()
	if err := fn(views); err != nil {
		return err
	}
	return upload(dst.Storage(), hosts[dst.Storage()])
}

func download(s ndarray.Storage) (*ndarray.HostStorage, error) {
	buf, ok := s.(*Buffer)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not cuda memory", cpu.ErrDeviceMismatch, s)
	}
	hs := ndarray.NewHostStorage(device.CPU0, buf.n)
	if buf.n == 0 {
		return hs, nil
	}
	if err := native.MemcpyD2H(unsafe.Pointer(&hs.Bytes()[0]), buf.buf, int64(buf.n)); err != nil {
		return nil, err
	}
	return hs, nil
}

func upload(s ndarray.Storage, hs *ndarray.HostStorage) error {
	buf := s.(*Buffer)
	if buf.n == 0 {
		return nil
	}
	return native.MemcpyH2D(buf.buf, unsafe.Pointer(&hs.Bytes()[0]), int64(buf.n))
}
