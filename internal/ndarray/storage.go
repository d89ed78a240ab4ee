package ndarray

import (
	"errors"
	"fmt"

	"github.com/samcharles93/devcopy/internal/device"
)

// Storage is a raw memory buffer on a device.
type Storage interface {
	// Device returns which device this storage lives on.
	Device() device.Device

	// Len returns the buffer size in bytes.
	Len() int

	// Bytes returns the buffer contents for host memory, nil otherwise.
	Bytes() []byte
}

// Releaser is implemented by storage that holds memory outside the Go heap
// and must be freed explicitly.
type Releaser interface {
	Free() error
}

// Release frees the storage of each array that implements Releaser. Arrays
// sharing a storage free it once. Nil arrays are skipped.
func Release(arrays ...*Array) error {
	seen := make(map[Storage]struct{}, len(arrays))
	var errs []error
	for _, a := range arrays {
		if a == nil || a.storage == nil {
			continue
		}
		if _, ok := seen[a.storage]; ok {
			continue
		}
		seen[a.storage] = struct{}{}
		if r, ok := a.storage.(Releaser); ok {
			if err := r.Free(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Pointer addresses a byte offset inside a Storage.
type Pointer struct {
	Storage Storage
	Offset  int
}

func (p Pointer) Device() device.Device { return p.Storage.Device() }

// Span returns the n host bytes starting at p.
func (p Pointer) Span(n int) ([]byte, error) {
	if p.Storage == nil {
		return nil, ErrNoStorage
	}
	b := p.Storage.Bytes()
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotHostMemory, p.Device())
	}
	if n < 0 || p.Offset < 0 || p.Offset+n > len(b) {
		return nil, fmt.Errorf("%w: [%d, %d) of %d bytes", ErrOutOfRange, p.Offset, p.Offset+n, len(b))
	}
	return b[p.Offset : p.Offset+n], nil
}

// HostStorage is device memory backed by a Go byte slice. Several logical
// devices may be modelled with host storage, each tagged with its own
// device value.
type HostStorage struct {
	dev  device.Device
	data []byte
}

// NewHostStorage allocates n zeroed bytes tagged with dev.
func NewHostStorage(dev device.Device, n int) *HostStorage {
	return &HostStorage{dev: dev, data: make([]byte, n)}
}

// WrapHostStorage uses b directly as the buffer of dev.
func WrapHostStorage(dev device.Device, b []byte) *HostStorage {
	return &HostStorage{dev: dev, data: b}
}

func (s *HostStorage) Device() device.Device { return s.dev }
func (s *HostStorage) Len() int              { return len(s.data) }
func (s *HostStorage) Bytes() []byte         { return s.data }

// detached describes memory without backing it, for planning copies of
// arrays that do not exist in this process.
type detached struct {
	dev device.Device
	n   int
}

func (s detached) Device() device.Device { return s.dev }
func (s detached) Len() int              { return s.n }
func (s detached) Bytes() []byte         { return nil }
