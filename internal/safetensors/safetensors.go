// Package safetensors reads and writes arrays in the safetensors format: an
// 8-byte little-endian header length, a JSON header and the raw data.
package safetensors

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/goccy/go-json"
	"golang.org/x/sys/unix"

	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/internal/ndarray"
	"github.com/samcharles93/devcopy/pkg/dtype"
)

const metadataKey = "__metadata__"

// maxHeaderSize bounds the JSON header, as the reference implementation does.
const maxHeaderSize = 100 << 20

var (
	ErrCorruptFile     = errors.New("corrupt safetensors file")
	ErrTensorNotFound  = errors.New("tensor not found")
	ErrUnsupportedType = errors.New("unsupported dtype")
)

type TensorInfo struct {
	Name string
	// DTypeName is the dtype as written in the file.
	DTypeName string
	// DType is Invalid when DTypeName has no devcopy equivalent.
	DType dtype.DType
	Shape ndarray.Shape
	Start int64
	End   int64
}

// NBytes is the size of the tensor data.
func (t TensorInfo) NBytes() int64 { return t.End - t.Start }

type File struct {
	Path      string
	Data      []byte
	DataStart int64
	Tensors   map[string]TensorInfo
	Metadata  map[string]string
	mmapped   bool
}

type tensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

// Open maps a safetensors file read-only and validates its header.
// If mmap is unavailable, it falls back to reading the whole file.
// The returned file must be closed to release any mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < 8 || size64 > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrCorruptFile, path, size64)
	}
	size := int(size64)

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		sf, parseErr := parse(path, data, true)
		if parseErr != nil {
			_ = unix.Munmap(data)
			return nil, parseErr
		}
		return sf, nil
	}

	data = make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, size64), data); err != nil {
		return nil, err
	}
	return parse(path, data, false)
}

func parse(path string, data []byte, mmapped bool) (*File, error) {
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > maxHeaderSize || headerLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("%w: header length %d", ErrCorruptFile, headerLen)
	}
	dataStart := 8 + int64(headerLen)
	dataLen := int64(len(data)) - dataStart

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data[8:dataStart], &raw); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorruptFile, err)
	}

	sf := &File{
		Path:      path,
		Data:      data,
		DataStart: dataStart,
		Tensors:   make(map[string]TensorInfo, len(raw)),
		mmapped:   mmapped,
	}
	if msg, ok := raw[metadataKey]; ok {
		if err := json.Unmarshal(msg, &sf.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata: %v", ErrCorruptFile, err)
		}
		delete(raw, metadataKey)
	}

	for name, msg := range raw {
		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("parse tensor %s: %w", name, err)
		}
		info, err := tensorInfo(name, th, dataLen)
		if err != nil {
			return nil, err
		}
		sf.Tensors[name] = info
	}
	return sf, nil
}

func tensorInfo(name string, th tensorHeader, dataLen int64) (TensorInfo, error) {
	if len(th.DataOffsets) != 2 {
		return TensorInfo{}, fmt.Errorf("%w: tensor %s: invalid data_offsets", ErrCorruptFile, name)
	}
	start, end := th.DataOffsets[0], th.DataOffsets[1]
	if start < 0 || end < start || end > dataLen {
		return TensorInfo{}, fmt.Errorf("%w: tensor %s: offsets [%d, %d) outside %d data bytes", ErrCorruptFile, name, start, end, dataLen)
	}
	shape := ndarray.Shape(th.Shape)
	if _, err := shape.Bytes(1); err != nil {
		return TensorInfo{}, fmt.Errorf("%w: tensor %s: %v", ErrCorruptFile, name, err)
	}
	info := TensorInfo{
		Name:      name,
		DTypeName: th.DType,
		Shape:     shape,
		Start:     start,
		End:       end,
	}
	if dt, err := dtype.Parse(th.DType); err == nil {
		info.DType = dt
		want, err := shape.Bytes(dt.Size())
		if err != nil {
			return TensorInfo{}, fmt.Errorf("%w: tensor %s: %v", ErrCorruptFile, name, err)
		}
		if int64(want) != end-start {
			return TensorInfo{}, fmt.Errorf("%w: tensor %s: %s%v needs %d bytes, has %d", ErrCorruptFile, name, th.DType, shape, want, end-start)
		}
	}
	return info, nil
}

// Tensor returns the header entry for name.
func (f *File) Tensor(name string) (TensorInfo, bool) {
	t, ok := f.Tensors[name]
	return t, ok
}

// Names lists the tensors in the file in data order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Tensors))
	for name := range f.Tensors {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(f.Tensors[a].Start, f.Tensors[b].Start); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return names
}

// ReadTensor returns the raw bytes of a tensor. The slice aliases the file
// mapping and is only valid until Close.
func (f *File) ReadTensor(name string) ([]byte, TensorInfo, error) {
	t, ok := f.Tensors[name]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	return f.Data[f.DataStart+t.Start : f.DataStart+t.End], t, nil
}

// Array copies a tensor into a new C-ordered host array on dev.
func (f *File) Array(name string, dev device.Device) (*ndarray.Array, error) {
	raw, info, err := f.ReadTensor(name)
	if err != nil {
		return nil, err
	}
	if !info.DType.Valid() {
		return nil, fmt.Errorf("%w: tensor %s has dtype %s", ErrUnsupportedType, name, info.DTypeName)
	}
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return ndarray.New(ndarray.WrapHostStorage(dev, buf), info.Shape.Clone(), info.DType, ndarray.C)
}

// Close releases file resources and any mmap backing.
func (f *File) Close() error {
	if f == nil || f.Data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unix.Munmap(f.Data)
	}
	f.Data = nil
	f.mmapped = false
	return err
}
