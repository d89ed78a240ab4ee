package safetensors

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-json"

	"github.com/samcharles93/devcopy/internal/ndarray"
)

// Named pairs an array with the tensor name it is stored under.
type Named struct {
	Name  string
	Array *ndarray.Array
}

// Encode serializes arrays in the given order. Arrays may have any layout;
// their elements are written in row-major order.
func Encode(arrays []Named, metadata map[string]string) ([]byte, error) {
	header := make(map[string]any, len(arrays)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}

	var body bytes.Buffer
	for _, n := range arrays {
		if n.Name == "" || n.Name == metadataKey {
			return nil, fmt.Errorf("invalid tensor name %q", n.Name)
		}
		if _, dup := header[n.Name]; dup {
			return nil, fmt.Errorf("duplicate tensor name %q", n.Name)
		}
		raw, err := ndarray.ContiguousBytes(n.Array)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", n.Name, err)
		}
		start := int64(body.Len())
		body.Write(raw)
		shape := slices.Clone([]int(n.Array.Shape()))
		header[n.Name] = tensorHeader{
			DType:       n.Array.DType().SafetensorsName(),
			Shape:       shape,
			DataOffsets: []int64{start, int64(body.Len())},
		}
	}

	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	// Pad with spaces so the data section starts 8-byte aligned.
	if pad := (8 - len(hdr)%8) % 8; pad > 0 {
		hdr = append(hdr, bytes.Repeat([]byte{' '}, pad)...)
	}

	out := make([]byte, 8, 8+len(hdr)+body.Len())
	binary.LittleEndian.PutUint64(out, uint64(len(hdr)))
	out = append(out, hdr...)
	out = append(out, body.Bytes()...)
	return out, nil
}

// Write stores arrays at path. The file is replaced atomically.
func Write(path string, arrays []Named, metadata map[string]string) error {
	data, err := Encode(arrays, metadata)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
