// Package device identifies the memory space an array lives in.
package device

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the class of device.
type Kind uint8

const (
	CPU Kind = iota
	CUDA
)

func (k Kind) String() string {
	switch k {
	case CPU:
		return "cpu"
	case CUDA:
		return "cuda"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Device identifies a specific device (kind + ordinal). It is a plain value:
// two arrays share a device iff their Device values are equal.
type Device struct {
	Kind  Kind
	Index int
}

// CPU0 is the default host device.
var CPU0 = Device{Kind: CPU, Index: 0}

func Host(index int) Device       { return Device{Kind: CPU, Index: index} }
func CUDADevice(index int) Device { return Device{Kind: CUDA, Index: index} }

func (d Device) String() string {
	return fmt.Sprintf("%s:%d", d.Kind, d.Index)
}

// Parse reads "cpu", "cpu:1", "cuda", "cuda:0" or "gpu:0". A missing
// ordinal means 0.
func Parse(s string) (Device, error) {
	name, idx, hasIdx := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	var d Device
	switch name {
	case "cpu", "host":
		d.Kind = CPU
	case "cuda", "gpu":
		d.Kind = CUDA
	default:
		return Device{}, fmt.Errorf("unknown device %q (expected cpu[:N] or cuda[:N])", s)
	}
	if hasIdx {
		n, err := strconv.Atoi(idx)
		if err != nil || n < 0 {
			return Device{}, fmt.Errorf("invalid device ordinal in %q", s)
		}
		d.Index = n
	}
	return d, nil
}

// MarshalText encodes the device as "kind:index".
func (d Device) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts anything Parse accepts.
func (d *Device) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
