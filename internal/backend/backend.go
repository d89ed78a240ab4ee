// Package backend selects and builds the execution backend that moves array
// data for the copy dispatcher.
package backend

import (
	"fmt"
	"strings"

	"github.com/samcharles93/devcopy/internal/backend/cpu"
	"github.com/samcharles93/devcopy/internal/copyto"
	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/internal/ndarray"
)

const (
	CPU  = "cpu"
	CUDA = "cuda"
	Auto = "auto"
)

// Backend owns a set of devices, allocates memory on them and implements
// the raw and elementwise copies the dispatcher routes to.
type Backend interface {
	Name() string
	Devices() []device.Device
	Alloc(dev device.Device, nbytes int) (ndarray.Storage, error)
	copyto.Memory
	copyto.Kernels
}

// Config holds backend construction parameters.
type Config struct {
	// HostDevices is the number of logical devices the host backend
	// models. Values below 1 mean 1.
	HostDevices int
}

func Normalize(name string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(name))
	if backend == "" {
		return Auto, nil
	}
	switch backend {
	case CPU, CUDA, Auto:
		return backend, nil
	default:
		return "", fmt.Errorf("unknown backend %q (expected auto, cpu, or cuda)", backend)
	}
}

// New builds the named backend. Auto picks cuda when this build supports it
// and a device is present, and the host backend otherwise.
func New(name string, cfg Config) (Backend, error) {
	name, err := Normalize(name)
	if err != nil {
		return nil, err
	}
	switch name {
	case CPU:
		return newCPU(cfg), nil
	case CUDA:
		return newCUDA()
	}
	if cudaEnabled {
		if b, err := newCUDA(); err == nil {
			return b, nil
		}
	}
	return newCPU(cfg), nil
}

func newCPU(cfg Config) Backend {
	return cpu.New(cfg.HostDevices)
}

// Device returns the device of b that matches d, or an error naming the
// devices b owns.
func Device(b Backend, d device.Device) (device.Device, error) {
	for _, have := range b.Devices() {
		if have == d {
			return d, nil
		}
	}
	names := make([]string, 0, len(b.Devices()))
	for _, have := range b.Devices() {
		names = append(names, have.String())
	}
	return device.Device{}, fmt.Errorf("%s backend has no device %s (have %s)", b.Name(), d, strings.Join(names, ", "))
}
