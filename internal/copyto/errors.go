package copyto

import (
	"errors"
	"fmt"

	"github.com/samcharles93/devcopy/internal/device"
	"github.com/samcharles93/devcopy/pkg/dtype"
)

var (
	// ErrTypeMismatch is returned when the source cannot be cast to the
	// destination under the requested casting policy, or the mask is not
	// a bool array.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrCrossDeviceLayout is returned for a cross-device copy that cannot
	// be done as a single raw buffer transfer.
	ErrCrossDeviceLayout = errors.New("cross-device layout")
)

// CastError reports a cast rejected by the casting policy.
type CastError struct {
	From    dtype.DType
	To      dtype.DType
	Casting dtype.Casting
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cannot cast %s to %s in %s casting mode", e.From, e.To, e.Casting)
}

func (e *CastError) Unwrap() error { return ErrTypeMismatch }

// MaskTypeError reports a mask whose dtype is not bool.
type MaskTypeError struct {
	DType dtype.DType
}

func (e *MaskTypeError) Error() string {
	return fmt.Sprintf("where must be a bool array, got %s", e.DType)
}

func (e *MaskTypeError) Unwrap() error { return ErrTypeMismatch }

// LayoutError reports a copy between devices that is not eligible for a
// peer transfer.
type LayoutError struct {
	Dst    device.Device
	Src    device.Device
	Masked bool
}

func (e *LayoutError) Error() string {
	if e.Masked {
		return fmt.Sprintf("masked copy across devices is not supported (%s to %s)", e.Src, e.Dst)
	}
	return "only contiguous arrays can be copied across devices"
}

func (e *LayoutError) Unwrap() error { return ErrCrossDeviceLayout }
