package api

import (
	"errors"

	"github.com/samcharles93/devcopy/internal/copyto"
	"github.com/samcharles93/devcopy/internal/ndarray"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// errorType maps a copy failure to the error envelope type.
func errorType(err error) string {
	switch {
	case errors.Is(err, copyto.ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, copyto.ErrCrossDeviceLayout):
		return "cross_device_layout"
	case errors.Is(err, ndarray.ErrShapeMismatch):
		return "shape_mismatch"
	default:
		return "invalid_request_error"
	}
}
