package ndarray

import "errors"

var (
	ErrNoStorage       = errors.New("array has no storage")
	ErrNotHostMemory   = errors.New("storage is not host addressable")
	ErrOutOfRange      = errors.New("byte range outside storage")
	ErrShapeMismatch   = errors.New("shapes are not broadcast-compatible")
	ErrNotContiguous   = errors.New("array is not contiguous")
	ErrInvalidShape    = errors.New("invalid shape")
	ErrDTypeMismatch   = errors.New("element type mismatch")
	ErrStorageTooSmall = errors.New("storage too small for array")
)
