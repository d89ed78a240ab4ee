//go:build !cuda

package backend

import "errors"

const cudaEnabled = false

var errCUDAUnavailable = errors.New("cuda backend is not available in this build")

func newCUDA() (Backend, error) {
	return nil, errCUDAUnavailable
}
