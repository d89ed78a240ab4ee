//go:build cuda

package backend

import "github.com/samcharles93/devcopy/internal/backend/cuda"

const cudaEnabled = true

func newCUDA() (Backend, error) {
	return cuda.New()
}
