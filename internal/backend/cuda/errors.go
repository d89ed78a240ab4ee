//go:build cuda

package cuda

import "fmt"

// cudaExecutionError converts a recovered panic from a staged kernel into
// an error.
func cudaExecutionError(rec any) error {
	if recErr, ok := rec.(error); ok {
		return fmt.Errorf("cuda execution failed: %w", recErr)
	}
	return fmt.Errorf("cuda execution failed: %v", rec)
}
