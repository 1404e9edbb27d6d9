//go:build !unix

package cuda

// Without anonymous mappings the staging region lives on the Go heap. It holds
// no Go pointers, so handing its address to the driver is permitted.
func mapHost(n int) ([]byte, error) {
	return make([]byte, n), nil
}

func unmapHost(mem []byte) error { return nil }
