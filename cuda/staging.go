package cuda

import (
	"fmt"
	"unsafe"

	"go.uber.org/multierr"
)

// hostRegion is host memory outside the Go heap that the driver may read or
// write for as long as the region is alive.
type hostRegion struct {
	mem []byte
}

func allocHost(n int) (*hostRegion, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: staging region of %d bytes", ErrInvalidArgument, n)
	}
	mem, err := mapHost(n)
	if err != nil {
		return nil, fmt.Errorf("%w: staging region of %d bytes: %v", ErrAllocation, n, err)
	}
	return &hostRegion{mem: mem}, nil
}

func (r *hostRegion) ptr() unsafe.Pointer { return unsafe.Pointer(&r.mem[0]) }

func (r *hostRegion) release() error {
	if r.mem == nil {
		return nil
	}
	mem := r.mem
	r.mem = nil
	if err := unmapHost(mem); err != nil {
		return fmt.Errorf("%w: staging region: %v", ErrRelease, err)
	}
	return nil
}

// withHost runs fn with a region of n bytes that is released on every exit path.
// A release failure is appended after any error fn returned.
func withHost(n int, fn func(r *hostRegion) error) (err error) {
	r, err := allocHost(n)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, r.release())
	}()
	return fn(r)
}
