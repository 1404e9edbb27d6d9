package cuda

import (
	"fmt"

	"github.com/fxnlabs/cudabind/driver"
	"github.com/fxnlabs/cudabind/internal/metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Buffer is a device allocation of fixed length. It is the sole owner of the
// memory it wraps.
type Buffer struct {
	handle driver.Handle
	length int64
}

// Allocate requests size bytes of device memory.
func Allocate(size int64) (*Buffer, error) {
	d, err := Bound()
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: allocation of %d bytes", ErrInvalidArgument, size)
	}
	h := d.MemAlloc(size)
	if h.Null() {
		return nil, nullHandle("mem_alloc", ErrAllocation, fmt.Sprintf("%d bytes", size))
	}
	metrics.Allocations.Inc()
	metrics.DeviceMemoryBytes.Add(float64(size))
	log().Debug("buffer allocated", zap.Int64("bytes", size), zap.Stringer("handle", h))
	return &Buffer{handle: h, length: size}, nil
}

// AllocateFrom allocates size bytes and copies data in synchronously.
func AllocateFrom[T Element](data []T, size int64) (*Buffer, error) {
	b, err := Allocate(size)
	if err != nil {
		return nil, err
	}
	if err := CopyToDevice(b, data); err != nil {
		return nil, multierr.Append(err, b.Release())
	}
	return b, nil
}

// AllocateFromAsync allocates size bytes and enqueues a copy of data on s.
// The returned Transfer must be waited on or finished after s drains.
func AllocateFromAsync[T Element](data []T, size int64, s *Stream) (*Buffer, *Transfer, error) {
	b, err := Allocate(size)
	if err != nil {
		return nil, nil, err
	}
	t, err := CopyToDeviceAsync(b, data, s)
	if err != nil {
		return nil, nil, multierr.Append(err, b.Release())
	}
	return b, t, nil
}

func (b *Buffer) Handle() driver.Handle { return b.handle }

// Len returns the allocation length in bytes.
func (b *Buffer) Len() int64 { return b.length }

func (b *Buffer) bounds(op string, n int64) error {
	if n < 0 || n > b.length {
		return fmt.Errorf("%s: %w: %d bytes against a %d-byte buffer", op, ErrOutOfBounds, n, b.length)
	}
	return nil
}

// DevicePointer returns the raw device address. It is meant for kernel
// arguments and debugging, not for address arithmetic.
func (b *Buffer) DevicePointer() (uint64, error) {
	d, err := Bound()
	if err != nil {
		return 0, err
	}
	addr := d.BufferPtr(b.handle)
	if addr == 0 {
		return 0, nullHandle("buffer_ptr", ErrResourceNotFound, b.handle.String())
	}
	return uint64(addr), nil
}

// TransferTo copies the first size bytes of b into dst.
func (b *Buffer) TransferTo(dst *Buffer, size int64) error {
	d, err := Bound()
	if err != nil {
		return err
	}
	if err := b.dtodBounds(dst, size); err != nil || size == 0 {
		return err
	}
	if err := check("memcpy_dtod", d.MemcpyDtoD(dst.handle, b.handle, size), ErrTransfer); err != nil {
		return err
	}
	observe("dtod", "sync", size)
	return nil
}

// TransferToAsync enqueues a copy of the first size bytes of b into dst on s.
func (b *Buffer) TransferToAsync(dst *Buffer, size int64, s *Stream) error {
	d, err := Bound()
	if err != nil {
		return err
	}
	if err := b.dtodBounds(dst, size); err != nil || size == 0 {
		return err
	}
	if err := check("memcpy_dtod_async", d.MemcpyDtoDAsync(dst.handle, b.handle, size, s.Handle()), ErrTransfer); err != nil {
		return err
	}
	observe("dtod", "async", size)
	return nil
}

func (b *Buffer) dtodBounds(dst *Buffer, size int64) error {
	if err := b.bounds("memcpy_dtod", size); err != nil {
		return err
	}
	return dst.bounds("memcpy_dtod", size)
}

// Release frees the device allocation.
func (b *Buffer) Release() error {
	d, err := Bound()
	if err != nil {
		return err
	}
	if err := check("mem_free", d.MemFree(b.handle), ErrRelease); err != nil {
		return err
	}
	metrics.DeviceMemoryBytes.Sub(float64(b.length))
	log().Debug("buffer freed", zap.Int64("bytes", b.length), zap.Stringer("handle", b.handle))
	return nil
}

func observe(direction, mode string, n int64) {
	metrics.Transfers.WithLabelValues(direction, mode).Inc()
	metrics.TransferBytes.WithLabelValues(direction, mode).Add(float64(n))
}

// CopyToDevice copies all of src into the start of b and returns once the copy
// has completed.
func CopyToDevice[T Element](b *Buffer, src []T) error {
	d, err := Bound()
	if err != nil {
		return err
	}
	n := ByteLen[T](len(src))
	if err := b.bounds("memcpy_htod", n); err != nil || n == 0 {
		return err
	}
	err = withHost(int(n), func(r *hostRegion) error {
		copy(r.mem, asBytes(src))
		return check("memcpy_htod", d.MemcpyHtoD(b.handle, r.ptr(), n), ErrTransfer)
	})
	if err != nil {
		return err
	}
	observe("htod", "sync", n)
	return nil
}

// CopyToHost fills dst from the start of b and returns once the copy has
// completed.
func CopyToHost[T Element](b *Buffer, dst []T) error {
	d, err := Bound()
	if err != nil {
		return err
	}
	n := ByteLen[T](len(dst))
	if err := b.bounds("memcpy_dtoh", n); err != nil || n == 0 {
		return err
	}
	err = withHost(int(n), func(r *hostRegion) error {
		if err := check("memcpy_dtoh", d.MemcpyDtoH(r.ptr(), b.handle, n), ErrTransfer); err != nil {
			return err
		}
		copy(asBytes(dst), r.mem)
		return nil
	})
	if err != nil {
		return err
	}
	observe("dtoh", "sync", n)
	return nil
}
