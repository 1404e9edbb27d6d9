package cuda

import (
	"go.uber.org/multierr"
)

// Transfer is an enqueued asynchronous copy together with the host staging
// region it reads from or writes into. The region stays alive until Wait,
// Finish or Release is called, so the copy never touches freed memory.
type Transfer struct {
	stream *Stream
	region *hostRegion
	// finish moves staged data to its final destination; nil for host-to-device.
	finish func(r *hostRegion)
	done   bool
}

// Wait blocks until the transfer's stream has drained, then completes the
// transfer and releases its staging region.
func (t *Transfer) Wait() error {
	if t.done {
		return nil
	}
	if err := t.stream.Sync(); err != nil {
		return multierr.Append(err, t.Release())
	}
	return t.Finish()
}

// Finish completes a transfer whose stream is already known to have drained,
// for example after Stream.Sync or Context.Synchronize.
func (t *Transfer) Finish() error {
	if t.done {
		return nil
	}
	t.done = true
	if t.region == nil {
		return nil
	}
	if t.finish != nil {
		t.finish(t.region)
	}
	return t.region.release()
}

// Release drops the staging region without completing the transfer. It is only
// safe once the stream has drained.
func (t *Transfer) Release() error {
	t.done = true
	if t.region == nil {
		return nil
	}
	return t.region.release()
}

// CopyToDeviceAsync enqueues a copy of src into the start of b on s. The copy
// has only been enqueued when this returns.
func CopyToDeviceAsync[T Element](b *Buffer, src []T, s *Stream) (*Transfer, error) {
	d, err := Bound()
	if err != nil {
		return nil, err
	}
	n := ByteLen[T](len(src))
	if err := b.bounds("memcpy_htod_async", n); err != nil {
		return nil, err
	}
	if n == 0 {
		return &Transfer{stream: s}, nil
	}
	r, err := allocHost(int(n))
	if err != nil {
		return nil, err
	}
	copy(r.mem, asBytes(src))
	if err := check("memcpy_htod_async", d.MemcpyHtoDAsync(b.handle, r.ptr(), n, s.Handle()), ErrTransfer); err != nil {
		return nil, multierr.Append(err, r.release())
	}
	observe("htod", "async", n)
	return &Transfer{stream: s, region: r}, nil
}

// CopyToHostAsync enqueues a copy from the start of b on s. dst is filled when
// the returned Transfer is waited on or finished, not before.
func CopyToHostAsync[T Element](b *Buffer, dst []T, s *Stream) (*Transfer, error) {
	d, err := Bound()
	if err != nil {
		return nil, err
	}
	n := ByteLen[T](len(dst))
	if err := b.bounds("memcpy_dtoh_async", n); err != nil {
		return nil, err
	}
	if n == 0 {
		return &Transfer{stream: s}, nil
	}
	r, err := allocHost(int(n))
	if err != nil {
		return nil, err
	}
	if err := check("memcpy_dtoh_async", d.MemcpyDtoHAsync(r.ptr(), b.handle, n, s.Handle()), ErrTransfer); err != nil {
		return nil, multierr.Append(err, r.release())
	}
	observe("dtoh", "async", n)
	return &Transfer{
		stream: s,
		region: r,
		finish: func(r *hostRegion) { copy(asBytes(dst), r.mem) },
	}, nil
}
