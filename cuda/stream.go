package cuda

import (
	"fmt"

	"github.com/fxnlabs/cudabind/driver"
	"go.uber.org/zap"
)

// Stream is an ordered device work queue. Work enqueued on one stream runs in
// enqueue order; there is no ordering between different streams without an
// explicit barrier. A nil *Stream stands for the default stream wherever a
// stream argument is accepted.
type Stream struct {
	handle driver.Handle
}

// CreateStream allocates a new stream on the current context.
func CreateStream() (*Stream, error) {
	d, err := Bound()
	if err != nil {
		return nil, err
	}
	h := d.StreamCreate()
	if h.Null() {
		return nil, nullHandle("stream_create", ErrStream, "")
	}
	log().Debug("stream created", zap.Stringer("handle", h))
	return &Stream{handle: h}, nil
}

// Handle returns the stream's handle, or the null handle for the default stream.
func (s *Stream) Handle() driver.Handle {
	if s == nil {
		return 0
	}
	return s.handle
}

// Sync blocks until every operation enqueued on s has completed.
func (s *Stream) Sync() error {
	d, err := Bound()
	if err != nil {
		return err
	}
	return check("stream_sync", d.StreamSync(s.Handle()), ErrStream)
}

// IsCompleted reports whether all work enqueued on s has finished. It never
// blocks; only a failing query is an error.
func (s *Stream) IsCompleted() (bool, error) {
	d, err := Bound()
	if err != nil {
		return false, err
	}
	switch st := d.StreamQuery(s.Handle()); st {
	case driver.StatusSuccess:
		return true, nil
	case driver.StatusNotReady:
		return false, nil
	default:
		return false, fail("stream_query", st, ErrStream, "")
	}
}

// Release destroys the stream. The default stream cannot be released.
func (s *Stream) Release() error {
	if s == nil {
		return fmt.Errorf("%w: release of the default stream", ErrInvalidArgument)
	}
	d, err := Bound()
	if err != nil {
		return err
	}
	if err := check("stream_destroy", d.StreamDestroy(s.handle), ErrRelease); err != nil {
		return err
	}
	log().Debug("stream destroyed", zap.Stringer("handle", s.handle))
	return nil
}
