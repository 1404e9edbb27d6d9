package cuda

import (
	"github.com/fxnlabs/cudabind/driver"
	"go.uber.org/zap"
)

// Context is the execution scope bound to one device. It must be current on the
// calling OS thread before module, function, buffer or stream operations are
// valid; the binding does not check this and the driver reports violations.
type Context struct {
	handle driver.Handle
}

// CreateContext requests a new context bound to device.
func CreateContext(device *Device) (*Context, error) {
	d, err := Bound()
	if err != nil {
		return nil, err
	}
	h := d.CreateContext(device.handle)
	if h.Null() {
		return nil, nullHandle("create_context", ErrContext, "")
	}
	log().Debug("context created", zap.Stringer("handle", h), zap.Int("device", device.index))
	return &Context{handle: h}, nil
}

func (c *Context) Handle() driver.Handle { return c.handle }

// SetCurrent binds c to the calling thread.
func (c *Context) SetCurrent() error {
	d, err := Bound()
	if err != nil {
		return err
	}
	return check("context_set_current", d.ContextSetCurrent(c.handle), ErrContext)
}

// Synchronize blocks until all work previously enqueued on any stream of the
// current context's device has completed.
func (c *Context) Synchronize() error {
	d, err := Bound()
	if err != nil {
		return err
	}
	return check("sync_context", d.SyncContext(), ErrContext)
}

// Release destroys the context.
func (c *Context) Release() error {
	d, err := Bound()
	if err != nil {
		return err
	}
	d.DestroyContext(c.handle)
	log().Debug("context destroyed", zap.Stringer("handle", c.handle))
	return nil
}
