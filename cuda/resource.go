package cuda

import "github.com/fxnlabs/cudabind/driver"

// Resource is implemented by every type that owns a native handle.
type Resource interface {
	Handle() driver.Handle
	Release() error
}

var (
	_ Resource = (*Device)(nil)
	_ Resource = (*Context)(nil)
	_ Resource = (*Module)(nil)
	_ Resource = (*Function)(nil)
	_ Resource = (*Stream)(nil)
	_ Resource = (*Buffer)(nil)
)
