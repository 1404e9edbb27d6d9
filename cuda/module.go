package cuda

import (
	"fmt"

	"github.com/fxnlabs/cudabind/driver"
	"go.uber.org/zap"
)

// Module is a loaded unit of device code. Functions are looked up on demand
// and become invalid once the module is unloaded.
type Module struct {
	handle driver.Handle
}

// LoadModule loads device code from a file.
func LoadModule(path string) (*Module, error) {
	d, err := Bound()
	if err != nil {
		return nil, err
	}
	h := d.ModuleLoad(path)
	if h.Null() {
		return nil, nullHandle("module_load", ErrModuleLoad, path)
	}
	log().Debug("module loaded", zap.String("path", path), zap.Stringer("handle", h))
	return &Module{handle: h}, nil
}

// LoadModuleData loads device code from an in-memory image such as PTX text.
// The image is staged with a terminating NUL for the duration of the call.
func LoadModuleData(image []byte) (*Module, error) {
	d, err := Bound()
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, nullHandle("module_load_data", ErrModuleLoad, "empty image")
	}
	var h driver.Handle
	err = withHost(len(image)+1, func(r *hostRegion) error {
		copy(r.mem, image)
		r.mem[len(image)] = 0
		h = d.ModuleLoadData(r.ptr())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if h.Null() {
		return nil, nullHandle("module_load_data", ErrModuleLoad, fmt.Sprintf("%d-byte image", len(image)))
	}
	log().Debug("module loaded from data", zap.Int("bytes", len(image)), zap.Stringer("handle", h))
	return &Module{handle: h}, nil
}

func (m *Module) Handle() driver.Handle { return m.handle }

// Function looks up a kernel entry point by exact name.
func (m *Module) Function(name string) (*Function, error) {
	d, err := Bound()
	if err != nil {
		return nil, err
	}
	h := d.ModuleGetFunction(m.handle, name)
	if h.Null() {
		return nil, nullHandle("module_get_function", ErrResourceNotFound, name)
	}
	return &Function{handle: h, name: name}, nil
}

// Unload releases the module. Every Function obtained from it becomes invalid.
func (m *Module) Unload() error {
	d, err := Bound()
	if err != nil {
		return err
	}
	if err := check("module_unload", d.ModuleUnload(m.handle), ErrRelease); err != nil {
		return err
	}
	log().Debug("module unloaded", zap.Stringer("handle", m.handle))
	return nil
}

// Release is Unload.
func (m *Module) Release() error { return m.Unload() }
