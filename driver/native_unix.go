//go:build darwin || linux || freebsd

package driver

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// Open locates the shim library, loads it into the process, and resolves every
// entry point. Any unresolved symbol fails the whole call with a *SymbolError.
func Open(opts LibraryOptions) (*Native, error) {
	path, cleanup, err := locate(opts)
	if err != nil {
		return nil, err
	}
	// The loader keeps its own mapping; the staged file is not needed once opened.
	defer cleanup()

	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLibraryNotFound, path, err)
	}

	n := &Native{path: path, lib: lib}
	var missing []string
	for _, s := range n.symbols() {
		addr, err := purego.Dlsym(lib, SymbolPrefix+s.name)
		if err != nil || addr == 0 {
			missing = append(missing, SymbolPrefix+s.name)
			continue
		}
		purego.RegisterFunc(s.fptr, addr)
	}
	if len(missing) > 0 {
		_ = purego.Dlclose(lib)
		return nil, &SymbolError{Library: path, Missing: missing}
	}
	return n, nil
}
