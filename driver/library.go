package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/mitchellh/go-homedir"
)

// Symbol prefix shared by every entry point of the shim library.
const SymbolPrefix = "cuda_"

// LibraryOptions says where the native shim library comes from.
// Embedded takes precedence over Path; an empty Path means DefaultLibraryName
// resolved through the platform loader's search path.
type LibraryOptions struct {
	Path     string
	Embedded []byte
	// StageDir receives the staged copy of Embedded. Empty means os.TempDir().
	StageDir string
}

// DefaultLibraryName returns the shim's file name on the running platform.
func DefaultLibraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libcudabind.dylib"
	case "windows":
		return "cudabind.dll"
	default:
		return "libcudabind.so"
	}
}

// locate returns a loadable path and a cleanup func for any staged copy.
func locate(opts LibraryOptions) (string, func(), error) {
	if len(opts.Embedded) > 0 {
		return stage(opts.Embedded, opts.StageDir)
	}
	if opts.Path == "" {
		return DefaultLibraryName(), func() {}, nil
	}
	path, err := homedir.Expand(opts.Path)
	if err != nil {
		return "", nil, fmt.Errorf("expanding library path %q: %w", opts.Path, err)
	}
	if _, err := os.Stat(path); err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrLibraryNotFound, path, err)
	}
	return path, func() {}, nil
}

// stage writes an embedded library to a private file the loader can map.
func stage(lib []byte, dir string) (string, func(), error) {
	if dir != "" {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			return "", nil, fmt.Errorf("expanding stage dir %q: %w", dir, err)
		}
		dir = expanded
	}
	f, err := os.CreateTemp(dir, "cudabind-*"+filepath.Ext(DefaultLibraryName()))
	if err != nil {
		return "", nil, fmt.Errorf("staging driver library: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }
	if _, err := f.Write(lib); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("staging driver library: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("staging driver library: %w", err)
	}
	if err := os.Chmod(path, 0o700); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("staging driver library: %w", err)
	}
	return path, cleanup, nil
}
