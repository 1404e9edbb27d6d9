package driver

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSymbolResolution means an entry point could not be resolved at bind time.
	// A process that sees it cannot use any device.
	ErrSymbolResolution = errors.New("symbol resolution failure")
	// ErrLibraryNotFound means no loadable driver library could be located.
	ErrLibraryNotFound = errors.New("driver library not found")
	// ErrUnsupportedPlatform is returned by Open on platforms without dlopen.
	ErrUnsupportedPlatform = errors.New("native driver loading not supported on this platform")
)

// SymbolError lists every entry point missing from a library.
type SymbolError struct {
	Library string
	Missing []string
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("%s: %s: missing %s", ErrSymbolResolution, e.Library, strings.Join(e.Missing, ", "))
}

func (e *SymbolError) Unwrap() error { return ErrSymbolResolution }
