package cuda

import (
	"errors"
	"fmt"

	"github.com/fxnlabs/cudabind/driver"
	"github.com/fxnlabs/cudabind/internal/metrics"
)

// Failure kinds. Every *Error unwraps to one of them, and a null handle from an
// entry point that creates a resource also matches ErrCreation.
var (
	ErrInitialization   = errors.New("initialization failure")
	ErrResourceNotFound = errors.New("resource not found")
	ErrCreation         = errors.New("creation failure")
	ErrAllocation       = errors.New("allocation failure")
	ErrTransfer         = errors.New("transfer failure")
	ErrLaunch           = errors.New("launch failure")
	ErrStream           = errors.New("stream failure")
	ErrContext          = errors.New("context failure")
	ErrModuleLoad       = errors.New("module load failure")
	ErrRelease          = errors.New("release failure")
	ErrSymbolResolution = driver.ErrSymbolResolution

	ErrOutOfBounds     = errors.New("transfer exceeds buffer length")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotBound        = errors.New("no driver bound")
	ErrAlreadyBound    = errors.New("driver already bound")
)

// Error is a failure reported by a native entry point.
type Error struct {
	// Op is the entry point that produced the failure, without the symbol prefix.
	Op string
	// Code is the raw status, or driver.StatusNullHandle when a handle came back null.
	Code   driver.Status
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %v (%s): %s", e.Op, e.Kind, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s: %v (%s)", e.Op, e.Kind, e.Code)
}

// creators are the entry points that hand out a new handle.
var creators = map[string]bool{
	"create_system_device": true,
	"create_context":       true,
	"stream_create":        true,
	"mem_alloc":            true,
}

func (e *Error) Unwrap() []error {
	if e.Code == driver.StatusNullHandle && creators[e.Op] && e.Kind != ErrCreation {
		return []error{e.Kind, ErrCreation}
	}
	return []error{e.Kind}
}

// StatusOf returns the native status carried by err, or driver.StatusSuccess
// when err does not come from the driver.
func StatusOf(err error) driver.Status {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return driver.StatusSuccess
}

func fail(op string, code driver.Status, kind error, detail string) error {
	metrics.DriverErrors.WithLabelValues(op).Inc()
	return &Error{Op: op, Code: code, Kind: kind, Detail: detail}
}

// check turns a non-success status into an *Error of the given kind.
func check(op string, st driver.Status, kind error) error {
	if st == driver.StatusSuccess {
		return nil
	}
	return fail(op, st, kind, "")
}

func nullHandle(op string, kind error, detail string) error {
	return fail(op, driver.StatusNullHandle, kind, detail)
}
