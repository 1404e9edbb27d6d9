// Package driver describes the fixed C ABI exposed by the native compute driver shim
// and provides a purego-backed implementation of it.
//
// Every entry point either returns an integer status (0 is success) or an opaque
// pointer-sized handle (0 is failure). Nothing in this package interprets handles.
package driver

import (
	"fmt"
	"unsafe"
)

// Handle is an opaque reference into the driver's resource table.
type Handle uintptr

// Null reports whether h denotes "no resource".
func (h Handle) Null() bool { return h == 0 }

func (h Handle) String() string { return fmt.Sprintf("0x%x", uintptr(h)) }

// Status is the raw integer status returned by the driver.
type Status int32

const (
	StatusSuccess  Status = 0
	StatusNotReady Status = 600
	// StatusNullHandle marks a failure reported through a null handle rather than a code.
	StatusNullHandle Status = -1
)

func (s Status) String() string {
	if s == StatusNullHandle {
		return "null handle"
	}
	return fmt.Sprintf("status %d", int32(s))
}

// Driver is the set of native entry points the binding layer consumes.
// Implementations must be safe to call from the goroutine that bound the
// current context; they are not required to be safe for concurrent use of
// the same handle.
type Driver interface {
	Init()
	DeviceCount() int32

	CreateSystemDevice(index int32) Handle
	DeviceName(dev Handle) string

	CreateContext(dev Handle) Handle
	DestroyContext(ctx Handle)
	SyncContext() Status
	ContextSetCurrent(ctx Handle) Status

	ModuleLoad(path string) Handle
	// ModuleLoadData takes a pointer to a NUL-terminated image.
	ModuleLoadData(image unsafe.Pointer) Handle
	ModuleUnload(mod Handle) Status
	ModuleGetFunction(mod Handle, name string) Handle
	LaunchKernel(fn Handle, gridX, gridY, gridZ, blockX, blockY, blockZ, sharedMemBytes int32, stream Handle, params unsafe.Pointer) Status

	StreamCreate() Handle
	StreamDestroy(stream Handle) Status
	StreamSync(stream Handle) Status
	StreamQuery(stream Handle) Status

	MemAlloc(size int64) Handle
	MemFree(buf Handle) Status
	MemcpyHtoD(dst Handle, src unsafe.Pointer, size int64) Status
	MemcpyDtoH(dst unsafe.Pointer, src Handle, size int64) Status
	MemcpyDtoD(dst, src Handle, size int64) Status
	MemcpyHtoDAsync(dst Handle, src unsafe.Pointer, size int64, stream Handle) Status
	MemcpyDtoHAsync(dst unsafe.Pointer, src Handle, size int64, stream Handle) Status
	MemcpyDtoDAsync(dst, src Handle, size int64, stream Handle) Status
	BufferPtr(buf Handle) int64

	ReleaseObject(h Handle)
}
