// Package cuda binds the resource model of a native GPU compute driver:
// devices, contexts, modules, kernels, streams and device buffers.
//
// The package never re-implements the driver. It tracks ownership of the opaque
// handles the driver hands out, moves host memory across the host/device boundary
// through staging regions, packs kernel arguments into the layout the launch entry
// point walks, and turns integer status codes into errors.
//
// A process binds exactly one driver, once, before using anything else:
//
//	if err := cuda.Load(driver.LibraryOptions{Path: "/opt/cudabind/libcudabind.so"}); err != nil {
//		log.Fatal(err)
//	}
//	if err := cuda.Init(); err != nil {
//		log.Fatal(err)
//	}
//
// Contexts are current per OS thread. Goroutines that issue device work must call
// runtime.LockOSThread before Context.SetCurrent and keep the lock while the
// context is in use.
//
// Every resource has a single owner and is released exactly once by an explicit
// Release, Unload, or Free call. Releasing twice is undefined.
package cuda
