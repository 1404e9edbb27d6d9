package driver

import "unsafe"

// Native is a Driver backed by a dynamically loaded shim library.
// Its function fields are populated once by Open and never change afterwards.
type Native struct {
	path string
	lib  uintptr

	init               func()
	deviceCount        func() int32
	createSystemDevice func(int32) Handle
	deviceName         func(Handle) string
	createContext      func(Handle) Handle
	destroyContext     func(Handle)
	syncContext        func() Status
	contextSetCurrent  func(Handle) Status
	moduleLoad         func(string) Handle
	moduleLoadData     func(unsafe.Pointer) Handle
	moduleUnload       func(Handle) Status
	moduleGetFunction  func(Handle, string) Handle
	launchKernel       func(Handle, int32, int32, int32, int32, int32, int32, int32, Handle, unsafe.Pointer) Status
	streamCreate       func() Handle
	streamDestroy      func(Handle) Status
	streamSync         func(Handle) Status
	streamQuery        func(Handle) Status
	memAlloc           func(int64) Handle
	memFree            func(Handle) Status
	memcpyHtoD         func(Handle, unsafe.Pointer, int64) Status
	memcpyDtoH         func(unsafe.Pointer, Handle, int64) Status
	memcpyDtoD         func(Handle, Handle, int64) Status
	memcpyHtoDAsync    func(Handle, unsafe.Pointer, int64, Handle) Status
	memcpyDtoHAsync    func(unsafe.Pointer, Handle, int64, Handle) Status
	memcpyDtoDAsync    func(Handle, Handle, int64, Handle) Status
	bufferPtr          func(Handle) int64
	releaseObject      func(Handle)
}

var _ Driver = (*Native)(nil)

type symbol struct {
	name string
	fptr any
}

// symbols is the fixed entry point table, in ABI order.
func (n *Native) symbols() []symbol {
	return []symbol{
		{"init", &n.init},
		{"device_count", &n.deviceCount},
		{"create_system_device", &n.createSystemDevice},
		{"device_name", &n.deviceName},
		{"create_context", &n.createContext},
		{"destroy_context", &n.destroyContext},
		{"sync_context", &n.syncContext},
		{"context_set_current", &n.contextSetCurrent},
		{"module_load", &n.moduleLoad},
		{"module_load_data", &n.moduleLoadData},
		{"module_unload", &n.moduleUnload},
		{"module_get_function", &n.moduleGetFunction},
		{"launch_kernel", &n.launchKernel},
		{"stream_create", &n.streamCreate},
		{"stream_destroy", &n.streamDestroy},
		{"stream_sync", &n.streamSync},
		{"stream_query", &n.streamQuery},
		{"mem_alloc", &n.memAlloc},
		{"mem_free", &n.memFree},
		{"memcpy_htod", &n.memcpyHtoD},
		{"memcpy_dtoh", &n.memcpyDtoH},
		{"memcpy_dtod", &n.memcpyDtoD},
		{"memcpy_htod_async", &n.memcpyHtoDAsync},
		{"memcpy_dtoh_async", &n.memcpyDtoHAsync},
		{"memcpy_dtod_async", &n.memcpyDtoDAsync},
		{"buffer_ptr", &n.bufferPtr},
		{"release_object", &n.releaseObject},
	}
}

// SymbolNames returns the fully prefixed names of every required entry point.
func SymbolNames() []string {
	var n Native
	syms := n.symbols()
	names := make([]string, len(syms))
	for i, s := range syms {
		names[i] = SymbolPrefix + s.name
	}
	return names
}

// Path returns the file the library was loaded from.
func (n *Native) Path() string { return n.path }

func (n *Native) Init() { n.init() }
func (n *Native) DeviceCount() int32 { return n.deviceCount() }
func (n *Native) CreateSystemDevice(index int32) Handle { return n.createSystemDevice(index) }
func (n *Native) DeviceName(dev Handle) string { return n.deviceName(dev) }
func (n *Native) CreateContext(dev Handle) Handle { return n.createContext(dev) }
func (n *Native) DestroyContext(ctx Handle) { n.destroyContext(ctx) }
func (n *Native) SyncContext() Status { return n.syncContext() }
func (n *Native) ContextSetCurrent(ctx Handle) Status { return n.contextSetCurrent(ctx) }
func (n *Native) ModuleLoad(path string) Handle { return n.moduleLoad(path) }
func (n *Native) ModuleLoadData(image unsafe.Pointer) Handle {
	return n.moduleLoadData(image)
}
func (n *Native) ModuleUnload(mod Handle) Status { return n.moduleUnload(mod) }
func (n *Native) ModuleGetFunction(mod Handle, name string) Handle {
	return n.moduleGetFunction(mod, name)
}

func (n *Native) LaunchKernel(fn Handle, gridX, gridY, gridZ, blockX, blockY, blockZ, sharedMemBytes int32, stream Handle, params unsafe.Pointer) Status {
	return n.launchKernel(fn, gridX, gridY, gridZ, blockX, blockY, blockZ, sharedMemBytes, stream, params)
}

func (n *Native) StreamCreate() Handle { return n.streamCreate() }
func (n *Native) StreamDestroy(stream Handle) Status { return n.streamDestroy(stream) }
func (n *Native) StreamSync(stream Handle) Status { return n.streamSync(stream) }
func (n *Native) StreamQuery(stream Handle) Status { return n.streamQuery(stream) }
func (n *Native) MemAlloc(size int64) Handle { return n.memAlloc(size) }
func (n *Native) MemFree(buf Handle) Status { return n.memFree(buf) }

func (n *Native) MemcpyHtoD(dst Handle, src unsafe.Pointer, size int64) Status {
	return n.memcpyHtoD(dst, src, size)
}

func (n *Native) MemcpyDtoH(dst unsafe.Pointer, src Handle, size int64) Status {
	return n.memcpyDtoH(dst, src, size)
}

func (n *Native) MemcpyDtoD(dst, src Handle, size int64) Status {
	return n.memcpyDtoD(dst, src, size)
}

func (n *Native) MemcpyHtoDAsync(dst Handle, src unsafe.Pointer, size int64, stream Handle) Status {
	return n.memcpyHtoDAsync(dst, src, size, stream)
}

func (n *Native) MemcpyDtoHAsync(dst unsafe.Pointer, src Handle, size int64, stream Handle) Status {
	return n.memcpyDtoHAsync(dst, src, size, stream)
}

func (n *Native) MemcpyDtoDAsync(dst, src Handle, size int64, stream Handle) Status {
	return n.memcpyDtoDAsync(dst, src, size, stream)
}

func (n *Native) BufferPtr(buf Handle) int64 { return n.bufferPtr(buf) }
func (n *Native) ReleaseObject(h Handle) { n.releaseObject(h) }
