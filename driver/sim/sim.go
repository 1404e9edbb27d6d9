// Package sim is an in-process implementation of driver.Driver.
//
// Device memory lives in host RAM, streams are worker goroutines that execute
// enqueued work in FIFO order, and kernels are Go functions registered by name.
// Modules are PTX text; a module exposes every `.entry` it declares, and launching
// an entry with no registered Go implementation fails with StatusNotSupported.
//
// Work on the null stream first drains every named stream, matching the legacy
// default stream. Errors raised while executing stream work are sticky and reported
// by the next StreamSync or SyncContext.
package sim

import (
	"sync"

	"github.com/fxnlabs/cudabind/driver"
	"go.uber.org/zap"
)

// Status codes produced by the simulator. They follow the CUDA driver numbering.
const (
	StatusInvalidValue   driver.Status = 1
	StatusOutOfMemory    driver.Status = 2
	StatusNotInitialized driver.Status = 3
	StatusInvalidImage   driver.Status = 200
	StatusInvalidContext driver.Status = 201
	StatusInvalidHandle  driver.Status = 400
	StatusNotFound       driver.Status = 500
	StatusLaunchFailed   driver.Status = 719
	StatusNotSupported   driver.Status = 801
)

const (
	DefaultMemoryLimit int64   = 1 << 30
	addressBase        uint64  = 0x7f0000000000
	addressAlign       uint64  = 256
	handleBase         uintptr = 0x1000
	handleStride       uintptr = 0x10
)

// Options configures a simulated driver.
type Options struct {
	// Devices names the simulated devices; one device is created when empty.
	Devices []string
	// MemoryLimit is the total number of bytes all allocations may hold.
	MemoryLimit int64
	// FailInit makes Init leave the driver unusable, as a broken installation would.
	FailInit bool
	Logger   *zap.Logger
}

// Copy records one memcpy entry point invocation.
type Copy struct {
	Op    string
	Bytes int64
	Async bool
}

type device struct {
	index int
}

type context struct {
	device *device
}

type allocation struct {
	addr uint64
	data []byte
}

// Driver is a simulated driver.Driver.
type Driver struct {
	opts Options
	log  *zap.Logger

	mu          sync.Mutex
	initialized bool
	broken      bool
	nextHandle  uintptr
	nextAddr    uint64
	used        int64
	current     *context
	objects     map[driver.Handle]any
	streams     map[driver.Handle]*stream
	kernels     map[string]Kernel

	copyMu sync.Mutex
	copies []Copy
}

var _ driver.Driver = (*Driver)(nil)

// New returns a simulated driver with the builtin kernels registered.
func New(opts Options) *Driver {
	if len(opts.Devices) == 0 {
		opts.Devices = []string{"Simulated Device 0"}
	}
	if opts.MemoryLimit <= 0 {
		opts.MemoryLimit = DefaultMemoryLimit
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	d := &Driver{
		opts:       opts,
		log:        opts.Logger,
		nextHandle: handleBase,
		nextAddr:   addressBase,
		objects:    make(map[driver.Handle]any),
		streams:    make(map[driver.Handle]*stream),
		kernels:    make(map[string]Kernel),
	}
	registerBuiltins(d)
	return d
}

// newHandle must be called with d.mu held.
func (d *Driver) newHandle(obj any) driver.Handle {
	h := driver.Handle(d.nextHandle)
	d.nextHandle += handleStride
	d.objects[h] = obj
	return h
}

// ready must be called with d.mu held.
func (d *Driver) ready() driver.Status {
	if !d.initialized || d.broken {
		return StatusNotInitialized
	}
	if d.current == nil {
		return StatusInvalidContext
	}
	return driver.StatusSuccess
}

func (d *Driver) record(op string, n int64, async bool) {
	d.copyMu.Lock()
	d.copies = append(d.copies, Copy{Op: op, Bytes: n, Async: async})
	d.copyMu.Unlock()
}

// Copies returns every memcpy recorded so far.
func (d *Driver) Copies() []Copy {
	d.copyMu.Lock()
	defer d.copyMu.Unlock()
	out := make([]Copy, len(d.copies))
	copy(out, d.copies)
	return out
}

// ResetCopies forgets recorded memcpy calls.
func (d *Driver) ResetCopies() {
	d.copyMu.Lock()
	d.copies = nil
	d.copyMu.Unlock()
}

// MemoryUsed returns the number of device bytes currently allocated.
func (d *Driver) MemoryUsed() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.used
}

// LiveObjects returns the number of handles that have not been released.
func (d *Driver) LiveObjects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.objects)
}

func (d *Driver) Init() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initialized = true
	d.broken = d.opts.FailInit
}

func (d *Driver) DeviceCount() int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized || d.broken {
		return -1
	}
	return int32(len(d.opts.Devices))
}

func (d *Driver) CreateSystemDevice(index int32) driver.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized || d.broken || index < 0 || int(index) >= len(d.opts.Devices) {
		return 0
	}
	return d.newHandle(&device{index: int(index)})
}

func (d *Driver) DeviceName(dev driver.Handle) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	dv, ok := d.objects[dev].(*device)
	if !ok {
		return ""
	}
	return d.opts.Devices[dv.index]
}

func (d *Driver) CreateContext(dev driver.Handle) driver.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	dv, ok := d.objects[dev].(*device)
	if !ok {
		return 0
	}
	return d.newHandle(&context{device: dv})
}

func (d *Driver) DestroyContext(ctx driver.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.objects[ctx].(*context)
	if !ok {
		return
	}
	if d.current == c {
		d.current = nil
	}
	delete(d.objects, ctx)
}

func (d *Driver) ContextSetCurrent(ctx driver.Handle) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ctx == 0 {
		d.current = nil
		return driver.StatusSuccess
	}
	c, ok := d.objects[ctx].(*context)
	if !ok {
		return StatusInvalidHandle
	}
	d.current = c
	return driver.StatusSuccess
}

func (d *Driver) SyncContext() driver.Status {
	d.mu.Lock()
	st := d.ready()
	d.mu.Unlock()
	if st != driver.StatusSuccess {
		return st
	}
	return d.drainAll()
}

func (d *Driver) ReleaseObject(h driver.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.objects, h)
}
