package cuda

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fxnlabs/cudabind/driver"
	"go.uber.org/zap"
)

type binding struct {
	drv driver.Driver

	initOnce sync.Once
	initErr  error
}

var (
	state  atomic.Pointer[binding]
	logger atomic.Pointer[zap.Logger]
)

func init() {
	logger.Store(zap.NewNop())
}

// SetLogger replaces the logger used for resource lifecycle events.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

func log() *zap.Logger { return logger.Load() }

// Bind installs d as the process-wide driver. It succeeds once per process.
func Bind(d driver.Driver) error {
	if d == nil {
		return fmt.Errorf("%w: nil driver", ErrInvalidArgument)
	}
	if !state.CompareAndSwap(nil, &binding{drv: d}) {
		return ErrAlreadyBound
	}
	log().Debug("driver bound", zap.String("driver", fmt.Sprintf("%T", d)))
	return nil
}

// Load opens the native shim library described by opts and binds it.
// A missing entry point yields an error wrapping ErrSymbolResolution; callers
// should treat it as fatal.
func Load(opts driver.LibraryOptions) error {
	n, err := driver.Open(opts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	log().Info("driver library loaded", zap.String("path", n.Path()))
	return Bind(n)
}

// MustLoad is like Load but panics on failure.
func MustLoad(opts driver.LibraryOptions) {
	if err := Load(opts); err != nil {
		panic(err)
	}
}

// Bound returns the process-wide driver.
func Bound() (driver.Driver, error) {
	b := state.Load()
	if b == nil {
		return nil, ErrNotBound
	}
	return b.drv, nil
}

// Init performs the one-time driver initialization. Later calls return the
// result of the first one; a failed initialization is never retried.
func Init() error {
	b := state.Load()
	if b == nil {
		return ErrNotBound
	}
	b.initOnce.Do(func() {
		b.drv.Init()
		// init is void in the ABI; a broken driver reports a negative device count.
		if n := b.drv.DeviceCount(); n < 0 {
			b.initErr = fail("init", driver.Status(n), ErrInitialization, "")
			return
		}
		log().Debug("driver initialized")
	})
	return b.initErr
}

// DeviceCount returns the number of usable devices.
func DeviceCount() (int, error) {
	d, err := Bound()
	if err != nil {
		return 0, err
	}
	n := d.DeviceCount()
	if n < 0 {
		return 0, fail("device_count", driver.Status(n), ErrInitialization, "")
	}
	return int(n), nil
}
