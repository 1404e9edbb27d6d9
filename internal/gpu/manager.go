package gpu

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/fxnlabs/cudabind/cuda"
	"github.com/fxnlabs/cudabind/internal/config"
	"github.com/fxnlabs/cudabind/kernels"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrClosed is returned by operations on a Manager after Close.
var ErrClosed = errors.New("gpu manager closed")

// Manager owns one device, a context and the loaded kernel module.
//
// A context is current per OS thread, so every device call runs on a single
// goroutine locked to its thread. Manager methods are safe for concurrent use;
// calls are serialized onto that goroutine.
type Manager struct {
	log  *zap.Logger
	info DeviceInfo

	dev     *cuda.Device
	ctx     *cuda.Context
	mod     *cuda.Module
	kernels map[string]*cuda.Function

	mu     sync.RWMutex
	closed bool
	work   chan func()
}

// NewManager binds the configured driver, opens cfg.Device.Index and loads the
// bundled kernels.
func NewManager(cfg *config.Config, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("gpu")
	cuda.SetLogger(log.Named("cuda"))

	d, err := bind(cfg, log)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		log:     log,
		kernels: make(map[string]*cuda.Function),
		work:    make(chan func()),
		info:    DeviceInfo{Index: cfg.Device.Index, Driver: string(kindOf(d))},
	}

	ready := make(chan error, 1)
	go m.run(ready, func() error { return m.setup(cfg.Device.Index) })
	if err := <-ready; err != nil {
		return nil, err
	}
	log.Info("device ready",
		zap.String("device", m.info.Name),
		zap.Int("index", m.info.Index),
		zap.String("driver", m.info.Driver))
	return m, nil
}

// run executes submitted work on a locked OS thread until the work channel closes.
func (m *Manager) run(ready chan<- error, setup func() error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := setup(); err != nil {
		ready <- err
		return
	}
	ready <- nil
	for fn := range m.work {
		fn()
	}
}

func (m *Manager) setup(index int) (err error) {
	if err := cuda.Init(); err != nil {
		return err
	}
	n, err := cuda.DeviceCount()
	if err != nil {
		return err
	}
	if index >= n {
		return fmt.Errorf("%w: device %d of %d", cuda.ErrResourceNotFound, index, n)
	}
	m.info.Devices = n

	defer func() {
		if err != nil {
			err = multierr.Append(err, m.teardown())
		}
	}()
	if m.dev, err = cuda.CreateSystemDevice(index); err != nil {
		return err
	}
	if m.info.Name, err = m.dev.Name(); err != nil {
		return err
	}
	if m.ctx, err = m.dev.CreateContext(); err != nil {
		return err
	}
	if err = m.ctx.SetCurrent(); err != nil {
		return err
	}
	if m.mod, err = cuda.LoadModuleData(kernels.PTX); err != nil {
		return err
	}
	for _, name := range kernels.Entries() {
		fn, err := m.mod.Function(name)
		if err != nil {
			return err
		}
		m.kernels[name] = fn
	}
	return nil
}

// teardown releases whatever setup acquired, in reverse order.
func (m *Manager) teardown() error {
	var err error
	for name, fn := range m.kernels {
		err = multierr.Append(err, fn.Release())
		delete(m.kernels, name)
	}
	if m.mod != nil {
		err = multierr.Append(err, m.mod.Unload())
		m.mod = nil
	}
	if m.ctx != nil {
		err = multierr.Append(err, m.ctx.Release())
		m.ctx = nil
	}
	if m.dev != nil {
		err = multierr.Append(err, m.dev.Release())
		m.dev = nil
	}
	return err
}

// do runs fn on the device thread and waits for it.
func (m *Manager) do(fn func() error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	errc := make(chan error, 1)
	m.work <- func() { errc <- fn() }
	m.mu.RUnlock()
	return <-errc
}

// Devices returns the name of every device the driver reports, by index.
func (m *Manager) Devices() ([]string, error) {
	var names []string
	err := m.do(func() error {
		for i := 0; i < m.info.Devices; i++ {
			dev, err := cuda.CreateSystemDevice(i)
			if err != nil {
				return err
			}
			name, err := dev.Name()
			if err = multierr.Append(err, dev.Release()); err != nil {
				return err
			}
			names = append(names, name)
		}
		return nil
	})
	return names, err
}

// DeviceInfo returns the device the manager runs on.
func (m *Manager) DeviceInfo() DeviceInfo { return m.info }

// Driver returns "native" or "sim".
func (m *Manager) Driver() string { return m.info.Driver }

// Close waits for in-flight work, releases the module, context and device,
// and stops the device thread.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	errc := make(chan error, 1)
	m.work <- func() {
		errc <- multierr.Append(m.ctx.Synchronize(), m.teardown())
	}
	err := <-errc
	close(m.work)
	if err != nil {
		m.log.Warn("device teardown failed", zap.Error(err))
	}
	return err
}
