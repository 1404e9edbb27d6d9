package gpu

import (
	"errors"
	"fmt"

	"github.com/fxnlabs/cudabind/cuda"
	"github.com/fxnlabs/cudabind/driver"
	"github.com/fxnlabs/cudabind/driver/sim"
	"github.com/fxnlabs/cudabind/internal/config"
	"go.uber.org/zap"
)

// DeviceInfo describes the device a Manager runs on.
type DeviceInfo struct {
	Name    string `json:"name"`
	Index   int    `json:"index"`
	Devices int    `json:"devices"`
	// Driver is "native" or "sim".
	Driver string `json:"driver"`
}

// kindOf reports which implementation d is.
func kindOf(d driver.Driver) config.DriverKind {
	if _, ok := d.(*sim.Driver); ok {
		return config.DriverSim
	}
	return config.DriverNative
}

func newSim(cfg *config.Config, log *zap.Logger) *sim.Driver {
	return sim.New(sim.Options{
		Devices:     cfg.Sim.Devices,
		MemoryLimit: cfg.Sim.MemoryLimit,
		Logger:      log.Named("sim"),
	})
}

// openDriver builds the driver cfg asks for. With DriverAuto a native library
// that cannot be loaded falls back to the simulator.
func openDriver(cfg *config.Config, log *zap.Logger) (driver.Driver, error) {
	opts := driver.LibraryOptions{Path: cfg.Driver.Library, StageDir: cfg.Driver.StageDir}
	switch cfg.Driver.Kind {
	case config.DriverSim:
		return newSim(cfg, log), nil
	case config.DriverNative:
		n, err := driver.Open(opts)
		if err != nil {
			return nil, err
		}
		return n, nil
	case config.DriverAuto, "":
		n, err := driver.Open(opts)
		if err == nil {
			return n, nil
		}
		// A library with missing entry points is broken, not absent.
		if errors.Is(err, driver.ErrSymbolResolution) {
			return nil, err
		}
		log.Warn("native driver unavailable, using simulator", zap.Error(err))
		return newSim(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown driver kind %q", cfg.Driver.Kind)
	}
}

// bind installs the configured driver, or reuses the one already bound to
// the process when it is compatible with cfg.
func bind(cfg *config.Config, log *zap.Logger) (driver.Driver, error) {
	if d, err := cuda.Bound(); err == nil {
		kind := kindOf(d)
		if cfg.Driver.Kind != config.DriverAuto && cfg.Driver.Kind != "" && cfg.Driver.Kind != kind {
			return nil, fmt.Errorf("%w: process already uses the %s driver", cuda.ErrAlreadyBound, kind)
		}
		log.Debug("reusing bound driver", zap.String("driver", string(kind)))
		return d, nil
	}
	d, err := openDriver(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cuda.ErrInitialization, err)
	}
	if err := cuda.Bind(d); err != nil {
		if !errors.Is(err, cuda.ErrAlreadyBound) {
			return nil, err
		}
		// Lost a race with another binder; use the winner.
		return cuda.Bound()
	}
	return d, nil
}
