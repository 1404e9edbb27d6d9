package cuda

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/fxnlabs/cudabind/driver"
	"github.com/fxnlabs/cudabind/internal/metrics"
)

// Dim3 is a grid or block extent. Every component must be at least 1.
type Dim3 struct {
	X, Y, Z int
}

func (d Dim3) valid() bool {
	return inRange(d.X, 1) && inRange(d.Y, 1) && inRange(d.Z, 1)
}

func inRange(v, lo int) bool { return v >= lo && v <= math.MaxInt32 }

// LaunchConfig is the execution configuration of one kernel launch.
type LaunchConfig struct {
	Grid           Dim3
	Block          Dim3
	SharedMemBytes int
}

// Linear returns a one-dimensional configuration with enough blocks of
// blockSize threads to cover n elements.
func Linear(n, blockSize int) LaunchConfig {
	if blockSize < 1 {
		blockSize = 1
	}
	grid := max((n+blockSize-1)/blockSize, 1)
	return LaunchConfig{
		Grid:  Dim3{X: grid, Y: 1, Z: 1},
		Block: Dim3{X: blockSize, Y: 1, Z: 1},
	}
}

// Function is a launchable kernel entry point. Looking the same name up twice
// may return different handles.
type Function struct {
	handle driver.Handle
	name   string
}

func (f *Function) Handle() driver.Handle { return f.handle }

func (f *Function) Name() string { return f.name }

// Launch enqueues the kernel on s, or on the default stream when s is nil.
// args may be nil for kernels without parameters. Launch returns once the work
// is enqueued; a failing status is returned as an *Error wrapping ErrLaunch.
func (f *Function) Launch(cfg LaunchConfig, s *Stream, args *PackedArguments) error {
	d, err := Bound()
	if err != nil {
		return err
	}
	if !cfg.Grid.valid() || !cfg.Block.valid() || !inRange(cfg.SharedMemBytes, 0) {
		return fmt.Errorf("%w: launch %s with grid %+v block %+v shared %d", ErrInvalidArgument, f.name, cfg.Grid, cfg.Block, cfg.SharedMemBytes)
	}
	var params unsafe.Pointer
	if args != nil {
		if params, err = args.pointer(); err != nil {
			return err
		}
	}
	st := d.LaunchKernel(f.handle,
		int32(cfg.Grid.X), int32(cfg.Grid.Y), int32(cfg.Grid.Z),
		int32(cfg.Block.X), int32(cfg.Block.Y), int32(cfg.Block.Z),
		int32(cfg.SharedMemBytes), s.Handle(), params)
	if st != driver.StatusSuccess {
		metrics.KernelLaunches.WithLabelValues("error").Inc()
		return fail("launch_kernel", st, ErrLaunch, f.name)
	}
	metrics.KernelLaunches.WithLabelValues("ok").Inc()
	return nil
}

// Release returns the function handle to the driver.
func (f *Function) Release() error {
	d, err := Bound()
	if err != nil {
		return err
	}
	d.ReleaseObject(f.handle)
	return nil
}
