package cuda

import (
	"runtime"
	"testing"

	"github.com/fxnlabs/cudabind/driver/sim"
	"github.com/stretchr/testify/require"
)

func resetBinding() { state.Store(nil) }

type fixture struct {
	drv *sim.Driver
	dev *Device
	ctx *Context
}

// setup binds a fresh simulated driver, opens device 0 and makes a context
// current on the test's OS thread.
func setup(t *testing.T, opts sim.Options) *fixture {
	t.Helper()
	runtime.LockOSThread()
	resetBinding()

	drv := sim.New(opts)
	require.NoError(t, Bind(drv))
	require.NoError(t, Init())

	dev, err := CreateSystemDevice(0)
	require.NoError(t, err)
	ctx, err := dev.CreateContext()
	require.NoError(t, err)
	require.NoError(t, ctx.SetCurrent())

	t.Cleanup(func() {
		_ = ctx.Release()
		_ = dev.Release()
		resetBinding()
		runtime.UnlockOSThread()
	})
	return &fixture{drv: drv, dev: dev, ctx: ctx}
}
