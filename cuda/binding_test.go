package cuda

import (
	"path/filepath"
	"testing"

	"github.com/fxnlabs/cudabind/driver"
	"github.com/fxnlabs/cudabind/driver/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBind(t *testing.T) {
	t.Cleanup(resetBinding)

	t.Run("unbound", func(t *testing.T) {
		resetBinding()
		_, err := Bound()
		assert.ErrorIs(t, err, ErrNotBound)
		assert.ErrorIs(t, Init(), ErrNotBound)
		_, err = Allocate(16)
		assert.ErrorIs(t, err, ErrNotBound)
	})

	t.Run("nil driver", func(t *testing.T) {
		resetBinding()
		assert.ErrorIs(t, Bind(nil), ErrInvalidArgument)
	})

	t.Run("second bind fails", func(t *testing.T) {
		resetBinding()
		first := sim.New(sim.Options{})
		require.NoError(t, Bind(first))
		assert.ErrorIs(t, Bind(sim.New(sim.Options{})), ErrAlreadyBound)

		d, err := Bound()
		require.NoError(t, err)
		assert.Same(t, first, d)
	})
}

func TestInit(t *testing.T) {
	t.Cleanup(resetBinding)

	t.Run("success", func(t *testing.T) {
		resetBinding()
		require.NoError(t, Bind(sim.New(sim.Options{Devices: []string{"a", "b"}})))
		require.NoError(t, Init())
		require.NoError(t, Init())

		n, err := DeviceCount()
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("broken installation", func(t *testing.T) {
		resetBinding()
		require.NoError(t, Bind(sim.New(sim.Options{FailInit: true})))

		err := Init()
		require.ErrorIs(t, err, ErrInitialization)
		assert.Equal(t, driver.Status(-1), StatusOf(err))
		// The first result sticks.
		assert.Same(t, err, Init())

		_, err = DeviceCount()
		assert.ErrorIs(t, err, ErrInitialization)
	})
}

func TestLoad(t *testing.T) {
	t.Cleanup(resetBinding)
	resetBinding()

	err := Load(driver.LibraryOptions{Path: filepath.Join(t.TempDir(), "missing.so")})
	require.ErrorIs(t, err, ErrInitialization)
	assert.ErrorIs(t, err, driver.ErrLibraryNotFound)

	_, err = Bound()
	assert.ErrorIs(t, err, ErrNotBound)

	assert.Panics(t, func() {
		MustLoad(driver.LibraryOptions{Path: filepath.Join(t.TempDir(), "missing.so")})
	})
}

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	f := setup(t, sim.Options{})
	_ = f

	assert.Positive(t, logs.FilterMessage("driver bound").Len())
	assert.Positive(t, logs.FilterMessage("context created").Len())
}

func TestDevice(t *testing.T) {
	f := setup(t, sim.Options{Devices: []string{"Simulated A100"}})

	name, err := f.dev.Name()
	require.NoError(t, err)
	assert.Equal(t, "Simulated A100", name)
	assert.Equal(t, 0, f.dev.Index())
	assert.False(t, f.dev.Handle().Null())

	t.Run("independent handles", func(t *testing.T) {
		other, err := CreateSystemDevice(0)
		require.NoError(t, err)
		assert.NotEqual(t, f.dev.Handle(), other.Handle())
		require.NoError(t, other.Release())
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := CreateSystemDevice(1)
		require.ErrorIs(t, err, ErrResourceNotFound)
		assert.Equal(t, driver.StatusNullHandle, StatusOf(err))

		_, err = CreateSystemDevice(-1)
		assert.ErrorIs(t, err, ErrResourceNotFound)
	})
}

func TestContext(t *testing.T) {
	f := setup(t, sim.Options{})

	assert.NoError(t, f.ctx.Synchronize())

	t.Run("destroyed device", func(t *testing.T) {
		dev, err := CreateSystemDevice(0)
		require.NoError(t, err)
		require.NoError(t, dev.Release())

		_, err = CreateContext(dev)
		assert.ErrorIs(t, err, ErrContext)
		assert.ErrorIs(t, err, ErrCreation)
		assert.Equal(t, driver.StatusNullHandle, StatusOf(err))
	})

	t.Run("operations need a current context", func(t *testing.T) {
		require.NoError(t, f.ctx.Release())
		_, err := Allocate(16)
		assert.ErrorIs(t, err, ErrAllocation)
		assert.ErrorIs(t, f.ctx.Synchronize(), ErrContext)
		assert.Equal(t, sim.StatusInvalidContext, StatusOf(f.ctx.Synchronize()))
	})
}
