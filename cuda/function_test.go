package cuda

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fxnlabs/cudabind/driver/sim"
	"github.com/fxnlabs/cudabind/internal/metrics"
	"github.com/fxnlabs/cudabind/kernels"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorAdd(t *testing.T) {
	f := setup(t, sim.Options{})

	mod, err := LoadModuleData(kernels.PTX)
	require.NoError(t, err)
	defer mod.Unload()
	fn, err := mod.Function(kernels.VectorAdd)
	require.NoError(t, err)
	assert.Equal(t, "vecAdd", fn.Name())

	const n = 1024
	a := make([]float32, n)
	b := make([]float32, n)
	for i := range a {
		a[i] = 1.0
		b[i] = 2.0
	}
	size := ByteLen[float32](n)
	bufA, err := AllocateFrom(a, size)
	require.NoError(t, err)
	defer bufA.Release()
	bufB, err := AllocateFrom(b, size)
	require.NoError(t, err)
	defer bufB.Release()
	bufC, err := Allocate(size)
	require.NoError(t, err)
	defer bufC.Release()

	args, err := Pack(BufferArg(bufA), BufferArg(bufB), BufferArg(bufC), Int32Arg(n))
	require.NoError(t, err)
	defer args.Release()

	before := testutil.ToFloat64(metrics.KernelLaunches.WithLabelValues("ok"))
	require.NoError(t, fn.Launch(Linear(n, 256), nil, args))
	require.NoError(t, f.ctx.Synchronize())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.KernelLaunches.WithLabelValues("ok")))

	c := make([]float32, n)
	require.NoError(t, CopyToHost(bufC, c))
	for i := 0; i < 10; i++ {
		assert.InDelta(t, 3.0, c[i], 1e-6, "element %d", i)
	}
	for i, v := range c {
		require.Equal(t, float32(3), v, "element %d", i)
	}
}

func TestMatMulOnStream(t *testing.T) {
	setup(t, sim.Options{})

	path := filepath.Join(t.TempDir(), "kernels.ptx")
	require.NoError(t, os.WriteFile(path, kernels.PTX, 0o600))
	mod, err := LoadModule(path)
	require.NoError(t, err)
	defer mod.Release()
	fn, err := mod.Function(kernels.MatMul)
	require.NoError(t, err)

	s, err := CreateStream()
	require.NoError(t, err)
	defer s.Release()

	// 2x3 times 3x2
	a := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{7, 8, 9, 10, 11, 12}
	bufA, upA, err := AllocateFromAsync(a, ByteLen[float32](6), s)
	require.NoError(t, err)
	defer bufA.Release()
	bufB, upB, err := AllocateFromAsync(b, ByteLen[float32](6), s)
	require.NoError(t, err)
	defer bufB.Release()
	bufC, err := Allocate(ByteLen[float32](4))
	require.NoError(t, err)
	defer bufC.Release()

	args, err := Pack(BufferArg(bufA), BufferArg(bufB), BufferArg(bufC), Int32Arg(2), Int32Arg(2), Int32Arg(3))
	require.NoError(t, err)
	defer args.Release()

	cfg := LaunchConfig{Grid: Dim3{1, 1, 1}, Block: Dim3{16, 16, 1}}
	require.NoError(t, fn.Launch(cfg, s, args))

	c := make([]float32, 4)
	down, err := CopyToHostAsync(bufC, c, s)
	require.NoError(t, err)
	require.NoError(t, down.Wait())
	require.NoError(t, upA.Finish())
	require.NoError(t, upB.Finish())

	assert.Equal(t, []float32{58, 64, 139, 154}, c)
}

func TestLaunchErrors(t *testing.T) {
	setup(t, sim.Options{})

	mod, err := LoadModuleData(append([]byte(".visible .entry custom(\n)\n"), kernels.PTX...))
	require.NoError(t, err)
	defer mod.Unload()

	t.Run("invalid configuration", func(t *testing.T) {
		fn, err := mod.Function(kernels.Fill)
		require.NoError(t, err)
		err = fn.Launch(LaunchConfig{Grid: Dim3{0, 1, 1}, Block: Dim3{1, 1, 1}}, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		err = fn.Launch(LaunchConfig{Grid: Dim3{1, 1, 1}, Block: Dim3{1, 1, 1}, SharedMemBytes: -1}, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("missing arguments", func(t *testing.T) {
		fn, err := mod.Function(kernels.Fill)
		require.NoError(t, err)
		before := testutil.ToFloat64(metrics.KernelLaunches.WithLabelValues("error"))

		err = fn.Launch(Linear(4, 4), nil, nil)
		require.ErrorIs(t, err, ErrLaunch)
		assert.Equal(t, sim.StatusInvalidValue, StatusOf(err))
		assert.Contains(t, err.Error(), "fill")
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.KernelLaunches.WithLabelValues("error")))
	})

	t.Run("no implementation", func(t *testing.T) {
		fn, err := mod.Function("custom")
		require.NoError(t, err)
		err = fn.Launch(Linear(1, 1), nil, nil)
		require.ErrorIs(t, err, ErrLaunch)
		assert.Equal(t, sim.StatusNotSupported, StatusOf(err))
	})

	t.Run("released arguments", func(t *testing.T) {
		fn, err := mod.Function(kernels.Fill)
		require.NoError(t, err)
		args, err := Pack(PointerArg(0), Float32Arg(1), Int32Arg(0))
		require.NoError(t, err)
		require.NoError(t, args.Release())
		assert.ErrorIs(t, fn.Launch(Linear(1, 1), nil, args), ErrInvalidArgument)
	})

	t.Run("unloaded module", func(t *testing.T) {
		other, err := LoadModuleData(kernels.PTX)
		require.NoError(t, err)
		fn, err := other.Function(kernels.Fill)
		require.NoError(t, err)
		require.NoError(t, other.Unload())

		args, err := Pack(PointerArg(0), Float32Arg(1), Int32Arg(0))
		require.NoError(t, err)
		defer args.Release()
		err = fn.Launch(Linear(1, 1), nil, args)
		require.ErrorIs(t, err, ErrLaunch)
		assert.Equal(t, sim.StatusInvalidHandle, StatusOf(err))
	})
}

func TestLinear(t *testing.T) {
	cfg := Linear(1000, 256)
	assert.Equal(t, Dim3{4, 1, 1}, cfg.Grid)
	assert.Equal(t, Dim3{256, 1, 1}, cfg.Block)

	assert.Equal(t, Dim3{1, 1, 1}, Linear(0, 256).Grid)
	assert.Equal(t, Dim3{1, 1, 1}, Linear(5, 0).Block)
}

func TestModule(t *testing.T) {
	setup(t, sim.Options{})

	t.Run("unknown function", func(t *testing.T) {
		mod, err := LoadModuleData(kernels.PTX)
		require.NoError(t, err)
		defer mod.Unload()

		_, err = mod.Function("vecadd")
		require.ErrorIs(t, err, ErrResourceNotFound)
		assert.Contains(t, err.Error(), "vecadd")
	})

	t.Run("lookups are independent", func(t *testing.T) {
		mod, err := LoadModuleData(kernels.PTX)
		require.NoError(t, err)
		defer mod.Unload()

		a, err := mod.Function(kernels.VectorAdd)
		require.NoError(t, err)
		b, err := mod.Function(kernels.VectorAdd)
		require.NoError(t, err)
		assert.NotEqual(t, a.Handle(), b.Handle())
	})

	t.Run("invalid image", func(t *testing.T) {
		_, err := LoadModuleData([]byte("not device code"))
		assert.ErrorIs(t, err, ErrModuleLoad)
		_, err = LoadModuleData(nil)
		assert.ErrorIs(t, err, ErrModuleLoad)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadModule(filepath.Join(t.TempDir(), "missing.ptx"))
		require.ErrorIs(t, err, ErrModuleLoad)
		assert.Contains(t, err.Error(), "missing.ptx")
	})
}
