package gpu

import (
	"fmt"
	"time"

	"github.com/fxnlabs/cudabind/cuda"
	"github.com/fxnlabs/cudabind/internal/metrics"
	"github.com/fxnlabs/cudabind/kernels"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	linearBlock = 256
	tile        = 16
)

// releaser collects resources for release in reverse acquisition order.
type releaser []interface{ Release() error }

func (r *releaser) add(res interface{ Release() error }) { *r = append(*r, res) }

func (r releaser) release() error {
	var err error
	for i := len(r) - 1; i >= 0; i-- {
		err = multierr.Append(err, r[i].Release())
	}
	return err
}

func (m *Manager) observe(kernel string, start time.Time) {
	metrics.KernelDuration.WithLabelValues(kernel).Observe(float64(time.Since(start).Microseconds()) / 1000)
}

// VectorAdd returns a+b computed by the vecAdd kernel.
func (m *Manager) VectorAdd(a, b []float32) ([]float32, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: vector lengths %d and %d differ", cuda.ErrInvalidArgument, len(a), len(b))
	}
	c := make([]float32, len(a))
	if len(a) == 0 {
		return c, nil
	}
	err := m.do(func() (err error) {
		var res releaser
		defer func() { err = multierr.Append(err, res.release()) }()

		size := cuda.ByteLen[float32](len(a))
		bufA, err := cuda.AllocateFrom(a, size)
		if err != nil {
			return err
		}
		res.add(bufA)
		bufB, err := cuda.AllocateFrom(b, size)
		if err != nil {
			return err
		}
		res.add(bufB)
		bufC, err := cuda.Allocate(size)
		if err != nil {
			return err
		}
		res.add(bufC)

		args, err := cuda.Pack(cuda.BufferArg(bufA), cuda.BufferArg(bufB), cuda.BufferArg(bufC), cuda.Int32Arg(int32(len(a))))
		if err != nil {
			return err
		}
		res.add(args)

		start := time.Now()
		if err := m.kernels[kernels.VectorAdd].Launch(cuda.Linear(len(a), linearBlock), nil, args); err != nil {
			return err
		}
		if err := m.ctx.Synchronize(); err != nil {
			return err
		}
		m.observe(kernels.VectorAdd, start)
		return cuda.CopyToHost(bufC, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// MatrixMultiply computes C = A×B with A m×k, B k×n and C m×n, all row-major.
// Uploads, the launch and the download are queued on one stream.
func (m *Manager) MatrixMultiply(a, b []float32, rows, inner, cols int) ([]float32, error) {
	if rows < 0 || inner < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%dx%d", cuda.ErrInvalidArgument, rows, inner, cols)
	}
	if len(a) != rows*inner {
		return nil, fmt.Errorf("%w: matrix A size mismatch: expected %d, got %d", cuda.ErrInvalidArgument, rows*inner, len(a))
	}
	if len(b) != inner*cols {
		return nil, fmt.Errorf("%w: matrix B size mismatch: expected %d, got %d", cuda.ErrInvalidArgument, inner*cols, len(b))
	}
	c := make([]float32, rows*cols)
	if len(c) == 0 {
		return c, nil
	}

	err := m.do(func() (err error) {
		var res releaser
		var s *cuda.Stream
		defer func() {
			// Staging regions must outlive any copy still queued on s.
			if s != nil {
				err = multierr.Append(err, s.Sync())
			}
			err = multierr.Append(err, res.release())
		}()

		s, err = cuda.CreateStream()
		if err != nil {
			return err
		}
		res.add(s)

		bufA, upA, err := cuda.AllocateFromAsync(a, cuda.ByteLen[float32](len(a)), s)
		if err != nil {
			return err
		}
		res.add(bufA)
		res.add(upA)
		bufB, upB, err := cuda.AllocateFromAsync(b, cuda.ByteLen[float32](len(b)), s)
		if err != nil {
			return err
		}
		res.add(bufB)
		res.add(upB)
		bufC, err := cuda.Allocate(cuda.ByteLen[float32](len(c)))
		if err != nil {
			return err
		}
		res.add(bufC)

		args, err := cuda.Pack(cuda.BufferArg(bufA), cuda.BufferArg(bufB), cuda.BufferArg(bufC),
			cuda.Int32Arg(int32(rows)), cuda.Int32Arg(int32(cols)), cuda.Int32Arg(int32(inner)))
		if err != nil {
			return err
		}
		res.add(args)

		cfg := cuda.LaunchConfig{
			Grid:  cuda.Dim3{X: (cols + tile - 1) / tile, Y: (rows + tile - 1) / tile, Z: 1},
			Block: cuda.Dim3{X: tile, Y: tile, Z: 1},
		}
		start := time.Now()
		if err := m.kernels[kernels.MatMul].Launch(cfg, s, args); err != nil {
			return err
		}
		down, err := cuda.CopyToHostAsync(bufC, c, s)
		if err != nil {
			return err
		}
		if err := down.Wait(); err != nil {
			return err
		}
		m.observe(kernels.MatMul, start)
		m.log.Debug("matrix multiply complete",
			zap.Int("m", rows), zap.Int("k", inner), zap.Int("n", cols),
			zap.Duration("elapsed", time.Since(start)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Fill returns n copies of v written by the fill kernel.
func (m *Manager) Fill(n int, v float32) ([]float32, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: length %d", cuda.ErrInvalidArgument, n)
	}
	out := make([]float32, n)
	if n == 0 {
		return out, nil
	}
	err := m.do(func() (err error) {
		var res releaser
		defer func() { err = multierr.Append(err, res.release()) }()

		buf, err := cuda.Allocate(cuda.ByteLen[float32](n))
		if err != nil {
			return err
		}
		res.add(buf)
		args, err := cuda.Pack(cuda.BufferArg(buf), cuda.Float32Arg(v), cuda.Int32Arg(int32(n)))
		if err != nil {
			return err
		}
		res.add(args)

		start := time.Now()
		if err := m.kernels[kernels.Fill].Launch(cuda.Linear(n, linearBlock), nil, args); err != nil {
			return err
		}
		m.observe(kernels.Fill, start)
		return cuda.CopyToHost(buf, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
