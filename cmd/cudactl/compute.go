package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/fxnlabs/cudabind/internal/gpu"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func vecAddCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "vecadd",
		Usage: "Add two vectors of 1.0 and 2.0 on the device and check the sum",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "n", Value: 1024, Usage: "Vector length"},
		},
		Action: func(c *cli.Context) (err error) {
			n := c.Int("n")
			m, err := e.manager()
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, m.Close()) }()

			a := make([]float32, n)
			b := make([]float32, n)
			for i := range a {
				a[i] = 1.0
				b[i] = 2.0
			}
			start := time.Now()
			out, err := m.VectorAdd(a, b)
			if err != nil {
				return err
			}
			e.log.Info("vector add complete", zap.Int("n", n), zap.Duration("elapsed", time.Since(start)))

			w := c.App.Writer
			for i := 0; i < min(10, len(out)); i++ {
				fmt.Fprintf(w, "c[%d] = %g\n", i, out[i])
			}
			if err := gpu.VerifyAdd(a, b, out, 1e-6); err != nil {
				return err
			}
			fmt.Fprintf(w, "verified %d elements on %s\n", n, m.DeviceInfo().Name)
			return nil
		},
	}
}

func matMulCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "matmul",
		Usage: "Multiply random matrices on the device and verify against the host",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "m", Value: 256, Usage: "Rows of A"},
			&cli.IntFlag{Name: "k", Value: 256, Usage: "Columns of A and rows of B"},
			&cli.IntFlag{Name: "n", Value: 256, Usage: "Columns of B"},
			&cli.Int64Flag{Name: "seed", Value: 1, Usage: "Random seed"},
			&cli.Float64Flag{Name: "tolerance", Value: 1e-4, Usage: "Relative tolerance"},
			&cli.StringFlag{Name: "verify", Value: "full", Usage: "Verification: full (host product) or freivalds"},
		},
		Action: func(c *cli.Context) (err error) {
			rows, inner, cols := c.Int("m"), c.Int("k"), c.Int("n")
			m, err := e.manager()
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, m.Close()) }()

			rng := rand.New(rand.NewSource(c.Int64("seed")))
			a := random(rng, rows*inner)
			b := random(rng, inner*cols)

			start := time.Now()
			out, err := m.MatrixMultiply(a, b, rows, inner, cols)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)
			tol := c.Float64("tolerance")
			switch c.String("verify") {
			case "full":
				err = gpu.VerifyMultiply(a, b, out, rows, inner, cols, tol)
			case "freivalds":
				err = gpu.Freivalds(a, b, out, rows, inner, cols, 16, rng, tol)
			default:
				err = fmt.Errorf("unknown verification %q", c.String("verify"))
			}
			if err != nil {
				return err
			}
			gflops := 2 * float64(rows) * float64(inner) * float64(cols) / elapsed.Seconds() / 1e9
			fmt.Fprintf(c.App.Writer, "%dx%dx%d verified in %s (%.2f GFLOPS, %s)\n",
				rows, inner, cols, elapsed, gflops, m.Driver())
			return nil
		},
	}
}

func random(rng *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = rng.Float32()*2 - 1
	}
	return out
}
