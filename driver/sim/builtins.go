package sim

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

func registerBuiltins(d *Driver) {
	d.kernels["vecAdd"] = Kernel{Params: []int{8, 8, 8, 4}, Run: vecAdd}
	d.kernels["matMul"] = Kernel{Params: []int{8, 8, 8, 4, 4, 4}, Run: matMul}
	d.kernels["fill"] = Kernel{Params: []int{8, 4, 4}, Run: fill}
}

// vecAdd(const float* a, const float* b, float* c, int n)
func vecAdd(e *Exec) error {
	n := min(int(e.Int32(3)), e.Threads())
	if n <= 0 {
		return nil
	}
	a, err := e.Float32s(e.Ptr(0), n)
	if err != nil {
		return err
	}
	b, err := e.Float32s(e.Ptr(1), n)
	if err != nil {
		return err
	}
	c, err := e.Float32s(e.Ptr(2), n)
	if err != nil {
		return err
	}
	for i := range c {
		c[i] = a[i] + b[i]
	}
	return nil
}

// matMul(const float* A, const float* B, float* C, int M, int N, int K)
// with A M×K, B K×N and C M×N in row-major order. x covers columns, y covers rows.
func matMul(e *Exec) error {
	m, n, k := int(e.Int32(3)), int(e.Int32(4)), int(e.Int32(5))
	if m < 0 || n < 0 || k < 0 {
		return fmt.Errorf("invalid dimensions %dx%dx%d", m, n, k)
	}
	rows := min(m, e.Grid[1]*e.Block[1])
	cols := min(n, e.Grid[0]*e.Block[0])
	if rows == 0 || cols == 0 {
		return nil
	}
	a, err := e.Float32s(e.Ptr(0), m*k)
	if err != nil {
		return err
	}
	b, err := e.Float32s(e.Ptr(1), k*n)
	if err != nil {
		return err
	}
	c, err := e.Float32s(e.Ptr(2), m*n)
	if err != nil {
		return err
	}
	if k == 0 {
		for i := 0; i < rows; i++ {
			clear(c[i*n : i*n+cols])
		}
		return nil
	}
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: rows, Cols: k, Stride: k, Data: a},
		blas32.General{Rows: k, Cols: cols, Stride: n, Data: b},
		0,
		blas32.General{Rows: rows, Cols: cols, Stride: n, Data: c},
	)
	return nil
}

// fill(float* dst, float value, int n)
func fill(e *Exec) error {
	n := min(int(e.Int32(2)), e.Threads())
	if n <= 0 {
		return nil
	}
	dst, err := e.Float32s(e.Ptr(0), n)
	if err != nil {
		return err
	}
	v := e.Float32(1)
	for i := range dst {
		dst[i] = v
	}
	return nil
}
