package gpu

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// Float32ToFloat64 converts a slice of float32 to float64.
func Float32ToFloat64(input []float32) []float64 {
	output := make([]float64, len(input))
	for i, v := range input {
		output[i] = float64(v)
	}
	return output
}

// Float64ToFloat32 converts a slice of float64 to float32.
func Float64ToFloat32(input []float64) []float32 {
	output := make([]float32, len(input))
	for i, v := range input {
		output[i] = float32(v)
	}
	return output
}

// ReferenceMultiply computes A×B on the host in float64.
func ReferenceMultiply(a, b []float32, m, k, n int) []float64 {
	if m == 0 || k == 0 || n == 0 {
		return make([]float64, m*n)
	}
	var c mat.Dense
	c.Mul(mat.NewDense(m, k, Float32ToFloat64(a)), mat.NewDense(k, n, Float32ToFloat64(b)))
	return c.RawMatrix().Data
}

// VerifyMultiply checks a device product against the host reference. The
// tolerance is relative to the largest magnitude in the reference.
func VerifyMultiply(a, b, c []float32, m, k, n int, tol float64) error {
	if len(c) != m*n {
		return fmt.Errorf("result size mismatch: expected %d, got %d", m*n, len(c))
	}
	want := ReferenceMultiply(a, b, m, k, n)
	got := Float32ToFloat64(c)
	scale := 1.0
	if len(want) > 0 {
		scale = max(scale, floats.Norm(want, math.Inf(1)))
	}
	for i := range want {
		if !scalar.EqualWithinAbs(want[i], got[i], tol*scale) {
			return fmt.Errorf("element (%d,%d): expected %g, got %g", i/n, i%n, want[i], got[i])
		}
	}
	return nil
}

// VerifyAdd checks c == a+b element-wise within tol.
func VerifyAdd(a, b, c []float32, tol float64) error {
	if len(a) != len(b) || len(a) != len(c) {
		return fmt.Errorf("length mismatch: %d, %d, %d", len(a), len(b), len(c))
	}
	want := Float32ToFloat64(a)
	floats.Add(want, Float32ToFloat64(b))
	got := Float32ToFloat64(c)
	if !floats.EqualApprox(want, got, tol) {
		for i := range want {
			if !scalar.EqualWithinAbsOrRel(want[i], got[i], tol, tol) {
				return fmt.Errorf("element %d: expected %g, got %g", i, want[i], got[i])
			}
		}
	}
	return nil
}

// Freivalds probabilistically checks C = A×B in O(n²) per round: for a random
// 0/1 vector r it compares A(Br) with Cr. A wrong product survives a round
// with probability at most 1/2.
func Freivalds(a, b, c []float32, m, k, n, rounds int, rng *rand.Rand, tol float64) error {
	if len(a) != m*k || len(b) != k*n || len(c) != m*n {
		return fmt.Errorf("dimension mismatch for %dx%dx%d", m, k, n)
	}
	if m == 0 || n == 0 {
		return nil
	}
	cm := mat.NewDense(m, n, Float32ToFloat64(c))
	if k == 0 {
		if mat.Norm(cm, math.Inf(1)) > tol {
			return fmt.Errorf("product with empty inner dimension is not zero")
		}
		return nil
	}
	am := mat.NewDense(m, k, Float32ToFloat64(a))
	bm := mat.NewDense(k, n, Float32ToFloat64(b))
	scale := max(1, mat.Norm(am, math.Inf(1))*mat.Norm(bm, math.Inf(1)))

	r := mat.NewVecDense(n, nil)
	var br, abr, cr mat.VecDense
	for round := 0; round < rounds; round++ {
		for i := 0; i < n; i++ {
			r.SetVec(i, float64(rng.Intn(2)))
		}
		br.MulVec(bm, r)
		abr.MulVec(am, &br)
		cr.MulVec(cm, r)
		if !mat.EqualApprox(&abr, &cr, tol*scale) {
			return fmt.Errorf("round %d: A(Br) differs from Cr", round)
		}
	}
	return nil
}
