package gpu

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferenceMultiply(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{5, 6, 7, 8}
	assert.Equal(t, []float64{19, 22, 43, 50}, ReferenceMultiply(a, b, 2, 2, 2))
	assert.Equal(t, []float64{0, 0}, ReferenceMultiply(nil, nil, 1, 0, 2))
}

func TestVerifyMultiply(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{5, 6, 7, 8}

	assert.NoError(t, VerifyMultiply(a, b, []float32{19, 22, 43, 50}, 2, 2, 2, 1e-6))
	assert.NoError(t, VerifyMultiply(a, b, []float32{19, 22, 43, 50.000001}, 2, 2, 2, 1e-6))

	err := VerifyMultiply(a, b, []float32{19, 22, 44, 50}, 2, 2, 2, 1e-6)
	assert.ErrorContains(t, err, "element (1,0)")

	assert.Error(t, VerifyMultiply(a, b, []float32{19}, 2, 2, 2, 1e-6))
}

func TestVerifyAdd(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{3, 4}
	assert.NoError(t, VerifyAdd(a, b, []float32{4, 6}, 1e-9))
	assert.ErrorContains(t, VerifyAdd(a, b, []float32{4, 7}, 1e-9), "element 1")
	assert.Error(t, VerifyAdd(a, b, []float32{4}, 1e-9))
}

func TestConversions(t *testing.T) {
	assert.Equal(t, []float64{1.5, -2}, Float32ToFloat64([]float32{1.5, -2}))
	assert.Equal(t, []float32{1.5, -2}, Float64ToFloat32([]float64{1.5, -2}))
	assert.Empty(t, Float32ToFloat64(nil))
}

func TestFreivalds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{7, 8, 9, 10, 11, 12}

	assert.NoError(t, Freivalds(a, b, []float32{58, 64, 139, 154}, 2, 3, 2, 20, rng, 1e-6))

	// Every nonzero error column is caught in 20 rounds except with probability 2^-20.
	err := Freivalds(a, b, []float32{58, 64, 139, 155}, 2, 3, 2, 20, rng, 1e-6)
	assert.ErrorContains(t, err, "differs")

	assert.Error(t, Freivalds(a, b, []float32{58}, 2, 3, 2, 1, rng, 1e-6))
	assert.NoError(t, Freivalds(nil, nil, []float32{0, 0}, 1, 0, 2, 1, rng, 1e-6))
}
