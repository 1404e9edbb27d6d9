// Package kernels provides the device code shipped with cudabind.
package kernels

import _ "embed"

// PTX holds the vecAdd, matMul and fill entry points compiled from kernels.cu.
//
//go:embed kernels.ptx
var PTX []byte

// Entry point names declared in PTX.
const (
	VectorAdd = "vecAdd"
	MatMul    = "matMul"
	Fill      = "fill"
)

// Entries returns every entry point name declared in PTX.
func Entries() []string {
	return []string{VectorAdd, MatMul, Fill}
}
