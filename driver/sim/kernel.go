package sim

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// Kernel is a Go implementation of a device entry point.
type Kernel struct {
	// Params holds the byte width of each formal parameter, in declaration order.
	Params []int
	Run    func(e *Exec) error
}

// Register binds name to k. Modules that declare an entry called name launch k.
func (d *Driver) Register(name string, k Kernel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kernels[name] = k
}

// Exec is the view a kernel has of one launch. Run is called with the driver
// lock held; Exec methods must not be used after Run returns.
type Exec struct {
	Grid      [3]int
	Block     [3]int
	SharedMem int

	args [][]byte
	d    *Driver
}

// Threads returns the total number of threads in the launch.
func (e *Exec) Threads() int {
	return e.Grid[0] * e.Grid[1] * e.Grid[2] * e.Block[0] * e.Block[1] * e.Block[2]
}

func (e *Exec) Arg(i int) []byte { return e.args[i] }

func (e *Exec) Ptr(i int) uint64 { return binary.NativeEndian.Uint64(e.args[i]) }

func (e *Exec) Int32(i int) int32 { return int32(binary.NativeEndian.Uint32(e.args[i])) }

func (e *Exec) Float32(i int) float32 {
	return math.Float32frombits(binary.NativeEndian.Uint32(e.args[i]))
}

// Bytes returns n bytes of device memory starting at addr.
func (e *Exec) Bytes(addr uint64, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative length %d", n)
	}
	a, ok := e.d.find(addr, n)
	if !ok {
		return nil, fmt.Errorf("address 0x%x+%d is not inside any allocation", addr, n)
	}
	off := addr - a.addr
	return a.data[off : off+uint64(n)], nil
}

// Float32s returns n float32 values of device memory starting at addr.
func (e *Exec) Float32s(addr uint64, n int) ([]float32, error) {
	if addr%4 != 0 {
		return nil, fmt.Errorf("misaligned float32 address 0x%x", addr)
	}
	b, err := e.Bytes(addr, n*4)
	if err != nil || n == 0 {
		return nil, err
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n), nil
}
