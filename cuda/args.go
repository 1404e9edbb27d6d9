package cuda

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

const ptrSize = int(unsafe.Sizeof(uintptr(0)))

// Arg is one kernel argument: a buffer's device address or a fixed-width scalar.
type Arg struct {
	buf   *Buffer
	width int
	bits  uint64
}

// BufferArg passes the device address of b in a pointer-sized slot.
func BufferArg(b *Buffer) Arg { return Arg{buf: b, width: ptrSize} }

// PointerArg passes a raw device address in a pointer-sized slot.
func PointerArg(addr uint64) Arg { return Arg{width: ptrSize, bits: addr} }

func Int32Arg(v int32) Arg { return Arg{width: 4, bits: uint64(uint32(v))} }

func Uint32Arg(v uint32) Arg { return Arg{width: 4, bits: uint64(v)} }

func Int64Arg(v int64) Arg { return Arg{width: 8, bits: uint64(v)} }

func Uint64Arg(v uint64) Arg { return Arg{width: 8, bits: v} }

func Float32Arg(v float32) Arg { return Arg{width: 4, bits: uint64(math.Float32bits(v))} }

func Float64Arg(v float64) Arg { return Arg{width: 8, bits: math.Float64bits(v)} }

// Slot locates one argument value inside the value block.
type Slot struct {
	Offset int
	Size   int
}

// PackedArguments is the argument block a launch consumes: a table of pointers,
// one per formal parameter, followed by the values they point at. Values are
// laid out in order at their natural alignment. Nothing checks the block
// against the kernel's signature; order and arity are the caller's contract.
type PackedArguments struct {
	region *hostRegion
	table  int
	slots  []Slot
}

// Pack builds the argument block for args. The block must be released with
// Release once no launch will use it again.
func Pack(args ...Arg) (*PackedArguments, error) {
	if len(args) == 0 {
		return &PackedArguments{}, nil
	}
	p := &PackedArguments{table: len(args) * ptrSize, slots: make([]Slot, len(args))}
	values := make([]uint64, len(args))
	off := 0
	for i, a := range args {
		if a.width != 4 && a.width != 8 {
			return nil, fmt.Errorf("argument %d: %w: no value set", i, ErrInvalidArgument)
		}
		if a.buf != nil {
			addr, err := a.buf.DevicePointer()
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			values[i] = addr
		} else {
			values[i] = a.bits
		}
		off = (off + a.width - 1) / a.width * a.width
		p.slots[i] = Slot{Offset: off, Size: a.width}
		off += a.width
	}

	r, err := allocHost(p.table + off)
	if err != nil {
		return nil, err
	}
	block := r.mem[p.table:]
	for i, s := range p.slots {
		switch s.Size {
		case 4:
			binary.NativeEndian.PutUint32(block[s.Offset:], uint32(values[i]))
		default:
			binary.NativeEndian.PutUint64(block[s.Offset:], values[i])
		}
		*(*uintptr)(unsafe.Pointer(&r.mem[i*ptrSize])) = uintptr(unsafe.Pointer(&block[s.Offset]))
	}
	p.region = r
	return p, nil
}

// Len returns the number of arguments.
func (p *PackedArguments) Len() int { return len(p.slots) }

// Slots returns the layout of the value block.
func (p *PackedArguments) Slots() []Slot {
	out := make([]Slot, len(p.slots))
	copy(out, p.slots)
	return out
}

// Values returns a copy of the contiguous value block.
func (p *PackedArguments) Values() []byte {
	if p.region == nil || p.region.mem == nil {
		return nil
	}
	return append([]byte(nil), p.region.mem[p.table:]...)
}

func (p *PackedArguments) pointer() (unsafe.Pointer, error) {
	if len(p.slots) == 0 {
		return nil, nil
	}
	if p.region == nil || p.region.mem == nil {
		return nil, fmt.Errorf("%w: packed arguments already released", ErrInvalidArgument)
	}
	return p.region.ptr(), nil
}

// Release frees the argument block.
func (p *PackedArguments) Release() error {
	if p.region == nil {
		return nil
	}
	return p.region.release()
}
