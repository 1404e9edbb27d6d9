package cuda

import (
	"encoding/binary"
	"math"
	"testing"
	"unsafe"

	"github.com/fxnlabs/cudabind/driver/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackLayout(t *testing.T) {
	setup(t, sim.Options{})

	var bufs [3]*Buffer
	for i := range bufs {
		b, err := Allocate(64)
		require.NoError(t, err)
		defer b.Release()
		bufs[i] = b
	}

	args, err := Pack(BufferArg(bufs[0]), BufferArg(bufs[1]), BufferArg(bufs[2]), Int32Arg(1024))
	require.NoError(t, err)
	defer args.Release()

	assert.Equal(t, 4, args.Len())
	assert.Equal(t, []Slot{
		{Offset: 0, Size: 8},
		{Offset: 8, Size: 8},
		{Offset: 16, Size: 8},
		{Offset: 24, Size: 4},
	}, args.Slots())

	values := args.Values()
	require.Len(t, values, 28)
	for i, b := range bufs {
		addr, err := b.DevicePointer()
		require.NoError(t, err)
		assert.Equal(t, addr, binary.NativeEndian.Uint64(values[i*8:]))
	}
	assert.Equal(t, uint32(1024), binary.NativeEndian.Uint32(values[24:]))
}

func TestPackAlignment(t *testing.T) {
	args, err := Pack(Int32Arg(-1), Float64Arg(0.5), Float32Arg(2), Uint64Arg(7))
	require.NoError(t, err)
	defer args.Release()

	assert.Equal(t, []Slot{
		{Offset: 0, Size: 4},
		{Offset: 8, Size: 8},
		{Offset: 16, Size: 4},
		{Offset: 24, Size: 8},
	}, args.Slots())

	values := args.Values()
	assert.Equal(t, uint32(0xffffffff), binary.NativeEndian.Uint32(values[0:]))
	assert.Equal(t, math.Float64bits(0.5), binary.NativeEndian.Uint64(values[8:]))
	assert.Equal(t, math.Float32bits(2), binary.NativeEndian.Uint32(values[16:]))
	assert.Equal(t, uint64(7), binary.NativeEndian.Uint64(values[24:]))
}

func TestPackEmpty(t *testing.T) {
	args, err := Pack()
	require.NoError(t, err)
	assert.Zero(t, args.Len())
	assert.Nil(t, args.Values())
	assert.NoError(t, args.Release())
}

func TestPackReleasedBuffer(t *testing.T) {
	setup(t, sim.Options{})

	b, err := Allocate(8)
	require.NoError(t, err)
	require.NoError(t, b.Release())

	_, err = Pack(Int32Arg(1), BufferArg(b))
	require.ErrorIs(t, err, ErrResourceNotFound)
	assert.Contains(t, err.Error(), "argument 1")
}

func TestPackUnsetArgument(t *testing.T) {
	_, err := Pack(Int32Arg(1), Arg{})
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "argument 1")
}

func TestPackPointerTable(t *testing.T) {
	args, err := Pack(Int32Arg(3), Float64Arg(1.5), PointerArg(0x1000))
	require.NoError(t, err)
	defer args.Release()

	assert.Equal(t, ptrSize, args.Slots()[2].Size)
	base := uintptr(unsafe.Pointer(&args.region.mem[args.table]))
	for i, slot := range args.Slots() {
		entry := *(*uintptr)(unsafe.Pointer(&args.region.mem[i*ptrSize]))
		assert.Equal(t, base+uintptr(slot.Offset), entry, "table entry %d", i)
	}
}
