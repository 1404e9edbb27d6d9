package cuda

import "unsafe"

// Element is a host element type that can be copied to and from device memory.
type Element interface {
	~uint8 | ~int32 | ~uint32 | ~float32 | ~int64 | ~float64
}

// ByteLen returns the number of bytes n elements of T occupy. Every transfer
// moves exactly ByteLen[T](len(slice)) bytes.
func ByteLen[T Element](n int) int64 {
	var zero T
	return int64(n) * int64(unsafe.Sizeof(zero))
}

func asBytes[T Element](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), ByteLen[T](len(s)))
}
