//go:build unix

package cuda

import "golang.org/x/sys/unix"

func mapHost(n int) ([]byte, error) {
	return unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func unmapHost(mem []byte) error {
	return unix.Munmap(mem)
}
