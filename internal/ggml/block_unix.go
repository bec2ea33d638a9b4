//go:build unix

package ggml

import "golang.org/x/sys/unix"

// allocBlock maps an anonymous, private, read-write region outside the Go
// heap. The mapping is page aligned and zero filled.
func allocBlock(size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}
