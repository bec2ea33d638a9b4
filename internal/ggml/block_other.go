//go:build !unix

package ggml

import "unsafe"

// allocBlock allocates the block on the Go heap, over-allocating so the
// returned slice starts on a MemAlign boundary.
func allocBlock(size int) ([]byte, func([]byte) error, error) {
	raw := make([]byte, size+MemAlign)
	//nolint:gosec // address arithmetic only
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(raw)))
	pad := int((MemAlign - addr%MemAlign) % MemAlign)
	return raw[pad : pad+size : pad+size], func([]byte) error { return nil }, nil
}
