//go:build unix

package serialization

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile maps a file read-only (Unix implementation).
func mmapFile(f *os.File, size int) ([]byte, bool, error) {
	data, err := unix.Mmap(
		int(f.Fd()), //nolint:gosec // G115: file descriptor fits in int
		0,
		size,
		unix.PROT_READ,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// munmapFile unmaps a region returned by mmapFile.
func munmapFile(data []byte) error {
	return unix.Munmap(data)
}
