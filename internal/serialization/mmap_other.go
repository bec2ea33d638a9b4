//go:build !unix

package serialization

import (
	"io"
	"os"
)

// mmapFile reads the whole file into memory on platforms without mmap.
func mmapFile(f *os.File, size int) ([]byte, bool, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, false, err
	}
	return data, false, nil
}

func munmapFile([]byte) error {
	return nil
}
