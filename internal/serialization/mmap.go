package serialization

import (
	"bytes"
	"crypto/sha256"
	"os"

	"github.com/pkg/errors"
)

// File is a model file mapped read-only into memory. Records are decoded
// from the mapping through Stream, so large files are paged in by the OS
// rather than copied.
//
// Important: Always call Close() when done to unmap the file (use defer).
type File struct {
	path   string
	file   *os.File
	data   []byte // mapped region (read-only)
	mapped bool
	closed bool
}

// OpenFile opens and maps the model file at path.
func OpenFile(path string) (*File, error) {
	//nolint:gosec // G304: model paths come from the caller by design of the loader
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "serialization: open model file")
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "serialization: stat model file")
	}

	f := &File{path: path, file: file}
	if size := int(stat.Size()); size > 0 {
		f.data, f.mapped, err = mmapFile(file, size)
		if err != nil {
			_ = file.Close()
			return nil, errors.Wrapf(err, "serialization: map %s", path)
		}
	}
	return f, nil
}

// Path returns the path the file was opened from.
func (f *File) Path() string {
	return f.path
}

// Size returns the stored size in bytes.
func (f *File) Size() int {
	return len(f.data)
}

// Bytes returns the mapped contents. The slice is read-only and valid only
// until Close.
func (f *File) Bytes() ([]byte, error) {
	if f.closed {
		return nil, ErrFileClosed
	}
	return f.data, nil
}

// Stream returns a record stream over the file, decompressing it if the file
// is zstd or LZ4 framed. Each call starts from the beginning of the file.
func (f *File) Stream() (*Stream, error) {
	if f.closed {
		return nil, ErrFileClosed
	}
	return OpenStream(bytes.NewReader(f.data))
}

// Checksum returns the SHA-256 digest of the stored (possibly compressed)
// bytes.
func (f *File) Checksum() (Checksum, error) {
	if f.closed {
		return Checksum{}, ErrFileClosed
	}
	return sha256.Sum256(f.data), nil
}

// Close unmaps and closes the file. Calling Close twice is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	var err error
	if f.mapped {
		err = munmapFile(f.data)
	}
	f.data = nil

	if closeErr := f.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
