package serialization

import (
	"bufio"
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Compression selects the framing of a model stream.
type Compression int

// Supported framings.
const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

// Frame magic numbers as they appear on the wire.
var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4Magic  = []byte{0x04, 0x22, 0x4D, 0x18}
)

// String returns the compression name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// ParseCompression parses a compression name. An empty name means none.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, errors.Errorf("serialization: unknown compression %q", name)
	}
}

// Stream is a decompressed model stream. Records are decoded from a Stream
// exactly as from a raw one.
type Stream struct {
	r           io.Reader
	compression Compression
	release     func()
}

// OpenStream sniffs the framing of r and returns a reader over the raw
// record bytes. Unrecognized input, including an empty stream, is treated
// as uncompressed.
//
// The sniffing buffers r, so the caller must read records through the
// returned Stream rather than r.
func OpenStream(r io.Reader) (*Stream, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "serialization: sniff stream header")
	}

	switch {
	case bytes.Equal(head, zstdMagic):
		dec, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, errors.Wrap(err, "serialization: open zstd stream")
		}
		return &Stream{r: dec, compression: CompressionZstd, release: dec.Close}, nil
	case bytes.Equal(head, lz4Magic):
		return &Stream{r: lz4.NewReader(br), compression: CompressionLZ4}, nil
	default:
		return &Stream{r: br, compression: CompressionNone}, nil
	}
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Compression returns the framing detected by OpenStream.
func (s *Stream) Compression() Compression {
	return s.compression
}

// Close releases decoder resources. It does not close the underlying reader.
func (s *Stream) Close() error {
	if s.release != nil {
		s.release()
		s.release = nil
	}
	return nil
}

// StreamWriter frames records written to it with the chosen compression.
type StreamWriter struct {
	w           io.Writer
	closer      io.Closer
	compression Compression
}

// NewStreamWriter returns a writer producing the given framing on w. Close
// must be called to flush the final frame.
func NewStreamWriter(w io.Writer, c Compression) (*StreamWriter, error) {
	switch c {
	case CompressionNone:
		return &StreamWriter{w: w, compression: c}, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			return nil, errors.Wrap(err, "serialization: create zstd writer")
		}
		return &StreamWriter{w: enc, closer: enc, compression: c}, nil
	case CompressionLZ4:
		zw := lz4.NewWriter(w)
		return &StreamWriter{w: zw, closer: zw, compression: c}, nil
	default:
		return nil, errors.Errorf("serialization: unknown compression %d", int(c))
	}
}

// Write implements io.Writer.
func (s *StreamWriter) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Compression returns the framing produced by the writer.
func (s *StreamWriter) Compression() Compression {
	return s.compression
}

// Close flushes the final frame. It does not close the underlying writer.
func (s *StreamWriter) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	if err != nil {
		return errors.Wrapf(err, "serialization: close %s stream", s.compression)
	}
	return nil
}
