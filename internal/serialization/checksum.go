package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
)

// Checksum is the SHA-256 digest of a model file's stored bytes.
type Checksum [sha256.Size]byte

// String returns the lowercase hex digest.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

// ParseChecksum parses a hex digest.
func ParseChecksum(s string) (Checksum, error) {
	var c Checksum
	b, err := hex.DecodeString(s)
	if err != nil {
		return c, errors.Wrap(err, "serialization: parse checksum")
	}
	if len(b) != len(c) {
		return c, errors.Errorf("serialization: checksum has %d bytes, want %d", len(b), len(c))
	}
	copy(c[:], b)
	return c, nil
}

// SumReader computes the checksum of everything read from r.
func SumReader(r io.Reader) (Checksum, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Checksum{}, errors.Wrap(err, "serialization: checksum stream")
	}
	var c Checksum
	copy(c[:], h.Sum(nil))
	return c, nil
}

// Verify returns ErrChecksumMismatch when c differs from want.
func (c Checksum) Verify(want Checksum) error {
	if c != want {
		return errors.Wrapf(ErrChecksumMismatch, "got %s, want %s", c, want)
	}
	return nil
}
