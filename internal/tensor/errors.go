package tensor

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Common errors.
var (
	ErrOutOfBounds         = errors.New("access out of tensor bounds")
	ErrShapeMismatch       = errors.New("shape does not match dimension")
	ErrInvalidDataType     = errors.New("invalid datatype token")
	ErrInvalidDimension    = errors.New("invalid dimension token")
	ErrUnknownNativeType   = errors.New("unknown native type tag")
	ErrUnsupportedDataType = errors.New("datatype cannot hold data")

	// ErrArenaExhausted is carried by the panic raised when a well-formed
	// allocation does not fit in the arena.
	ErrArenaExhausted = errors.New("arena exhausted")
)

// BoundsError describes a rejected read, write or index access.
type BoundsError struct {
	Op     string // Operation name (e.g., "WriteBytes", "SetI32At")
	Offset int    // Start of the access, in bytes or elements depending on Op
	Len    int    // Length of the access, in the same unit as Offset
	Limit  int    // Capacity the access was checked against
}

// Error implements the error interface.
func (e *BoundsError) Error() string {
	return fmt.Sprintf("%s: offset %d length %d exceeds limit %d", e.Op, e.Offset, e.Len, e.Limit)
}

// Unwrap returns ErrOutOfBounds so callers can match with errors.Is.
func (e *BoundsError) Unwrap() error {
	return ErrOutOfBounds
}

// fatalf logs a broken allocation or lifetime contract and panics with the
// resulting error. These are programming errors, not data errors.
func fatalf(log logrus.FieldLogger, fields logrus.Fields, format string, args ...any) {
	fatal(log, fields, errors.Errorf(format, args...))
}

func fatal(log logrus.FieldLogger, fields logrus.Fields, err error) {
	log.WithFields(fields).Error(err.Error())
	panic(err)
}
