package serialization

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// Common errors.
var (
	ErrUnsupportedType  = errors.New("type cannot be encoded")
	ErrNotPointer       = errors.New("decode target is not a non-nil pointer")
	ErrInvalidBool      = errors.New("invalid bool byte")
	ErrSequenceTooLong  = errors.New("sequence length exceeds limit")
	ErrIntegerOverflow  = errors.New("integer does not fit the platform int")
	ErrChecksumMismatch = errors.New("checksum mismatch: file may be corrupted")
	ErrFileClosed       = errors.New("model file is closed")
)

// DecodeError reports a failed record decode.
//
// Err is io.EOF when the stream ended cleanly before the first byte of the
// record and io.ErrUnexpectedEOF when it ended inside the record; use
// errors.Is to tell end-of-records from corruption.
type DecodeError struct {
	Type   reflect.Type // Record type being decoded
	Offset int64        // Bytes of the record consumed before the failure
	Err    error        // Underlying cause
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at byte %d: %v", e.Type, e.Offset, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
