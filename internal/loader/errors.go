package loader

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/ggmlio/internal/tensor"
)

// Common errors.
var (
	// ErrShapeMismatch is returned when the number of extents does not equal
	// the policy's rank. It is the same value as tensor.ErrShapeMismatch.
	ErrShapeMismatch = tensor.ErrShapeMismatch

	// ErrUnsupportedDataType is returned when materializing into a datatype
	// that cannot hold data.
	ErrUnsupportedDataType = tensor.ErrUnsupportedDataType

	ErrEmptyRecord        = errors.New("record type encodes to zero bytes")
	ErrUnknownRecord      = errors.New("record not declared in manifest")
	ErrUnsupportedVersion = errors.New("unsupported manifest version")
)

// ConfigError reports a policy that was rejected at registration time.
type ConfigError struct {
	Field string // Offending setting (e.g., "datatype", "dimension", "record")
	Value string // Value as supplied
	Err   error  // Underlying cause
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// RecordError reports the record at which ReadAll stopped on corrupt input.
type RecordError struct {
	Index int   // Zero-based index of the failing record
	Err   error // Underlying cause
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RecordError) Unwrap() error {
	return e.Err
}
