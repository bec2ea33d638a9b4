// Package tensor provides arena-backed tensors for the ggmlio module.
package tensor

import (
	"github.com/pkg/errors"

	"github.com/born-ml/ggmlio/internal/ggml"
)

// DataType is the element datatype of a tensor.
type DataType int

// Supported data types. Count is an enumeration sentinel and never describes
// real data.
const (
	I8 DataType = iota
	I16
	I32
	F16
	F32
	Count
)

// Element is the set of Go types a tensor's bytes can be viewed as.
type Element interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// dataTypeTable is the exhaustive mapping between DataType and the engine's
// native tags, with the token accepted by ParseDataType.
var dataTypeTable = [...]struct {
	dt     DataType
	native ggml.Type
	token  string
}{
	{I8, ggml.TypeI8, "i8"},
	{I16, ggml.TypeI16, "i16"},
	{I32, ggml.TypeI32, "i32"},
	{F16, ggml.TypeF16, "f16"},
	{F32, ggml.TypeF32, "f32"},
	{Count, ggml.TypeCount, "count"},
}

// Size returns the byte size of one element, or 0 for Count.
func (dt DataType) Size() int {
	if !dt.valid() {
		return 0
	}
	return dt.Native().Trait().TypeSize
}

// String returns the datatype token.
func (dt DataType) String() string {
	if !dt.valid() {
		return "unknown"
	}
	return dataTypeTable[dt].token
}

// Native returns the engine's tag for the datatype.
func (dt DataType) Native() ggml.Type {
	if !dt.valid() {
		panic(errors.Errorf("tensor: invalid data type %d", int(dt)))
	}
	return dataTypeTable[dt].native
}

// Storable reports whether tensors of this datatype can hold data.
func (dt DataType) Storable() bool {
	return dt.valid() && dt != Count
}

func (dt DataType) valid() bool {
	return dt >= I8 && dt <= Count
}

// DataTypeFromNative maps an engine tag back to a DataType. Tags outside the
// table, such as quantized formats, are rejected with ErrUnknownNativeType.
func DataTypeFromNative(t ggml.Type) (DataType, error) {
	for _, e := range dataTypeTable {
		if e.native == t {
			return e.dt, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownNativeType, "tag %d (%s)", uint32(t), t)
}

// ParseDataType parses a datatype token. Tokens are case-sensitive.
func ParseDataType(token string) (DataType, error) {
	for _, e := range dataTypeTable {
		if e.token == token {
			return e.dt, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidDataType, "%q", token)
}
