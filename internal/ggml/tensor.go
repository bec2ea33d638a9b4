package ggml

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tensor is a tensor object allocated inside a Context's block.
//
// The element accessors assume a non-quantized type and an in-range index,
// like their C counterparts; callers validate before calling. They panic
// otherwise.
type Tensor struct {
	Type   Type
	Dims   int             // number of axes requested at allocation
	Ne     [MaxDims]int64  // elements per axis
	Nb     [MaxDims]uint64 // bytes per axis step
	Offset int             // data offset inside the context block

	data []byte
}

// Data returns the tensor's storage. The slice aliases the context block and
// is capacity-limited to the tensor's own bytes.
func (t *Tensor) Data() []byte {
	return t.data
}

// Nelements returns the number of elements across all axes.
func (t *Tensor) Nelements() int64 {
	return t.Ne[0] * t.Ne[1] * t.Ne[2] * t.Ne[3]
}

// Nbytes returns the size of the tensor's storage in bytes.
func (t *Tensor) Nbytes() int {
	return len(t.data)
}

// ElementSize returns the size in bytes of one element (of one block for
// quantized types).
func (t *Tensor) ElementSize() int {
	return t.Type.Trait().TypeSize
}

// SetI32 sets every element to v, converted to the tensor's type.
func (t *Tensor) SetI32(v int32) {
	n := int(t.Nelements())
	for i := 0; i < n; i++ {
		t.SetI32At(i, v)
	}
}

// SetF32 sets every element to v, converted to the tensor's type.
func (t *Tensor) SetF32(v float32) {
	n := int(t.Nelements())
	for i := 0; i < n; i++ {
		t.SetF32At(i, v)
	}
}

// I32At returns element i converted to int32.
func (t *Tensor) I32At(i int) int32 {
	switch t.Type {
	case TypeI8:
		return int32(int8(t.data[i]))
	case TypeI16:
		return int32(int16(binary.NativeEndian.Uint16(t.data[i*2:]))) //nolint:gosec // bit reinterpretation
	case TypeI32:
		return int32(binary.NativeEndian.Uint32(t.data[i*4:])) //nolint:gosec // bit reinterpretation
	case TypeF16:
		return int32(Float16ToFloat32(binary.NativeEndian.Uint16(t.data[i*2:])))
	case TypeF32:
		return int32(math.Float32frombits(binary.NativeEndian.Uint32(t.data[i*4:])))
	default:
		panic(fmt.Sprintf("ggml: I32At on %s tensor", t.Type))
	}
}

// SetI32At sets element i to v, converted to the tensor's type.
func (t *Tensor) SetI32At(i int, v int32) {
	switch t.Type {
	case TypeI8:
		t.data[i] = byte(int8(v)) //nolint:gosec // truncation matches the engine
	case TypeI16:
		binary.NativeEndian.PutUint16(t.data[i*2:], uint16(int16(v))) //nolint:gosec // truncation matches the engine
	case TypeI32:
		binary.NativeEndian.PutUint32(t.data[i*4:], uint32(v)) //nolint:gosec // bit reinterpretation
	case TypeF16:
		binary.NativeEndian.PutUint16(t.data[i*2:], Float32ToFloat16(float32(v)))
	case TypeF32:
		binary.NativeEndian.PutUint32(t.data[i*4:], math.Float32bits(float32(v)))
	default:
		panic(fmt.Sprintf("ggml: SetI32At on %s tensor", t.Type))
	}
}

// F32At returns element i converted to float32.
func (t *Tensor) F32At(i int) float32 {
	switch t.Type {
	case TypeI8:
		return float32(int8(t.data[i]))
	case TypeI16:
		return float32(int16(binary.NativeEndian.Uint16(t.data[i*2:]))) //nolint:gosec // bit reinterpretation
	case TypeI32:
		return float32(int32(binary.NativeEndian.Uint32(t.data[i*4:]))) //nolint:gosec // bit reinterpretation
	case TypeF16:
		return Float16ToFloat32(binary.NativeEndian.Uint16(t.data[i*2:]))
	case TypeF32:
		return math.Float32frombits(binary.NativeEndian.Uint32(t.data[i*4:]))
	default:
		panic(fmt.Sprintf("ggml: F32At on %s tensor", t.Type))
	}
}

// SetF32At sets element i to v, converted to the tensor's type.
// Integer types truncate toward zero.
func (t *Tensor) SetF32At(i int, v float32) {
	switch t.Type {
	case TypeI8:
		t.data[i] = byte(int8(v))
	case TypeI16:
		binary.NativeEndian.PutUint16(t.data[i*2:], uint16(int16(v)))
	case TypeI32:
		binary.NativeEndian.PutUint32(t.data[i*4:], uint32(int32(v)))
	case TypeF16:
		binary.NativeEndian.PutUint16(t.data[i*2:], Float32ToFloat16(v))
	case TypeF32:
		binary.NativeEndian.PutUint32(t.data[i*4:], math.Float32bits(v))
	default:
		panic(fmt.Sprintf("ggml: SetF32At on %s tensor", t.Type))
	}
}
