package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/born-ml/ggmlio/internal/ggml"
)

// maxDebugElements caps the elements printed by Tensor.String.
const maxDebugElements = 32

// Tensor is a handle to one allocation inside an Arena.
//
// Handles are cheap values; Share returns a second handle to the same
// storage. A handle never keeps its arena's memory alive: after the arena is
// closed every accessor panics.
type Tensor struct {
	arena *Arena
	slot  int
	gen   uint32
	dtype DataType
	dim   Dimension
}

// raw returns the engine tensor after asserting that the arena is live.
func (t *Tensor) raw() *ggml.Tensor {
	if t.arena == nil {
		panic(errors.New("tensor: use of a zero Tensor handle"))
	}
	if t.arena.gen.Load() != t.gen {
		fatalf(t.arena.log, logrus.Fields{"slot": t.slot}, "tensor: use of tensor after its arena was closed")
	}
	return t.arena.slots[t.slot]
}

// Live reports whether the tensor's arena is still open. It never panics.
func (t *Tensor) Live() bool {
	return t.arena != nil && t.arena.gen.Load() == t.gen
}

// Share returns a second handle aliasing the same allocation. No memory is
// allocated and the arena's lifetime is not extended.
func (t *Tensor) Share() *Tensor {
	t.raw()
	dup := *t
	return &dup
}

// Arena returns the arena the tensor was allocated from.
func (t *Tensor) Arena() *Arena {
	return t.arena
}

// DataType returns the element datatype.
func (t *Tensor) DataType() DataType {
	t.raw()
	return t.dtype
}

// Dimension returns the tensor's dimension.
func (t *Tensor) Dimension() Dimension {
	t.raw()
	return t.dim
}

// Extents returns the number of elements along each of the four engine axes.
// Unused axes are 1.
func (t *Tensor) Extents() [ggml.MaxDims]int {
	raw := t.raw()
	var out [ggml.MaxDims]int
	for i, n := range raw.Ne {
		out[i] = int(n)
	}
	return out
}

// Strides returns the byte stride of each axis as reported by the engine.
func (t *Tensor) Strides() [ggml.MaxDims]uint64 {
	return t.raw().Nb
}

// ByteSize returns the tensor's storage capacity in bytes.
func (t *Tensor) ByteSize() int {
	return t.raw().Nbytes()
}

// ElementCount returns the number of elements.
func (t *Tensor) ElementCount() int {
	return int(t.raw().Nelements())
}

// ElementSize returns the size of one element in bytes.
func (t *Tensor) ElementSize() int {
	return t.raw().ElementSize()
}

// RawBytes returns the tensor's storage. The slice aliases arena memory and
// is valid only while the arena is open.
func (t *Tensor) RawBytes() []byte {
	return t.raw().Data()
}

// WriteBytes copies src to the start of the tensor's storage. Bytes past
// len(src) are left untouched. If src is longer than the storage nothing is
// written and a *BoundsError is returned.
func (t *Tensor) WriteBytes(src []byte) error {
	raw := t.raw()
	if len(src) > raw.Nbytes() {
		return &BoundsError{Op: "WriteBytes", Offset: 0, Len: len(src), Limit: raw.Nbytes()}
	}
	copy(raw.Data(), src)
	return nil
}

// ReadElements views count elements of type T starting at element offset.
// The returned slice aliases arena memory: it is valid only while the arena
// is open, and the engine may read or write the same region later.
func ReadElements[T Element](t *Tensor, offset, count int) ([]T, error) {
	raw := t.raw()
	var zero T
	size := int(unsafe.Sizeof(zero))

	limit := raw.Nbytes() / size
	if offset < 0 || count < 0 || offset > limit || count > limit-offset {
		return nil, &BoundsError{Op: "ReadElements", Offset: offset, Len: count, Limit: limit}
	}
	if count == 0 {
		return []T{}, nil
	}

	data := raw.Data()[offset*size:]
	//nolint:gosec // bounds checked above, tensor data is MemAlign aligned
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(data))), count), nil
}

// ReadData views the whole storage as elements of type T.
func ReadData[T Element](t *Tensor) ([]T, error) {
	var zero T
	return ReadElements[T](t, 0, t.ByteSize()/int(unsafe.Sizeof(zero)))
}

func (t *Tensor) checkIndex(op string, raw *ggml.Tensor, i int) error {
	if n := int(raw.Nelements()); i < 0 || i >= n {
		return &BoundsError{Op: op, Offset: i, Len: 1, Limit: n}
	}
	return nil
}

// GetI32At returns element i converted to int32.
func (t *Tensor) GetI32At(i int) (int32, error) {
	raw := t.raw()
	if err := t.checkIndex("GetI32At", raw, i); err != nil {
		return 0, err
	}
	return raw.I32At(i), nil
}

// SetI32At sets element i to v converted to the tensor's datatype. Other
// elements are not modified.
func (t *Tensor) SetI32At(i int, v int32) error {
	raw := t.raw()
	if err := t.checkIndex("SetI32At", raw, i); err != nil {
		return err
	}
	raw.SetI32At(i, v)
	return nil
}

// GetF32At returns element i converted to float32.
func (t *Tensor) GetF32At(i int) (float32, error) {
	raw := t.raw()
	if err := t.checkIndex("GetF32At", raw, i); err != nil {
		return 0, err
	}
	return raw.F32At(i), nil
}

// SetF32At sets element i to v converted to the tensor's datatype. Other
// elements are not modified.
func (t *Tensor) SetF32At(i int, v float32) error {
	raw := t.raw()
	if err := t.checkIndex("SetF32At", raw, i); err != nil {
		return err
	}
	raw.SetF32At(i, v)
	return nil
}

// FillI32 sets every element to v converted to the tensor's datatype.
func (t *Tensor) FillI32(v int32) {
	t.raw().SetI32(v)
}

// FillF32 sets every element to v converted to the tensor's datatype.
func (t *Tensor) FillF32(v float32) {
	t.raw().SetF32(v)
}

// String renders the tensor's data, decoded by its own datatype, and its
// identity. A tensor whose arena is closed renders as released instead of
// panicking.
func (t *Tensor) String() string {
	if t.arena == nil {
		return "Tensor{nil}"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tensor{dtype=%s dim=%s", t.dtype, t.dim)

	if !t.Live() {
		fmt.Fprintf(&b, " slot=%d arena=%s gen=%d live=false data=released}", t.slot, t.arena.id, t.gen)
		return b.String()
	}

	raw := t.arena.slots[t.slot]
	fmt.Fprintf(&b, " ne=%v nb=%v data=%s slot=%d offset=%d arena=%s gen=%d live=true}",
		raw.Ne, raw.Nb, formatData(t.dtype, raw), t.slot, raw.Offset, t.arena.id, t.gen)
	return b.String()
}

func formatData(dt DataType, raw *ggml.Tensor) string {
	data := raw.Data()
	size := dt.Size()
	n := len(data) / size

	shown := n
	if shown > maxDebugElements {
		shown = maxDebugElements
	}

	parts := make([]string, 0, shown+1)
	for i := 0; i < shown; i++ {
		parts = append(parts, formatElement(dt, data[i*size:]))
	}
	if shown < n {
		parts = append(parts, fmt.Sprintf("... (%d more)", n-shown))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

//nolint:gosec // bit reinterpretation of stored elements
func formatElement(dt DataType, b []byte) string {
	switch dt {
	case I8:
		return fmt.Sprint(int8(b[0]))
	case I16:
		return fmt.Sprint(int16(binary.NativeEndian.Uint16(b)))
	case I32:
		return fmt.Sprint(int32(binary.NativeEndian.Uint32(b)))
	case F16:
		return fmt.Sprint(ggml.Float16ToFloat32(binary.NativeEndian.Uint16(b)))
	default:
		return fmt.Sprint(math.Float32frombits(binary.NativeEndian.Uint32(b)))
	}
}
