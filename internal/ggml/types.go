// Package ggml is the native tensor engine the rest of the module draws
// memory from.
//
// It mirrors the small subset of the ggml C API that tensor storage needs:
// a context initialized over one contiguous memory block, bump allocation of
// tensor objects inside that block, per-axis element counts (ne) and byte
// strides (nb), typed element access and used-memory accounting. There is no
// per-tensor free; the whole block is released by Context.Free.
//
// Compute kernels and graph execution are not part of this package.
package ggml

import "fmt"

// Type is the engine's native element type tag.
type Type uint32

// Native type tags, in engine order.
//
//nolint:revive // Underscores in names match the engine's tag names.
const (
	TypeQ4_0  Type = 0
	TypeQ4_1  Type = 1
	TypeI8    Type = 2
	TypeI16   Type = 3
	TypeI32   Type = 4
	TypeF16   Type = 5
	TypeF32   Type = 6
	TypeCount Type = 7 // Number of types, not a storable type.
)

// TypeTrait contains layout metadata about a native type.
type TypeTrait struct {
	BlockSize int // Number of elements per block.
	TypeSize  int // Size in bytes per block.
	Quantized bool
}

var typeTraits = map[Type]TypeTrait{
	TypeQ4_0: {BlockSize: 32, TypeSize: 20, Quantized: true},
	TypeQ4_1: {BlockSize: 32, TypeSize: 24, Quantized: true},
	TypeI8:   {BlockSize: 1, TypeSize: 1},
	TypeI16:  {BlockSize: 1, TypeSize: 2},
	TypeI32:  {BlockSize: 1, TypeSize: 4},
	TypeF16:  {BlockSize: 1, TypeSize: 2},
	TypeF32:  {BlockSize: 1, TypeSize: 4},
}

// Trait returns the layout trait for the type.
// TypeCount and unknown tags report a zero TypeSize.
func (t Type) Trait() TypeTrait {
	if trait, ok := typeTraits[t]; ok {
		return trait
	}
	return TypeTrait{BlockSize: 1}
}

// IsQuantized reports whether the type stores elements in quantized blocks.
func (t Type) IsQuantized() bool {
	return t.Trait().Quantized
}

// Valid reports whether tensors of this type can be allocated.
func (t Type) Valid() bool {
	return t.Trait().TypeSize > 0
}

var typeNames = map[Type]string{
	TypeQ4_0:  "Q4_0",
	TypeQ4_1:  "Q4_1",
	TypeI8:    "I8",
	TypeI16:   "I16",
	TypeI32:   "I32",
	TypeF16:   "F16",
	TypeF32:   "F32",
	TypeCount: "COUNT",
}

// String returns the engine name of the type.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint32(t))
}
