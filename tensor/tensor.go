// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/ggmlio/internal/tensor"
)

// Type aliases for public API

// DataType is the element datatype of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	I8    DataType = tensor.I8
	I16   DataType = tensor.I16
	I32   DataType = tensor.I32
	F16   DataType = tensor.F16
	F32   DataType = tensor.F32
	Count DataType = tensor.Count
)

// Dimension is the rank class of a tensor.
type Dimension = tensor.Dimension

// Dimension constants.
const (
	Scalar Dimension = tensor.Scalar
	D1     Dimension = tensor.D1
	D2     Dimension = tensor.D2
	D3     Dimension = tensor.D3
)

// Extent is the size of one axis; Auto leaves it to be inferred.
type Extent = tensor.Extent

// Auto marks an extent inferred from the record length.
const Auto Extent = tensor.Auto

// Shape is a dimension plus one optional extent per axis.
type Shape = tensor.Shape

// Arena is a fixed-capacity memory region tensors are allocated from.
//
// Arena provides:
//   - Allocation via NewTensor, NewTensor1D/2D/3D, NewScalarF32, Allocate
//   - Usage reporting via UsedMem and Capacity
//   - Bulk release via Close
//
// Example:
//
//	arena := tensor.NewArena(64 << 10)
//	defer arena.Close()
//	w := arena.NewTensor2D(tensor.F16, 16, 2)
type Arena = tensor.Arena

// ArenaOption configures an Arena.
type ArenaOption = tensor.ArenaOption

// Tensor is a handle to one allocation inside an Arena.
type Tensor = tensor.Tensor

// BoundsError describes a rejected read, write or index access.
type BoundsError = tensor.BoundsError

// Common errors.
var (
	ErrOutOfBounds         = tensor.ErrOutOfBounds
	ErrShapeMismatch       = tensor.ErrShapeMismatch
	ErrInvalidDataType     = tensor.ErrInvalidDataType
	ErrInvalidDimension    = tensor.ErrInvalidDimension
	ErrUnsupportedDataType = tensor.ErrUnsupportedDataType
	ErrArenaExhausted      = tensor.ErrArenaExhausted
)

// NewArena creates an arena over a block of capacity bytes owned by the
// engine. It panics if the block cannot be allocated.
func NewArena(capacity int, opts ...ArenaOption) *Arena {
	return tensor.NewArena(capacity, opts...)
}

// NewArenaOverBuffer creates an arena over caller memory. The caller must
// keep buf alive and unused elsewhere until Close returns.
func NewArenaOverBuffer(buf []byte, opts ...ArenaOption) *Arena {
	return tensor.NewArenaOverBuffer(buf, opts...)
}

// WithArenaLogger sets the logger used for arena lifecycle events.
var WithArenaLogger = tensor.WithArenaLogger

// WithArenaID overrides the generated arena identifier.
var WithArenaID = tensor.WithArenaID

// ParseDataType parses a datatype token (i8, i16, i32, f16, f32, count).
func ParseDataType(token string) (DataType, error) {
	return tensor.ParseDataType(token)
}

// ParseDimension parses a dimension token (D1, D2, D3); empty means D1.
func ParseDimension(token string) (Dimension, error) {
	return tensor.ParseDimension(token)
}

// NewShape pairs a dimension with extents, one per axis.
func NewShape(dim Dimension, extents []Extent) (Shape, error) {
	return tensor.NewShape(dim, extents)
}
