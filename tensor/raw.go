// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/ggmlio/internal/tensor"
)

// Element is the set of Go types a tensor's bytes can be viewed as.
type Element = tensor.Element

// ReadElements views count elements of type T starting at element offset.
//
// The returned slice aliases arena memory: it is valid only while the arena
// is open. Accesses past the tensor's storage return an error matching
// ErrOutOfBounds.
//
// Example:
//
//	x := arena.NewTensor1D(tensor.I32, 8)
//	head, err := tensor.ReadElements[int32](x, 0, 4)
func ReadElements[T Element](t *Tensor, offset, count int) ([]T, error) {
	return tensor.ReadElements[T](t, offset, count)
}

// ReadData views the whole storage as elements of type T.
func ReadData[T Element](t *Tensor) ([]T, error) {
	return tensor.ReadData[T](t)
}
