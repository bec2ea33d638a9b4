// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides arena-backed tensors for ggmlio.
//
// # Overview
//
// An Arena is a fixed block of memory that tensors are carved out of. There
// is no per-tensor free: closing the arena releases every tensor at once.
// Tensor handles never keep their arena alive; any use of a handle after its
// arena is closed panics, so dangling memory is never touched.
//
// # Basic Usage
//
//	import "github.com/born-ml/ggmlio/tensor"
//
//	func main() {
//	    arena := tensor.NewArena(1 << 20)
//	    defer arena.Close()
//
//	    x := arena.NewTensor2D(tensor.F32, 4, 2)
//	    x.FillF32(0.5)
//
//	    if err := x.SetF32At(3, 2); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    data, _ := tensor.ReadData[float32](x)
//	    fmt.Println(data) // [0.5 0.5 0.5 2 0.5 0.5 0.5 0.5]
//	}
//
// # Caller Memory
//
// NewArenaOverBuffer draws the arena over memory the caller owns. The
// caller keeps the buffer alive until Close returns; a buffer may back only
// one live arena at a time.
//
// # Data Types
//
//   - I8, I16, I32: signed integers
//   - F16: IEEE-754 half precision
//   - F32: IEEE-754 single precision
//   - Count: enumeration sentinel, holds no data
//
// Element accessors convert to and from the tensor's own datatype: integers
// truncate, F16 rounds to nearest even.
package tensor
