// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor model of the Born engine.
//
// # Overview
//
// A RawTensor is a strided view over reference-counted float32 storage:
//   - Shape, strides and an element offset describe the view
//   - Reshape, Transpose, Permute, Slice and Expand create views without copying
//   - Contiguous and Clone materialize a view into fresh storage
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/tensorcore/backend/cpu"
//	    "github.com/born-ml/tensorcore/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    a, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, tensor.CPU)
//	    b, _ := tensor.FromSlice([]float32{10, 20, 30}, tensor.Shape{3}, tensor.CPU)
//
//	    c, err := backend.Add(a, b) // (2, 3) + (3) -> (2, 3)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(c.Data())
//	}
//
// # Broadcasting
//
// Binary operations follow NumPy broadcasting rules. Shapes are aligned from
// the trailing dimension; a dimension of size 1 stretches to match the other
// operand. Incompatible shapes return ErrBroadcast before anything is written.
//
//	a: (4, 1, 3)
//	b:    (2, 1)
//	=> (4, 2, 3)
//
// # Errors
//
// Every failing operation wraps one of the sentinel errors below, so callers
// test with errors.Is.
package tensor
