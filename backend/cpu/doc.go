// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - NumPy-compatible broadcasting for element-wise operations
//   - Batched matrix multiplication with broadcast batch dimensions
//   - Fork/join parallelism bounded by BORN_NUM_THREADS
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
//	    a, _ := tensor.Randn(tensor.Shape{8, 64, 32}, rng)
//	    b, _ := tensor.Randn(tensor.Shape{32, 16}, rng)
//	    c, err := backend.MatMul(a, b) // (8, 64, 16)
//	}
//
// # Performance
//
// The matmul inner loop is chosen once per process: the SIMD-width unrolled strategy
// when the CPU reports AVX2 or ASIMD, the scalar strategy otherwise or when
// BORN_NOSIMD is set. Large products are bisected by rows across the worker
// pool; both strategies produce the same result up to rounding.
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Each tensor operation
// is isolated and does not share mutable state.
package cpu
