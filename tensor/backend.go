// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/tensorcore/internal/tensor"

// Backend defines the operations every compute backend implements.
//
// Implementations:
//   - backend/cpu: pure Go with fork/join matmul and a SIMD-width strategy
//   - device.Open: WebGPU or the software emulator via queued kernels
//
// Operations return a new tensor and never mutate their inputs, except the
// InPlace variants which write into their first operand.
type Backend = tensor.Backend
