// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/tensorcore/internal/backend/cpu"
	"github.com/born-ml/tensorcore/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Config tunes the CPU backend's parallelism and matmul strategy.
type Config = internalcpu.Config

// Strategy is a matmul inner-loop implementation.
type Strategy = internalcpu.Strategy

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend configured from BORN_* environment variables.
//
// Example:
//
//	backend := cpu.New()
//	c, err := backend.MatMul(a, b)
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU backend with explicit tuning.
func NewWithConfig(cfg Config) *Backend {
	return internalcpu.NewWithConfig(cfg)
}

// DefaultConfig returns the configuration read from the environment.
func DefaultConfig() Config { return internalcpu.DefaultConfig() }

// SerialConfig returns a configuration that never leaves the calling goroutine.
func SerialConfig() Config { return internalcpu.SerialConfig() }

// DefaultStrategy returns the matmul strategy selected for this CPU.
func DefaultStrategy() Strategy { return internalcpu.DefaultStrategy() }

// ScalarStrategy returns the portable scalar matmul loop.
func ScalarStrategy() Strategy { return internalcpu.ScalarStrategy() }

// SIMDStrategy returns the SIMD-width unrolled matmul loop.
func SIMDStrategy() Strategy { return internalcpu.SIMDStrategy() }
