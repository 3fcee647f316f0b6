// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// Each Tensor carries an optional autograd context recording the operation
// that produced it. Backward walks the recorded graph from a result and
// accumulates gradients into every tensor that requires them.
//
// Example:
//
//	import (
//	    "github.com/born-ml/tensorcore/autodiff"
//	    "github.com/born-ml/tensorcore/backend/cpu"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x, _ := autodiff.FromSlice([]float32{2}, tensor.Shape{1}, backend)
//	    x = x.RequireGrad()
//
//	    y, _ := x.Mul(x)
//	    _ = y.Backward()
//	    fmt.Println(x.Grad().Data()) // [4]
//	}
package autodiff

import (
	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/autodiff/ops"
	"github.com/born-ml/tensorcore/tensor"
)

// Tensor is a RawTensor bound to a backend, optionally tracked for gradients.
type Tensor = autodiff.Tensor

// Context is the autograd record attached to a tracked tensor.
type Context = autodiff.Context

// Operation is a differentiable operation.
type Operation = ops.Operation

// Attributes configure an operation created by name.
type Attributes = ops.Attributes

// Registry maps operation names to factories.
type Registry = ops.Registry

// Tape tracks variables so their gradients can be reset between steps.
type Tape = autodiff.Tape

// GraphSpec describes a computation graph to import.
type GraphSpec = autodiff.GraphSpec

// Graph is an imported graph: its output and every named value.
type Graph = autodiff.Graph

// New wraps raw as a constant.
func New(raw *tensor.RawTensor, backend tensor.Backend) *Tensor {
	return autodiff.New(raw, backend)
}

// NewVariable wraps raw as a leaf that requires gradients.
func NewVariable(raw *tensor.RawTensor, backend tensor.Backend) *Tensor {
	return autodiff.NewVariable(raw, backend)
}

// FromSlice creates a constant tensor holding a copy of data.
func FromSlice(data []float32, shape tensor.Shape, backend tensor.Backend) (*Tensor, error) {
	return autodiff.FromSlice(data, shape, backend)
}

// Apply runs op on inputs and records it when any input requires gradients.
func Apply(op Operation, inputs ...*Tensor) (*Tensor, error) {
	return autodiff.Apply(op, inputs...)
}

// NewTape creates an empty tape.
func NewTape() *Tape {
	return autodiff.NewTape()
}

// NewRegistry returns a registry holding the built-in operations.
func NewRegistry() *Registry {
	return ops.NewRegistry()
}

// ParseGraph decodes a GraphSpec from YAML or JSON.
func ParseGraph(data []byte) (*GraphSpec, error) {
	return autodiff.ParseGraph(data)
}

// Import evaluates spec with the built-in operations.
func Import(spec *GraphSpec, feeds map[string]*Tensor) (*Graph, error) {
	return autodiff.Import(spec, feeds)
}

// ImportWith evaluates spec with the operations in reg.
func ImportWith(reg *Registry, spec *GraphSpec, feeds map[string]*Tensor) (*Graph, error) {
	return autodiff.ImportWith(reg, spec, feeds)
}
