// Package ops defines the differentiable operations of the autograd engine.
//
// Each operation implements the Operation interface, which provides:
//   - Forward pass: computed by the backend
//   - Backward pass: computes gradients for inputs given the output gradient
//   - A fixed input arity, used to validate imported computation graphs
//
// Supported operations:
//   - AddOp, SubOp: pass-through (negated for the subtrahend)
//   - MulOp: d(a*b)/da = b, d(a*b)/db = a
//   - DivOp: d(a/b)/da = 1/b, d(a/b)/db = -a/b²
//   - PowOp: d(a^b)/da = b*a^(b-1), d(a^b)/db = a^b*ln(a)
//   - MatMulOp: d(A@B)/dA = grad@Bᵀ, d(A@B)/dB = Aᵀ@grad
//   - GemmOp: A@B + C, with dC = grad summed over broadcast dims
//   - ReshapeOp, TransposeOp, SliceOp: views; gradients are mapped back to the input layout
//   - SumOp, ScaleOp, IdentityOp
//
// Operations hold only their attributes. The graph node that applied an
// operation keeps its inputs and passes them back to Backward.
package ops

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Name is the operation's registry name.
	Name() string

	// RequiredInputs is the fixed number of inputs Forward and Backward take.
	RequiredInputs() int

	// Forward computes the output from inputs on backend b.
	Forward(b tensor.Backend, inputs ...*tensor.RawTensor) (*tensor.RawTensor, error)

	// Backward computes one gradient per input given the output gradient.
	// Each returned gradient has its input's shape.
	//
	// Example for AddOp:
	//   inputs: [a, b]
	//   grad: dL/d(a+b)
	//   returns: [dL/d(a+b), dL/d(a+b)] (gradient flows equally to both inputs)
	Backward(b tensor.Backend, grad *tensor.RawTensor, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error)
}

// CheckArity reports ErrInvalidGraph when len(inputs) differs from op's arity.
func CheckArity(op Operation, inputs []*tensor.RawTensor) error {
	if len(inputs) != op.RequiredInputs() {
		return fmt.Errorf("%s: expected %d inputs, got %d: %w",
			op.Name(), op.RequiredInputs(), len(inputs), tensor.ErrInvalidGraph)
	}
	return nil
}
