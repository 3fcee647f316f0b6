package ops

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// ReshapeOp represents a reshape: output = reshape(input, Shape).
//
// Backward pass:
//   - grad_input = reshape(outputGrad, input.Shape())
type ReshapeOp struct {
	Shape tensor.Shape
}

// Name returns "Reshape".
func (ReshapeOp) Name() string { return "Reshape" }

// RequiredInputs returns 1.
func (ReshapeOp) RequiredInputs() int { return 1 }

// Forward returns a view of the input with the target shape.
func (op ReshapeOp) Forward(_ tensor.Backend, inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	return inputs[0].Reshape(op.Shape)
}

// Backward reshapes the gradient back to the input shape.
func (op ReshapeOp) Backward(_ tensor.Backend, grad *tensor.RawTensor, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	g, err := grad.Reshape(inputs[0].Shape())
	if err != nil {
		return nil, fmt.Errorf("reshape backward: %w", err)
	}
	return []*tensor.RawTensor{g}, nil
}
