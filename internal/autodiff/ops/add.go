package ops

import "github.com/born-ml/tensorcore/internal/tensor"

// AddOp represents an element-wise addition operation: output = a + b.
//
// Backward pass:
//   - d(a+b)/da = 1, so grad_a = outputGrad
//   - d(a+b)/db = 1, so grad_b = outputGrad
//
// If broadcasting was used in the forward pass, gradients are reduced
// (summed) along the broadcast dimensions to match input shapes.
type AddOp struct{}

// Name returns "Add".
func (AddOp) Name() string { return "Add" }

// RequiredInputs returns 2.
func (AddOp) RequiredInputs() int { return 2 }

// Forward computes a + b.
func (op AddOp) Forward(b tensor.Backend, inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	return b.Add(inputs[0], inputs[1])
}

// Backward passes the gradient through to both inputs.
func (op AddOp) Backward(b tensor.Backend, grad *tensor.RawTensor, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	return binaryGrads(b, inputs[0], inputs[1], grad, grad)
}
