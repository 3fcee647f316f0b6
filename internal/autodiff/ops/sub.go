package ops

import "github.com/born-ml/tensorcore/internal/tensor"

// SubOp represents element-wise subtraction: output = a - b.
//
// Backward pass:
//   - grad_a = outputGrad
//   - grad_b = -outputGrad
type SubOp struct{}

// Name returns "Sub".
func (SubOp) Name() string { return "Sub" }

// RequiredInputs returns 2.
func (SubOp) RequiredInputs() int { return 2 }

// Forward computes a - b.
func (op SubOp) Forward(b tensor.Backend, inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	return b.Sub(inputs[0], inputs[1])
}

// Backward passes the gradient to a and its negation to b.
func (op SubOp) Backward(b tensor.Backend, grad *tensor.RawTensor, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	neg, err := b.Scale(grad, -1)
	if err != nil {
		return nil, err
	}
	return binaryGrads(b, inputs[0], inputs[1], grad, neg)
}
