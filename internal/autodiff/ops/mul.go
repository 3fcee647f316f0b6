package ops

import "github.com/born-ml/tensorcore/internal/tensor"

// MulOp represents element-wise multiplication: output = a * b.
//
// Backward pass:
//   - grad_a = outputGrad * b
//   - grad_b = outputGrad * a
type MulOp struct{}

// Name returns "Mul".
func (MulOp) Name() string { return "Mul" }

// RequiredInputs returns 2.
func (MulOp) RequiredInputs() int { return 2 }

// Forward computes a * b.
func (op MulOp) Forward(b tensor.Backend, inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	return b.Mul(inputs[0], inputs[1])
}

// Backward computes the product-rule gradients.
func (op MulOp) Backward(b tensor.Backend, grad *tensor.RawTensor, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	x, y := inputs[0], inputs[1]

	ga, err := b.Mul(grad, y)
	if err != nil {
		return nil, err
	}
	gb, err := b.Mul(grad, x)
	if err != nil {
		return nil, err
	}
	return binaryGrads(b, x, y, ga, gb)
}
