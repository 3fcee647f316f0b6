package ops

import "github.com/born-ml/tensorcore/internal/tensor"

// DivOp represents element-wise division: output = a / b.
//
// Backward pass:
//   - grad_a = outputGrad / b
//   - grad_b = -outputGrad * a / b²
type DivOp struct{}

// Name returns "Div".
func (DivOp) Name() string { return "Div" }

// RequiredInputs returns 2.
func (DivOp) RequiredInputs() int { return 2 }

// Forward computes a / b.
func (op DivOp) Forward(b tensor.Backend, inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	return b.Div(inputs[0], inputs[1])
}

// Backward computes the quotient-rule gradients.
func (op DivOp) Backward(b tensor.Backend, grad *tensor.RawTensor, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	x, y := inputs[0], inputs[1]

	ga, err := b.Div(grad, y)
	if err != nil {
		return nil, err
	}

	num, err := b.Mul(grad, x)
	if err != nil {
		return nil, err
	}
	y2, err := b.Mul(y, y)
	if err != nil {
		return nil, err
	}
	q, err := b.Div(num, y2)
	if err != nil {
		return nil, err
	}
	gb, err := b.Scale(q, -1)
	if err != nil {
		return nil, err
	}
	return binaryGrads(b, x, y, ga, gb)
}
