package ops

import "github.com/born-ml/tensorcore/internal/tensor"

// SumOp reduces all elements to a scalar.
//
// Backward pass:
//   - grad_input = outputGrad broadcast to the input shape
type SumOp struct{}

// Name returns "Sum".
func (SumOp) Name() string { return "Sum" }

// RequiredInputs returns 1.
func (SumOp) RequiredInputs() int { return 1 }

// Forward returns the 0-D sum.
func (op SumOp) Forward(b tensor.Backend, inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	return b.Sum(inputs[0])
}

// Backward broadcasts the scalar gradient.
func (op SumOp) Backward(b tensor.Backend, grad *tensor.RawTensor, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	g, err := reduceBroadcast(b, grad, inputs[0].Shape())
	if err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{g}, nil
}
