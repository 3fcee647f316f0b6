package ops

import "github.com/born-ml/tensorcore/internal/tensor"

// ScaleOp multiplies by a constant: output = S * input.
//
// Backward pass:
//   - grad_input = S * outputGrad
type ScaleOp struct {
	S float32
}

// Neg returns the negation operation.
func Neg() ScaleOp {
	return ScaleOp{S: -1}
}

// Name returns "Scale".
func (ScaleOp) Name() string { return "Scale" }

// RequiredInputs returns 1.
func (ScaleOp) RequiredInputs() int { return 1 }

// Forward computes S * input.
func (op ScaleOp) Forward(b tensor.Backend, inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	return b.Scale(inputs[0], op.S)
}

// Backward scales the gradient by S.
func (op ScaleOp) Backward(b tensor.Backend, grad *tensor.RawTensor, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	g, err := b.Scale(grad, op.S)
	if err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{g}, nil
}

// IdentityOp moves its input onto the backend's device.
//
// Backward pass:
//   - grad_input = outputGrad
type IdentityOp struct{}

// Name returns "Identity".
func (IdentityOp) Name() string { return "Identity" }

// RequiredInputs returns 1.
func (IdentityOp) RequiredInputs() int { return 1 }

// Forward uploads the input to b.
func (op IdentityOp) Forward(b tensor.Backend, inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	return b.Upload(inputs[0])
}

// Backward passes the gradient through.
func (op IdentityOp) Backward(_ tensor.Backend, grad *tensor.RawTensor, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{grad}, nil
}
