package ops

import "github.com/born-ml/tensorcore/internal/tensor"

// MatMulOp represents a batched matrix multiplication: output = a @ b.
//
// Backward pass:
//   - d(A@B)/dA = outputGrad @ B^T
//   - d(A@B)/dB = A^T @ outputGrad
//
// Where @ denotes matrix multiplication and ^T denotes transpose of the last
// two dimensions. Gradients of broadcast batch dimensions are summed.
type MatMulOp struct{}

// Name returns "MatMul".
func (MatMulOp) Name() string { return "MatMul" }

// RequiredInputs returns 2.
func (MatMulOp) RequiredInputs() int { return 2 }

// Forward computes a @ b.
func (op MatMulOp) Forward(b tensor.Backend, inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	return b.MatMul(inputs[0], inputs[1])
}

// Backward computes input gradients for matrix multiplication.
func (op MatMulOp) Backward(b tensor.Backend, grad *tensor.RawTensor, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	return matmulGrads(b, grad, inputs[0], inputs[1])
}

func matmulGrads(b tensor.Backend, grad, x, y *tensor.RawTensor) ([]*tensor.RawTensor, error) {
	// grad_a = grad @ yᵀ, read through the transposed-B kernel.
	ga, err := b.MatMulTransB(grad, y)
	if err != nil {
		return nil, err
	}

	// grad_b = xᵀ @ grad
	xt, err := x.Transpose()
	if err != nil {
		return nil, err
	}
	defer xt.Release()
	gb, err := b.MatMul(xt, grad)
	if err != nil {
		return nil, err
	}
	return binaryGrads(b, x, y, ga, gb)
}
