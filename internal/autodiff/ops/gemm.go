package ops

import "github.com/born-ml/tensorcore/internal/tensor"

// GemmOp represents a matrix product with a broadcast bias: output = A @ B + C.
//
// Backward pass:
//   - grad_A = outputGrad @ B^T
//   - grad_B = A^T @ outputGrad
//   - grad_C = outputGrad, summed over the dimensions C was broadcast along
type GemmOp struct{}

// Name returns "Gemm".
func (GemmOp) Name() string { return "Gemm" }

// RequiredInputs returns 3.
func (GemmOp) RequiredInputs() int { return 3 }

// Forward computes a @ b + c.
func (op GemmOp) Forward(b tensor.Backend, inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	prod, err := b.MatMul(inputs[0], inputs[1])
	if err != nil {
		return nil, err
	}
	out, _, err := tensor.BroadcastShapes(prod.Shape(), inputs[2].Shape())
	if err != nil {
		return nil, err
	}
	if !out.Equal(prod.Shape()) {
		return b.Add(prod, inputs[2])
	}
	// prod is private to this call.
	if err := b.AddInPlace(prod, inputs[2]); err != nil {
		return nil, err
	}
	return prod, nil
}

// Backward computes the matmul gradients and passes the bias gradient through.
func (op GemmOp) Backward(b tensor.Backend, grad *tensor.RawTensor, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	// The broadcast output may be larger than the product; fold it back first.
	gp := grad
	if s, ok := matmulShape(inputs[0].Shape(), inputs[1].Shape()); ok && !s.Equal(grad.Shape()) {
		r, err := reduceBroadcast(b, grad, s)
		if err != nil {
			return nil, err
		}
		gp = r
	}

	grads, err := matmulGrads(b, gp, inputs[0], inputs[1])
	if err != nil {
		return nil, err
	}
	gc, err := reduceBroadcast(b, grad, inputs[2].Shape())
	if err != nil {
		return nil, err
	}
	return append(grads, gc), nil
}

// matmulShape returns the output shape of a @ b for valid operands.
func matmulShape(a, c tensor.Shape) (tensor.Shape, bool) {
	if len(a) < 2 || len(c) < 2 {
		return nil, false
	}
	batch, _, err := tensor.BroadcastShapes(a[:len(a)-2], c[:len(c)-2])
	if err != nil {
		return nil, false
	}
	return append(batch, a[len(a)-2], c[len(c)-1]), true
}
