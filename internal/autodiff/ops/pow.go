package ops

import (
	"math"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// PowOp represents element-wise exponentiation: output = a ^ b.
//
// Backward pass:
//   - grad_a = outputGrad * b * a^(b-1)
//   - grad_b = outputGrad * a^b * ln(a)
//
// grad_b is only finite for positive bases.
type PowOp struct{}

// Name returns "Pow".
func (PowOp) Name() string { return "Pow" }

// RequiredInputs returns 2.
func (PowOp) RequiredInputs() int { return 2 }

// Forward computes a ^ b.
func (op PowOp) Forward(b tensor.Backend, inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	return b.Pow(inputs[0], inputs[1])
}

// Backward computes the power-rule gradients.
func (op PowOp) Backward(b tensor.Backend, grad *tensor.RawTensor, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	x, y := inputs[0], inputs[1]

	// grad_a = grad * y * x^(y-1)
	ym1, err := b.AddScalar(y, -1)
	if err != nil {
		return nil, err
	}
	p, err := b.Pow(x, ym1)
	if err != nil {
		return nil, err
	}
	dx, err := b.Mul(p, y)
	if err != nil {
		return nil, err
	}
	ga, err := b.Mul(grad, dx)
	if err != nil {
		return nil, err
	}

	// grad_b = grad * x^y * ln(x)
	out, err := b.Pow(x, y)
	if err != nil {
		return nil, err
	}
	lnx, err := mapHost(x, func(v float32) float32 { return float32(math.Log(float64(v))) })
	if err != nil {
		return nil, err
	}
	dy, err := b.Mul(out, lnx)
	if err != nil {
		return nil, err
	}
	gb, err := b.Mul(grad, dy)
	if err != nil {
		return nil, err
	}
	return binaryGrads(b, x, y, ga, gb)
}
