package ops

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// TransposeOp permutes tensor dimensions.
// With no Axes it swaps the last two dimensions.
//
// Backward pass:
//   - grad_input = permute(outputGrad, inverse(Axes))
type TransposeOp struct {
	Axes []int
}

// Name returns "Transpose".
func (TransposeOp) Name() string { return "Transpose" }

// RequiredInputs returns 1.
func (TransposeOp) RequiredInputs() int { return 1 }

// Forward returns the permuted view.
func (op TransposeOp) Forward(_ tensor.Backend, inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	if len(op.Axes) == 0 {
		return inputs[0].Transpose()
	}
	return inputs[0].Permute(op.Axes...)
}

// Backward applies the inverse permutation to the gradient.
func (op TransposeOp) Backward(_ tensor.Backend, grad *tensor.RawTensor, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	if len(op.Axes) == 0 {
		g, err := grad.Transpose()
		if err != nil {
			return nil, fmt.Errorf("transpose backward: %w", err)
		}
		return []*tensor.RawTensor{g}, nil
	}

	inverse := make([]int, len(op.Axes))
	for i, axis := range op.Axes {
		inverse[axis] = i
	}
	g, err := grad.Permute(inverse...)
	if err != nil {
		return nil, fmt.Errorf("transpose backward: %w", err)
	}
	return []*tensor.RawTensor{g}, nil
}
