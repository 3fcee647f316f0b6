package ops

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// SliceOp selects a strided window of its input.
//
// Backward pass:
//   - grad_input is zero except at the selected positions, which receive outputGrad
type SliceOp struct {
	Ranges []tensor.Range
}

// Name returns "Slice".
func (SliceOp) Name() string { return "Slice" }

// RequiredInputs returns 1.
func (SliceOp) RequiredInputs() int { return 1 }

// Forward returns the sliced view.
func (op SliceOp) Forward(_ tensor.Backend, inputs ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	return inputs[0].Slice(op.Ranges...)
}

// Backward scatters the gradient into a zero tensor of the input's shape.
func (op SliceOp) Backward(_ tensor.Backend, grad *tensor.RawTensor, inputs ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := CheckArity(op, inputs); err != nil {
		return nil, err
	}
	g, err := tensor.NewRaw(inputs[0].Shape(), grad.Device())
	if err != nil {
		return nil, err
	}
	window, err := g.Slice(op.Ranges...)
	if err != nil {
		return nil, fmt.Errorf("slice backward: %w", err)
	}
	defer window.Release()
	if err := window.CopyFrom(grad); err != nil {
		return nil, fmt.Errorf("slice backward: %w", err)
	}
	return []*tensor.RawTensor{g}, nil
}
