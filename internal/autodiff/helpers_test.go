package autodiff_test

import (
	"github.com/born-ml/tensorcore/internal/tensor"
)

// ops0 is an operation declaring zero inputs.
type ops0 struct{}

func (ops0) Name() string        { return "Nullary" }
func (ops0) RequiredInputs() int { return 0 }

func (ops0) Forward(tensor.Backend, ...*tensor.RawTensor) (*tensor.RawTensor, error) {
	return tensor.Scalar(0), nil
}

func (ops0) Backward(tensor.Backend, *tensor.RawTensor, ...*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	return nil, nil
}
