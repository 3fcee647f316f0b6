package ops

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// reduceBroadcast maps a gradient onto the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
//
// A gradient that is itself broadcastable to the target (a scalar loss
// gradient, for instance) is expanded instead.
func reduceBroadcast(b tensor.Backend, grad *tensor.RawTensor, target tensor.Shape) (*tensor.RawTensor, error) {
	gs := grad.Shape()
	if gs.Equal(target) {
		return grad, nil
	}

	full, _, err := tensor.BroadcastShapes(gs, target)
	if err != nil {
		return nil, fmt.Errorf("reduce gradient %v to %v: %w", gs, target, err)
	}
	switch {
	case full.Equal(gs):
		return b.SumTo(grad, target)
	case full.Equal(target):
		e, err := grad.Expand(target)
		if err != nil {
			return nil, err
		}
		defer e.Release()
		return e.Clone(), nil
	default:
		return nil, fmt.Errorf("reduce gradient %v to %v: %w", gs, target, tensor.ErrBroadcast)
	}
}

// mapHost applies f to every element on the host and returns a contiguous
// tensor tagged with x's device.
func mapHost(x *tensor.RawTensor, f func(float32) float32) (*tensor.RawTensor, error) {
	src := x.Data()
	out := make([]float32, len(src))
	for i, v := range src {
		out[i] = f(v)
	}
	return tensor.FromSlice(out, x.Shape(), x.Device())
}

// binaryGrads reduces ga and gb to the shapes of a and b.
func binaryGrads(b tensor.Backend, a, c, ga, gb *tensor.RawTensor) ([]*tensor.RawTensor, error) {
	ra, err := reduceBroadcast(b, ga, a.Shape())
	if err != nil {
		return nil, err
	}
	rb, err := reduceBroadcast(b, gb, c.Shape())
	if err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{ra, rb}, nil
}
