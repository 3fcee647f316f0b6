package cpu

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Sum returns the sum of all elements as a 0-D tensor.
// Accumulation is done in float64.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) (*tensor.RawTensor, error) {
	var sum float64
	for _, v := range x.Data() {
		sum += float64(v)
	}
	return tensor.Scalar(float32(sum)), nil
}

// SumTo reduces x to shape by summing over broadcast dimensions.
// It is the adjoint of broadcasting: broadcast(shape, x.Shape()) must equal
// x.Shape(). Used to fold gradients back onto broadcast operands.
func (cpu *CPUBackend) SumTo(x *tensor.RawTensor, shape tensor.Shape) (*tensor.RawTensor, error) {
	if shape.Equal(x.Shape()) {
		return x.Clone(), nil
	}

	full, _, err := tensor.BroadcastShapes(shape, x.Shape())
	if err != nil {
		return nil, fmt.Errorf("sum to %v: %w", shape, err)
	}
	if !full.Equal(x.Shape()) {
		return nil, fmt.Errorf("sum to: %v does not broadcast to %v: %w", shape, x.Shape(), tensor.ErrBroadcast)
	}

	result, err := tensor.NewRaw(shape, cpu.device)
	if err != nil {
		return nil, fmt.Errorf("sum to: %w", err)
	}

	// Accumulate: result[bcast(i)] = result[bcast(i)] + x[i].
	acc := broadcastOperand(result, x.Shape())
	walkBroadcast(x.Shape(), acc, acc, operand{
		data:   x.Buffer(),
		offset: x.Offset(),
		stride: x.Strides(),
	}, opAdd)
	return result, nil
}
