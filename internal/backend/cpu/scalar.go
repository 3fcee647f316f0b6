package cpu

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/parallel"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Scale multiplies every element by s.
func (cpu *CPUBackend) Scale(x *tensor.RawTensor, s float32) (*tensor.RawTensor, error) {
	return cpu.unary(x, func(dst, src []float32) { scaleFloat32(dst, src, s) })
}

// AddScalar adds s to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, s float32) (*tensor.RawTensor, error) {
	return cpu.unary(x, func(dst, src []float32) { addScalarFloat32(dst, src, s) })
}

func (cpu *CPUBackend) unary(x *tensor.RawTensor, kernel func(dst, src []float32)) (*tensor.RawTensor, error) {
	result, err := tensor.NewRaw(x.Shape(), cpu.device)
	if err != nil {
		return nil, fmt.Errorf("scalar op: %w", err)
	}
	dst, src := result.Buffer(), x.Data()
	parallel.ForRange(len(dst), func(start, end int) {
		kernel(dst[start:end], src[start:end])
	}, cpu.par)
	return result, nil
}
