package cpu

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/parallel"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.binary(opAdd, a, b)
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.binary(opSub, a, b)
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.binary(opMul, a, b)
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.binary(opDiv, a, b)
}

// Pow raises a to the power b element-wise with broadcasting.
func (cpu *CPUBackend) Pow(a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.binary(opPow, a, b)
}

// AddInPlace computes a += b. broadcast(a, b) must equal a's shape.
func (cpu *CPUBackend) AddInPlace(a, b *tensor.RawTensor) error {
	return cpu.binaryInPlace(opAdd, a, b)
}

// SubInPlace computes a -= b.
func (cpu *CPUBackend) SubInPlace(a, b *tensor.RawTensor) error {
	return cpu.binaryInPlace(opSub, a, b)
}

// MulInPlace computes a *= b.
func (cpu *CPUBackend) MulInPlace(a, b *tensor.RawTensor) error {
	return cpu.binaryInPlace(opMul, a, b)
}

// DivInPlace computes a /= b.
func (cpu *CPUBackend) DivInPlace(a, b *tensor.RawTensor) error {
	return cpu.binaryInPlace(opDiv, a, b)
}

// PowInPlace computes a = a ** b.
func (cpu *CPUBackend) PowInPlace(a, b *tensor.RawTensor) error {
	return cpu.binaryInPlace(opPow, a, b)
}

// binary allocates the broadcast result and fills it.
func (cpu *CPUBackend) binary(op binaryOp, a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result, err := tensor.NewRaw(outShape, cpu.device)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create result tensor: %w", op, err)
	}
	dst := result.Buffer()

	switch {
	case a.Shape().Equal(b.Shape()):
		// Fast path: identical shapes, index-aligned loop.
		cpu.applyChunked(op, dst, a.Data(), b.Data())
	case isBiasRow(a.Shape(), b.Shape()):
		// Fast path: [batch, dim] op [dim], one pass of b per row.
		cpu.applyRows(op, dst, a.Data(), b.Data(), a.Shape()[0], a.Shape()[1])
	default:
		walkBroadcast(outShape,
			operand{data: dst, stride: outShape.ComputeStrides()},
			broadcastOperand(a, outShape),
			broadcastOperand(b, outShape),
			op)
	}
	return result, nil
}

// binaryInPlace mutates a. The broadcast shape is checked before any write so
// a failed call leaves a untouched.
func (cpu *CPUBackend) binaryInPlace(op binaryOp, a, b *tensor.RawTensor) error {
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		return fmt.Errorf("%s in place: %w", op, err)
	}
	if !outShape.Equal(a.Shape()) {
		return fmt.Errorf("%s in place: result shape %v differs from destination %v: %w",
			op, outShape, a.Shape(), tensor.ErrBroadcast)
	}

	// b may alias a's storage; read it through a private copy when it does.
	if b.Storage() == a.Storage() && !sameView(a, b) {
		b = b.Clone()
	}

	switch {
	case a.IsContiguous() && a.Shape().Equal(b.Shape()):
		ad := a.Data()
		cpu.applyChunked(op, ad, ad, b.Data())
	case a.IsContiguous() && isBiasRow(a.Shape(), b.Shape()):
		ad := a.Data()
		cpu.applyRows(op, ad, ad, b.Data(), a.Shape()[0], a.Shape()[1])
	default:
		dst := operand{data: a.Buffer(), offset: a.Offset(), stride: a.Strides()}
		walkBroadcast(outShape, dst, dst, broadcastOperand(b, outShape), op)
	}
	a.Storage().Invalidate()
	return nil
}

func sameView(a, b *tensor.RawTensor) bool {
	if a.Offset() != b.Offset() || !a.Shape().Equal(b.Shape()) {
		return false
	}
	for i, s := range a.Strides() {
		if b.Strides()[i] != s {
			return false
		}
	}
	return true
}

// applyChunked runs op over equal-length slices, split across workers when
// the element count exceeds the configured chunk size.
func (cpu *CPUBackend) applyChunked(op binaryOp, dst, a, b []float32) {
	parallel.ForRange(len(dst), func(start, end int) {
		op.apply(dst[start:end], a[start:end], b[start:end])
	}, cpu.par)
}

// applyRows applies a [dim] operand to every row of a [rows, dim] operand.
func (cpu *CPUBackend) applyRows(op binaryOp, dst, a, b []float32, rows, dim int) {
	cfg := cpu.par
	cfg.MinChunkSize = max(cfg.MinChunkSize/max(dim, 1), 1)
	parallel.ForRange(rows, func(start, end int) {
		for r := start; r < end; r++ {
			lo := r * dim
			op.apply(dst[lo:lo+dim], a[lo:lo+dim], b)
		}
	}, cfg)
}
