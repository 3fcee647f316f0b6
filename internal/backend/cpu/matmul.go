package cpu

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// MatMul performs batched matrix multiplication.
//
//	[..., m, n] @ [..., n, p] -> [..., m, p]
//
// Batch dimensions broadcast. A B that is the transpose view of contiguous
// storage is read through the transposed-B kernel without copying.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	if b.Rank() >= 2 && !b.IsContiguous() {
		if bt, err := b.Transpose(); err == nil {
			defer bt.Release()
			if bt.IsContiguous() {
				return cpu.matmul(a, bt, true)
			}
		}
	}
	return cpu.matmul(a, b, false)
}

// MatMulTransB computes a @ btᵀ where bt is [..., p, n].
func (cpu *CPUBackend) MatMulTransB(a, bt *tensor.RawTensor) (*tensor.RawTensor, error) {
	return cpu.matmul(a, bt, true)
}

// matmulPlan holds the flattened geometry of a batched product.
type matmulPlan struct {
	m, n, p    int
	mn, np, mp int
	batch      int
	aMat, bMat []int // per output batch: matrix index into A and B
	outShape   tensor.Shape
}

func planMatMul(aShape, bShape tensor.Shape, transB bool) (*matmulPlan, error) {
	if len(aShape) < 2 || len(bShape) < 2 {
		return nil, fmt.Errorf("matmul: operands must be at least 2D, got %dD and %dD: %w",
			len(aShape), len(bShape), tensor.ErrDimension)
	}

	ra, rb := len(aShape), len(bShape)
	m, n := aShape[ra-2], aShape[ra-1]
	nb, p := bShape[rb-2], bShape[rb-1]
	if transB {
		p, nb = nb, p
	}
	if n != nb {
		return nil, fmt.Errorf("matmul: inner dimensions differ: %v @ %v: %w", aShape, bShape, tensor.ErrDimension)
	}

	aBatch, bBatch := aShape[:ra-2], bShape[:rb-2]
	outBatch, _, err := tensor.BroadcastShapes(aBatch, bBatch)
	if err != nil {
		return nil, fmt.Errorf("matmul: batch dimensions: %w", err)
	}

	plan := &matmulPlan{
		m: m, n: n, p: p,
		mn: m * n, np: n * p, mp: m * p,
		batch: outBatch.NumElements(),
	}
	plan.aMat = batchOffsets(aBatch, outBatch)
	plan.bMat = batchOffsets(bBatch, outBatch)
	plan.outShape = append(outBatch.Clone(), m, p)
	return plan, nil
}

// batchOffsets maps each flat index of outBatch to the matrix index of an
// operand with batch shape inBatch, repeating broadcast dimensions.
func batchOffsets(inBatch, outBatch tensor.Shape) []int {
	total := outBatch.NumElements()
	offsets := make([]int, total)
	if len(outBatch) == 0 || total == 0 {
		return offsets
	}
	strides := tensor.BroadcastStrides(inBatch, inBatch.ComputeStrides(), outBatch)

	idx := make([]int, len(outBatch))
	off := 0
	for i := range total {
		offsets[i] = off
		for d := len(outBatch) - 1; d >= 0; d-- {
			idx[d]++
			off += strides[d]
			if idx[d] < outBatch[d] {
				break
			}
			off -= idx[d] * strides[d]
			idx[d] = 0
		}
	}
	return offsets
}

func (cpu *CPUBackend) matmul(a, b *tensor.RawTensor, transB bool) (*tensor.RawTensor, error) {
	plan, err := planMatMul(a.Shape(), b.Shape(), transB)
	if err != nil {
		return nil, err
	}

	result, err := tensor.NewRaw(plan.outShape, cpu.device)
	if err != nil {
		return nil, fmt.Errorf("matmul: failed to create result tensor: %w", err)
	}

	ad := a.Contiguous().Data()
	bd := b.Contiguous().Data()
	cd := result.Buffer()

	rows := plan.batch * plan.m
	if rows == 0 || plan.p == 0 {
		return result, nil
	}

	run := cpu.rowKernel(plan, ad, bd, cd, transB)
	cpu.pool.Bisect(0, rows, func(start, end int) bool {
		work := end - start
		return work > cpu.minRows && work*plan.np > cpu.minWork
	}, run)

	return result, nil
}

// rowKernel returns a function computing output rows [start, end) of the
// flattened batch*m row space. The result buffer starts zeroed.
func (cpu *CPUBackend) rowKernel(plan *matmulPlan, ad, bd, cd []float32, transB bool) func(start, end int) {
	m, n, p := plan.m, plan.n, plan.p
	strategy := cpu.strategy
	return func(start, end int) {
		for r := start; r < end; r++ {
			bi, i := r/m, r%m
			aRow := ad[plan.aMat[bi]*plan.mn+i*n:][:n]
			bMat := bd[plan.bMat[bi]*plan.np:][:plan.np]
			cRow := cd[bi*plan.mp+i*p:][:p]
			if transB {
				strategy.RowTransB(cRow, aRow, bMat, n, p)
			} else {
				strategy.Row(cRow, aRow, bMat, n, p)
			}
		}
	}
}
