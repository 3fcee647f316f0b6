package cpu

import (
	"github.com/born-ml/tensorcore/internal/tensor"
)

// operand is a strided read or write target for the broadcast traversal.
type operand struct {
	data   []float32
	offset int
	stride []int
}

// broadcastOperand maps t onto outShape, using stride 0 on broadcast dimensions.
func broadcastOperand(t *tensor.RawTensor, outShape tensor.Shape) operand {
	return operand{
		data:   t.Buffer(),
		offset: t.Offset(),
		stride: tensor.BroadcastStrides(t.Shape(), t.Strides(), outShape),
	}
}

// walkBroadcast visits every multi-index of shape in row-major order and
// applies dst = op(a, b) at the corresponding offset of each operand.
// Offsets advance odometer-style so no per-element division is needed.
func walkBroadcast(shape tensor.Shape, dst, a, b operand, op binaryOp) {
	n := shape.NumElements()
	if n == 0 {
		return
	}
	ndim := len(shape)
	if ndim == 0 {
		dst.data[dst.offset] = op.eval(a.data[a.offset], b.data[b.offset])
		return
	}

	idx := make([]int, ndim)
	od, oa, ob := dst.offset, a.offset, b.offset
	for range n {
		dst.data[od] = op.eval(a.data[oa], b.data[ob])

		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			od += dst.stride[d]
			oa += a.stride[d]
			ob += b.stride[d]
			if idx[d] < shape[d] {
				break
			}
			od -= idx[d] * dst.stride[d]
			oa -= idx[d] * a.stride[d]
			ob -= idx[d] * b.stride[d]
			idx[d] = 0
		}
	}
}

// isBiasRow reports whether a is [batch, dim] and b is [dim].
func isBiasRow(a, b tensor.Shape) bool {
	return len(a) == 2 && len(b) == 1 && a[1] == b[0]
}
