package ops_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensorcore/internal/autodiff/ops"
	"github.com/born-ml/tensorcore/internal/backend/cpu"
	"github.com/born-ml/tensorcore/internal/tensor"
)

var approx = cmpopts.EquateApprox(1e-5, 1e-6)

func raw(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromSlice(data, shape, tensor.CPU)
	require.NoError(t, err)
	return r
}

func ones(t *testing.T, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.Ones(shape)
	require.NoError(t, err)
	return r
}

// backward runs op forward then backward with grad and returns the input gradients.
func backward(t *testing.T, op ops.Operation, grad *tensor.RawTensor, inputs ...*tensor.RawTensor) []*tensor.RawTensor {
	t.Helper()
	backend := cpu.New()
	out, err := op.Forward(backend, inputs...)
	require.NoError(t, err)
	if grad == nil {
		grad = ones(t, out.Shape()...)
	}
	grads, err := op.Backward(backend, grad, inputs...)
	require.NoError(t, err)
	require.Len(t, grads, op.RequiredInputs())
	for i, g := range grads {
		require.True(t, g.Shape().Equal(inputs[i].Shape()),
			"grad %d shape %v, want %v", i, g.Shape(), inputs[i].Shape())
	}
	return grads
}

func assertData(t *testing.T, want []float32, got *tensor.RawTensor, msg string) {
	t.Helper()
	if diff := cmp.Diff(want, got.Data(), approx); diff != "" {
		t.Errorf("%s (-want +got):\n%s", msg, diff)
	}
}

// TestAddOp_BroadcastBackward tests AddOp backward with a bias row.
func TestAddOp_BroadcastBackward(t *testing.T) {
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := raw(t, []float32{10, 20, 30}, 3)

	grads := backward(t, ops.AddOp{}, nil, a, b)
	assertData(t, []float32{1, 1, 1, 1, 1, 1}, grads[0], "grad_a")
	assertData(t, []float32{2, 2, 2}, grads[1], "grad_b")
}

func TestSubOp_Backward(t *testing.T) {
	a := raw(t, []float32{1, 2, 3}, 3)
	b := raw(t, []float32{4, 5, 6}, 3)
	g := raw(t, []float32{1, 2, 3}, 3)

	grads := backward(t, ops.SubOp{}, g, a, b)
	assertData(t, []float32{1, 2, 3}, grads[0], "grad_a")
	assertData(t, []float32{-1, -2, -3}, grads[1], "grad_b")
}

func TestMulOp_Backward(t *testing.T) {
	a := raw(t, []float32{1, 2, 3}, 3)
	b := raw(t, []float32{4, 5, 6}, 3)

	grads := backward(t, ops.MulOp{}, nil, a, b)
	assertData(t, []float32{4, 5, 6}, grads[0], "grad_a")
	assertData(t, []float32{1, 2, 3}, grads[1], "grad_b")
}

func TestDivOp_Backward(t *testing.T) {
	a := raw(t, []float32{1, 2}, 2)
	b := raw(t, []float32{2, 4}, 2)

	grads := backward(t, ops.DivOp{}, nil, a, b)
	assertData(t, []float32{0.5, 0.25}, grads[0], "grad_a")
	assertData(t, []float32{-0.25, -0.125}, grads[1], "grad_b")
}

func TestPowOp_Backward(t *testing.T) {
	a := raw(t, []float32{2, 3}, 2)
	b := raw(t, []float32{2}, 1)

	grads := backward(t, ops.PowOp{}, nil, a, b)
	assertData(t, []float32{4, 6}, grads[0], "grad_a")
	want := float32(4*math.Log(2) + 9*math.Log(3))
	assertData(t, []float32{want}, grads[1], "grad_b")
}

func TestMatMulOp_Backward(t *testing.T) {
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := raw(t, []float32{1, 2, 3, 4, 5, 6}, 3, 2)

	grads := backward(t, ops.MatMulOp{}, nil, a, b)
	// grad_a = ones @ bᵀ: each row holds the row sums of b.
	assertData(t, []float32{3, 7, 11, 3, 7, 11}, grads[0], "grad_a")
	// grad_b = aᵀ @ ones: each row holds a column sum of a.
	assertData(t, []float32{5, 5, 7, 7, 9, 9}, grads[1], "grad_b")
}

func TestMatMulOp_BatchBroadcastBackward(t *testing.T) {
	a := raw(t, []float32{1, 2, 3, 4, 5, 6, 1, 2, 3, 4, 5, 6}, 2, 2, 3)
	b := raw(t, []float32{1, 2, 3, 4, 5, 6}, 3, 2)

	grads := backward(t, ops.MatMulOp{}, nil, a, b)
	assertData(t, []float32{3, 7, 11, 3, 7, 11, 3, 7, 11, 3, 7, 11}, grads[0], "grad_a")
	// Two identical batches contribute twice.
	assertData(t, []float32{10, 10, 14, 14, 18, 18}, grads[1], "grad_b")
}

func TestGemmOp(t *testing.T) {
	backend := cpu.New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := raw(t, []float32{1, 0, 0, 1, 1, 1}, 3, 2)
	c := raw(t, []float32{10, 20}, 2)

	out, err := ops.GemmOp{}.Forward(backend, a, b, c)
	require.NoError(t, err)
	assertData(t, []float32{14, 25, 20, 31}, out, "forward")

	grads := backward(t, ops.GemmOp{}, nil, a, b, c)
	assertData(t, []float32{1, 1, 2, 1, 1, 2}, grads[0], "grad_a")
	assertData(t, []float32{5, 5, 7, 7, 9, 9}, grads[1], "grad_b")
	assertData(t, []float32{2, 2}, grads[2], "grad_c")
}

func TestReshapeOp(t *testing.T) {
	x := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	op := ops.ReshapeOp{Shape: tensor.Shape{3, 2}}

	g := raw(t, []float32{1, 2, 3, 4, 5, 6}, 3, 2)
	grads := backward(t, op, g, x)
	assertData(t, []float32{1, 2, 3, 4, 5, 6}, grads[0], "grad")

	_, err := ops.ReshapeOp{Shape: tensor.Shape{4}}.Forward(cpu.New(), x)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

// TestTransposeOp_Backward checks that gradients land at the untransposed positions.
func TestTransposeOp_Backward(t *testing.T) {
	x := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	g := raw(t, []float32{10, 11, 12, 13, 14, 15}, 3, 2)

	grads := backward(t, ops.TransposeOp{}, g, x)
	assertData(t, []float32{10, 12, 14, 11, 13, 15}, grads[0], "grad")

	x3, err := tensor.Arange(0, 24)
	require.NoError(t, err)
	x3, err = x3.Reshape(tensor.Shape{2, 3, 4})
	require.NoError(t, err)
	perm := ops.TransposeOp{Axes: []int{2, 0, 1}}
	out, err := perm.Forward(cpu.New(), x3)
	require.NoError(t, err)

	// Backward of a permutation applied to its own output restores the input.
	grads = backward(t, perm, out, x3)
	assertData(t, x3.Data(), grads[0], "inverse permutation")
}

func TestSliceOp_Backward(t *testing.T) {
	x, err := tensor.Arange(0, 16)
	require.NoError(t, err)
	x, err = x.Reshape(tensor.Shape{4, 4})
	require.NoError(t, err)

	op := ops.SliceOp{Ranges: []tensor.Range{tensor.Span(1, 3), tensor.Stride(0, tensor.ToEnd, 2)}}
	grads := backward(t, op, nil, x)
	want := []float32{
		0, 0, 0, 0,
		1, 0, 1, 0,
		1, 0, 1, 0,
		0, 0, 0, 0,
	}
	assertData(t, want, grads[0], "grad")
}

func TestSumOp_Backward(t *testing.T) {
	x := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	out, err := ops.SumOp{}.Forward(cpu.New(), x)
	require.NoError(t, err)
	v, err := out.Item()
	require.NoError(t, err)
	assert.InDelta(t, 21, v, 1e-6)

	grads := backward(t, ops.SumOp{}, tensor.Scalar(2), x)
	assertData(t, []float32{2, 2, 2, 2, 2, 2}, grads[0], "grad")
}

func TestScaleOp_Backward(t *testing.T) {
	x := raw(t, []float32{1, 2}, 2)
	grads := backward(t, ops.ScaleOp{S: 3}, nil, x)
	assertData(t, []float32{3, 3}, grads[0], "scale")

	grads = backward(t, ops.Neg(), nil, x)
	assertData(t, []float32{-1, -1}, grads[0], "neg")
}

func TestCheckArity(t *testing.T) {
	x := raw(t, []float32{1}, 1)
	_, err := ops.AddOp{}.Forward(cpu.New(), x)
	assert.ErrorIs(t, err, tensor.ErrInvalidGraph)

	_, err = ops.GemmOp{}.Backward(cpu.New(), x, x, x)
	assert.ErrorIs(t, err, tensor.ErrInvalidGraph)
}

func TestRegistry(t *testing.T) {
	reg := ops.NewRegistry()

	assert.Contains(t, reg.Names(), "MatMul")
	assert.Contains(t, reg.Names(), "Gemm")

	_, err := reg.New("Conv2D", nil)
	assert.ErrorIs(t, err, tensor.ErrInvalidGraph)

	err = reg.Register("Add", func(ops.Attributes) (ops.Operation, error) { return ops.AddOp{}, nil })
	assert.ErrorIs(t, err, tensor.ErrAlreadyRegistered)

	op, err := reg.New("Reshape", ops.Attributes{"shape": []any{3, 2}})
	require.NoError(t, err)
	assert.Equal(t, ops.ReshapeOp{Shape: tensor.Shape{3, 2}}, op)

	_, err = reg.New("Reshape", ops.Attributes{})
	assert.ErrorIs(t, err, tensor.ErrInvalidGraph)

	_, err = reg.New("Reshape", ops.Attributes{"shape": "3x2"})
	assert.ErrorIs(t, err, tensor.ErrInvalidGraph)

	op, err = reg.New("Scale", ops.Attributes{"s": 0.5})
	require.NoError(t, err)
	assert.Equal(t, ops.ScaleOp{S: 0.5}, op)

	op, err = reg.New("Slice", ops.Attributes{"ranges": []any{1, ":", []any{0, nil, 2}}})
	require.NoError(t, err)
	assert.Equal(t, ops.SliceOp{Ranges: []tensor.Range{
		tensor.Index(1),
		tensor.All(),
		tensor.Stride(0, tensor.ToEnd, 2),
	}}, op)
}
