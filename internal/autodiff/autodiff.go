// Package autodiff implements dynamic reverse-mode automatic differentiation.
//
// A Tensor pairs a RawTensor with the backend that computes on it. Tensors
// that participate in differentiation carry a Context recording the operation
// that produced them and that operation's inputs. The graph is built lazily
// as operations run; Backward walks it from any tensor, accumulating
// gradients into every tensor it reaches.
//
// Usage:
//
//	b := cpu.New()
//	x, _ := autodiff.FromSlice([]float32{2}, tensor.Shape{1}, b)
//	x = x.RequireGrad()
//	y, _ := x.Mul(x) // y = x²
//
//	_ = y.Backward()
//	fmt.Println(x.Grad().Data()) // dy/dx = 2x = [4]
//
// A graph is not safe for concurrent Backward calls. Workers training in
// parallel keep their own graphs and merge gradients afterwards.
package autodiff

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/autodiff/ops"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Context is the autograd record of a differentiable tensor.
type Context struct {
	requiresGrad bool
	op           ops.Operation // nil for leaves
	inputs       []*Tensor
	grad         *tensor.RawTensor // nil until the first gradient arrives
}

// RequiresGrad reports whether gradients are tracked. It never changes after
// the context is created.
func (c *Context) RequiresGrad() bool { return c.requiresGrad }

// Op returns the producing operation, or nil for a leaf.
func (c *Context) Op() ops.Operation { return c.op }

// Inputs returns the tensors consumed by the producing operation.
func (c *Context) Inputs() []*Tensor { return c.inputs }

// Tensor is a RawTensor bound to a backend, optionally tracked for gradients.
type Tensor struct {
	raw     *tensor.RawTensor
	backend tensor.Backend
	ctx     *Context
}

// New wraps raw as a constant: operations on it record no graph unless
// another input requires gradients.
func New(raw *tensor.RawTensor, backend tensor.Backend) *Tensor {
	return &Tensor{raw: raw, backend: backend}
}

// NewVariable wraps raw as a leaf that requires gradients.
func NewVariable(raw *tensor.RawTensor, backend tensor.Backend) *Tensor {
	return &Tensor{raw: raw, backend: backend, ctx: &Context{requiresGrad: true}}
}

// FromSlice creates a constant tensor holding a copy of data.
func FromSlice(data []float32, shape tensor.Shape, backend tensor.Backend) (*Tensor, error) {
	raw, err := tensor.FromSlice(data, shape, backend.Device())
	if err != nil {
		return nil, err
	}
	return New(raw, backend), nil
}

// RequireGrad returns a leaf sharing t's storage that requires gradients.
// A tensor that already requires gradients is returned unchanged.
func (t *Tensor) RequireGrad() *Tensor {
	if t.RequiresGrad() {
		return t
	}
	return NewVariable(t.raw, t.backend)
}

// Detach returns a constant sharing t's storage, cut off from the graph.
func (t *Tensor) Detach() *Tensor {
	return New(t.raw, t.backend)
}

// Raw returns the underlying RawTensor.
func (t *Tensor) Raw() *tensor.RawTensor { return t.raw }

// Backend returns the backend operations on t run on.
func (t *Tensor) Backend() tensor.Backend { return t.backend }

// Context returns the autograd record, or nil for a constant.
func (t *Tensor) Context() *Context { return t.ctx }

// Shape returns the tensor's shape.
func (t *Tensor) Shape() tensor.Shape { return t.raw.Shape() }

// Data returns the elements in row-major order.
func (t *Tensor) Data() []float32 { return t.raw.Data() }

// Device returns the device tag of the underlying tensor.
func (t *Tensor) Device() tensor.Device { return t.raw.Device() }

// RequiresGrad reports whether t tracks gradients.
func (t *Tensor) RequiresGrad() bool { return t.ctx != nil && t.ctx.requiresGrad }

// IsLeaf reports whether t was not produced by a recorded operation.
func (t *Tensor) IsLeaf() bool { return t.ctx == nil || t.ctx.op == nil }

// Grad returns the accumulated gradient, or nil if none has arrived.
func (t *Tensor) Grad() *tensor.RawTensor {
	if t.ctx == nil {
		return nil
	}
	return t.ctx.grad
}

// String returns a human-readable description.
func (t *Tensor) String() string {
	return fmt.Sprintf("%s requires_grad=%t", t.raw, t.RequiresGrad())
}

// Apply runs op forward on the inputs' raw tensors using the first input's
// backend. The result records op and its inputs when any input requires
// gradients.
func Apply(op ops.Operation, inputs ...*Tensor) (*Tensor, error) {
	if len(inputs) != op.RequiredInputs() {
		return nil, fmt.Errorf("%s: expected %d inputs, got %d: %w",
			op.Name(), op.RequiredInputs(), len(inputs), tensor.ErrInvalidGraph)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%s: no inputs: %w", op.Name(), tensor.ErrInvalidGraph)
	}
	return applyOn(inputs[0].backend, op, inputs...)
}

func applyOn(b tensor.Backend, op ops.Operation, inputs ...*Tensor) (*Tensor, error) {
	raws := make([]*tensor.RawTensor, len(inputs))
	track := false
	for i, in := range inputs {
		raws[i] = in.raw
		track = track || in.RequiresGrad()
	}

	out, err := op.Forward(b, raws...)
	if err != nil {
		return nil, err
	}
	result := New(out, b)
	if track {
		result.ctx = &Context{requiresGrad: true, op: op, inputs: inputs}
	}
	return result, nil
}

// Add returns t + other with broadcasting.
func (t *Tensor) Add(other *Tensor) (*Tensor, error) { return Apply(ops.AddOp{}, t, other) }

// Sub returns t - other with broadcasting.
func (t *Tensor) Sub(other *Tensor) (*Tensor, error) { return Apply(ops.SubOp{}, t, other) }

// Mul returns t * other element-wise with broadcasting.
func (t *Tensor) Mul(other *Tensor) (*Tensor, error) { return Apply(ops.MulOp{}, t, other) }

// Div returns t / other element-wise with broadcasting.
func (t *Tensor) Div(other *Tensor) (*Tensor, error) { return Apply(ops.DivOp{}, t, other) }

// Pow returns t ^ exponent element-wise with broadcasting.
func (t *Tensor) Pow(exponent *Tensor) (*Tensor, error) { return Apply(ops.PowOp{}, t, exponent) }

// MatMul returns the batched matrix product t @ other.
func (t *Tensor) MatMul(other *Tensor) (*Tensor, error) { return Apply(ops.MatMulOp{}, t, other) }

// Gemm returns t @ w + bias.
func (t *Tensor) Gemm(w, bias *Tensor) (*Tensor, error) { return Apply(ops.GemmOp{}, t, w, bias) }

// Reshape returns t with a new shape of the same element count.
func (t *Tensor) Reshape(shape tensor.Shape) (*Tensor, error) {
	return Apply(ops.ReshapeOp{Shape: shape.Clone()}, t)
}

// Transpose swaps the last two dimensions, or permutes all of them when
// axes are given.
func (t *Tensor) Transpose(axes ...int) (*Tensor, error) {
	return Apply(ops.TransposeOp{Axes: axes}, t)
}

// Slice selects one Range per leading dimension.
func (t *Tensor) Slice(ranges ...tensor.Range) (*Tensor, error) {
	return Apply(ops.SliceOp{Ranges: ranges}, t)
}

// Sum reduces all elements to a 0-D tensor.
func (t *Tensor) Sum() (*Tensor, error) { return Apply(ops.SumOp{}, t) }

// Scale returns s * t.
func (t *Tensor) Scale(s float32) (*Tensor, error) { return Apply(ops.ScaleOp{S: s}, t) }

// Neg returns -t.
func (t *Tensor) Neg() (*Tensor, error) { return Apply(ops.Neg(), t) }

// To moves t onto backend b. Later operations on the result run on b, and
// gradients flow back to t unchanged.
func (t *Tensor) To(b tensor.Backend) (*Tensor, error) {
	return applyOn(b, ops.IdentityOp{}, t)
}
