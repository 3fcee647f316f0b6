package autodiff

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Backward propagates a gradient of ones from t. For a scalar loss this is
// dL/dL = 1; for any other shape it is the gradient of the sum of t's elements.
func (t *Tensor) Backward() error {
	seed, err := tensor.Full(t.Shape(), 1)
	if err != nil {
		return fmt.Errorf("backward: %w", err)
	}
	return t.BackwardWith(seed.WithDevice(t.Device()))
}

// BackwardWith propagates the upstream gradient g from t.
//
// Every tensor reached accumulates the gradients it receives: its
// accumulated gradient becomes g when empty, or accum + g otherwise. A tensor
// feeding several consumers therefore ends up with the sum of all
// contributions. The walk uses an explicit stack, so deep graphs do not grow
// the goroutine stack.
func (t *Tensor) BackwardWith(g *tensor.RawTensor) error {
	if !t.RequiresGrad() {
		return fmt.Errorf("backward: tensor does not require grad: %w", tensor.ErrInvalidGraph)
	}
	if !g.Shape().Equal(t.Shape()) {
		return fmt.Errorf("backward: gradient shape %v differs from tensor shape %v: %w",
			g.Shape(), t.Shape(), tensor.ErrShapeMismatch)
	}

	type pending struct {
		t *Tensor
		g *tensor.RawTensor
	}
	stack := []pending{{t, g}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := p.t.accumulate(p.g); err != nil {
			return err
		}

		ctx := p.t.ctx
		if ctx.op == nil {
			continue
		}
		raws := make([]*tensor.RawTensor, len(ctx.inputs))
		for i, in := range ctx.inputs {
			raws[i] = in.raw
		}
		grads, err := ctx.op.Backward(p.t.backend, p.g, raws...)
		if err != nil {
			return fmt.Errorf("backward through %s: %w", ctx.op.Name(), err)
		}
		if len(grads) != len(ctx.inputs) {
			return fmt.Errorf("backward through %s: %d gradients for %d inputs: %w",
				ctx.op.Name(), len(grads), len(ctx.inputs), tensor.ErrInvalidGraph)
		}

		for i, in := range ctx.inputs {
			if in.RequiresGrad() && grads[i] != nil {
				stack = append(stack, pending{in, grads[i]})
			}
		}
	}
	return nil
}

// accumulate adds g into t's gradient.
func (t *Tensor) accumulate(g *tensor.RawTensor) error {
	if !g.Shape().Equal(t.Shape()) {
		return fmt.Errorf("accumulate gradient %v into %v: %w", g.Shape(), t.Shape(), tensor.ErrShapeMismatch)
	}
	if t.ctx.grad == nil {
		t.ctx.grad = g.Clone()
		return nil
	}
	sum, err := t.backend.Add(t.ctx.grad, g)
	if err != nil {
		return fmt.Errorf("accumulate gradient: %w", err)
	}
	t.ctx.grad.Release()
	t.ctx.grad = sum
	return nil
}

// ZeroGrad resets t's accumulated gradient to empty.
func (t *Tensor) ZeroGrad() {
	if t.ctx == nil || t.ctx.grad == nil {
		return
	}
	t.ctx.grad.Release()
	t.ctx.grad = nil
}

// ReleaseGraph drops the operation and input references of t and of every
// tensor upstream of it, leaving each one a leaf. Accumulated gradients are
// kept. The teardown is iterative.
func (t *Tensor) ReleaseGraph() {
	stack := []*Tensor{t}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.ctx == nil || n.ctx.op == nil {
			continue
		}
		stack = append(stack, n.ctx.inputs...)
		n.ctx.op = nil
		n.ctx.inputs = nil
	}
}
