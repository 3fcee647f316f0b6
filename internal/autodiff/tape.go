package autodiff

import (
	"sync"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Tape tracks the tensors whose gradients a training step reads, so they can
// be reset together once per optimization step.
//
// Usage:
//
//	tape := autodiff.NewTape()
//	w := tape.Variable(weights, backend)
//	for step := range steps {
//		tape.ZeroGrad()
//		loss, _ := model(w)
//		_ = loss.Backward()
//		// update w from w.Grad()
//	}
type Tape struct {
	mu      sync.Mutex
	tracked []*Tensor
}

// NewTape creates an empty tape.
func NewTape() *Tape {
	return &Tape{}
}

// Variable creates a leaf that requires gradients and tracks it.
func (tp *Tape) Variable(raw *tensor.RawTensor, backend tensor.Backend) *Tensor {
	v := NewVariable(raw, backend)
	tp.Watch(v)
	return v
}

// Watch tracks tensors that require gradients. Others are ignored.
func (tp *Tape) Watch(ts ...*Tensor) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	for _, t := range ts {
		if t.RequiresGrad() {
			tp.tracked = append(tp.tracked, t)
		}
	}
}

// Tracked returns the tracked tensors in the order they were added.
func (tp *Tape) Tracked() []*Tensor {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return append([]*Tensor(nil), tp.tracked...)
}

// ZeroGrad resets the accumulated gradient of every tracked tensor.
func (tp *Tape) ZeroGrad() {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	for _, t := range tp.tracked {
		t.ZeroGrad()
	}
}

// Clear stops tracking all tensors. Their gradients are left as they are.
func (tp *Tape) Clear() {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.tracked = nil
}
