package ops

import (
	"fmt"
	"slices"
	"sync"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Factory builds an operation from node attributes.
type Factory func(attrs Attributes) (Operation, error)

// Registry maps operation names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with every standard operation.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
	}

	r.registerArithmetic()
	r.registerShapeOps()
	return r
}

// Register adds an operation factory. Registering a name twice returns
// ErrAlreadyRegistered.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("operation %q: %w", name, tensor.ErrAlreadyRegistered)
	}
	r.factories[name] = f
	return nil
}

// New builds the named operation. Unknown names and malformed attributes
// return ErrInvalidGraph.
func (r *Registry) New(name string, attrs Attributes) (Operation, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported operation %q: %w", name, tensor.ErrInvalidGraph)
	}
	op, err := f(attrs)
	if err != nil {
		return nil, fmt.Errorf("operation %q: %w", name, err)
	}
	return op, nil
}

// Names returns the registered operation names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) mustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// stateless returns a factory for an operation without attributes.
func stateless(op Operation) Factory {
	return func(Attributes) (Operation, error) { return op, nil }
}

func (r *Registry) registerArithmetic() {
	r.mustRegister("Add", stateless(AddOp{}))
	r.mustRegister("Sub", stateless(SubOp{}))
	r.mustRegister("Mul", stateless(MulOp{}))
	r.mustRegister("Div", stateless(DivOp{}))
	r.mustRegister("Pow", stateless(PowOp{}))
	r.mustRegister("MatMul", stateless(MatMulOp{}))
	r.mustRegister("Gemm", stateless(GemmOp{}))
	r.mustRegister("Sum", stateless(SumOp{}))
	r.mustRegister("Neg", stateless(Neg()))
	r.mustRegister("Identity", stateless(IdentityOp{}))
	r.mustRegister("Scale", func(attrs Attributes) (Operation, error) {
		s, err := attrs.Float("s", 1)
		if err != nil {
			return nil, err
		}
		return ScaleOp{S: s}, nil
	})
}

func (r *Registry) registerShapeOps() {
	r.mustRegister("Reshape", func(attrs Attributes) (Operation, error) {
		shape, err := attrs.Ints("shape")
		if err != nil {
			return nil, err
		}
		if shape == nil {
			return nil, fmt.Errorf("missing attribute %q: %w", "shape", tensor.ErrInvalidGraph)
		}
		return ReshapeOp{Shape: shape}, nil
	})
	r.mustRegister("Transpose", func(attrs Attributes) (Operation, error) {
		axes, err := attrs.Ints("axes")
		if err != nil {
			return nil, err
		}
		return TransposeOp{Axes: axes}, nil
	})
	r.mustRegister("Slice", func(attrs Attributes) (Operation, error) {
		ranges, err := attrs.Ranges("ranges")
		if err != nil {
			return nil, err
		}
		return SliceOp{Ranges: ranges}, nil
	})
}
