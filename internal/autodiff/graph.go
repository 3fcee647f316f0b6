package autodiff

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/tensorcore/internal/autodiff/ops"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// GraphSpec describes a computation graph built outside this process.
//
// Example (YAML; the equivalent JSON is accepted too):
//
//	inputs:
//	  - {name: x, shape: [2, 3]}
//	  - {name: w, shape: [3, 4], requires_grad: true}
//	nodes:
//	  - {name: h, op: MatMul, inputs: [x, w]}
//	  - {name: loss, op: Sum, inputs: [h]}
//	output: loss
type GraphSpec struct {
	Inputs []InputSpec `yaml:"inputs" json:"inputs"`
	Nodes  []NodeSpec  `yaml:"nodes" json:"nodes"`
	Output string      `yaml:"output" json:"output"`
}

// InputSpec declares a value fed into the graph.
type InputSpec struct {
	Name string `yaml:"name" json:"name"`
	// Shape, when set, must match the fed tensor.
	Shape        []int `yaml:"shape,omitempty" json:"shape,omitempty"`
	RequiresGrad bool  `yaml:"requires_grad,omitempty" json:"requires_grad,omitempty"`
}

// NodeSpec applies an operation to previously defined values.
type NodeSpec struct {
	Name   string         `yaml:"name" json:"name"`
	Op     string         `yaml:"op" json:"op"`
	Inputs []string       `yaml:"inputs" json:"inputs"`
	Attrs  ops.Attributes `yaml:"attrs,omitempty" json:"attrs,omitempty"`
}

// ParseGraph decodes a GraphSpec from YAML or JSON.
func ParseGraph(data []byte) (*GraphSpec, error) {
	var spec GraphSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse graph: %w: %w", tensor.ErrInvalidGraph, err)
	}
	if spec.Output == "" {
		return nil, fmt.Errorf("parse graph: no output: %w", tensor.ErrInvalidGraph)
	}
	return &spec, nil
}

// Graph is an evaluated GraphSpec.
type Graph struct {
	// Output is the value named by GraphSpec.Output.
	Output *Tensor
	// Values holds every input and node by name. Inputs marked requires_grad
	// map to their promoted leaves, which receive gradients on Output.Backward.
	Values map[string]*Tensor
}

// Value returns the tensor bound to name.
func (g *Graph) Value(name string) (*Tensor, bool) {
	t, ok := g.Values[name]
	return t, ok
}

// Import evaluates spec with the standard operation registry.
func Import(spec *GraphSpec, feeds map[string]*Tensor) (*Graph, error) {
	return ImportWith(ops.NewRegistry(), spec, feeds)
}

// ImportWith evaluates spec node by node on the fed tensors. Inputs marked
// requires_grad are promoted to gradient-tracking leaves, so the output can be
// differentiated and the leaves read back from Graph.Values.
//
// Unknown operations, arity mismatches, duplicate names and references to
// undefined values return ErrInvalidGraph before the offending node runs.
func ImportWith(reg *ops.Registry, spec *GraphSpec, feeds map[string]*Tensor) (*Graph, error) {
	values := make(map[string]*Tensor, len(spec.Inputs)+len(spec.Nodes))

	for _, in := range spec.Inputs {
		if _, dup := values[in.Name]; dup {
			return nil, fmt.Errorf("import: duplicate value %q: %w", in.Name, tensor.ErrInvalidGraph)
		}
		t, ok := feeds[in.Name]
		if !ok {
			return nil, fmt.Errorf("import: input %q not fed: %w", in.Name, tensor.ErrInvalidGraph)
		}
		if in.Shape != nil && !t.Shape().Equal(in.Shape) {
			return nil, fmt.Errorf("import: input %q has shape %v, declared %v: %w",
				in.Name, t.Shape(), in.Shape, tensor.ErrShapeMismatch)
		}
		if in.RequiresGrad {
			t = t.RequireGrad()
		}
		values[in.Name] = t
	}

	for _, node := range spec.Nodes {
		if _, dup := values[node.Name]; dup || node.Name == "" {
			return nil, fmt.Errorf("import: duplicate or empty node name %q: %w", node.Name, tensor.ErrInvalidGraph)
		}
		op, err := reg.New(node.Op, node.Attrs)
		if err != nil {
			return nil, fmt.Errorf("import node %q: %w", node.Name, err)
		}
		if len(node.Inputs) != op.RequiredInputs() {
			return nil, fmt.Errorf("import node %q: %s takes %d inputs, got %d: %w",
				node.Name, op.Name(), op.RequiredInputs(), len(node.Inputs), tensor.ErrInvalidGraph)
		}

		args := make([]*Tensor, len(node.Inputs))
		for i, ref := range node.Inputs {
			v, ok := values[ref]
			if !ok {
				return nil, fmt.Errorf("import node %q: undefined value %q: %w", node.Name, ref, tensor.ErrInvalidGraph)
			}
			args[i] = v
		}

		out, err := Apply(op, args...)
		if err != nil {
			return nil, fmt.Errorf("import node %q: %w", node.Name, err)
		}
		values[node.Name] = out
	}

	out, ok := values[spec.Output]
	if !ok {
		return nil, fmt.Errorf("import: undefined output %q: %w", spec.Output, tensor.ErrInvalidGraph)
	}
	return &Graph{Output: out, Values: values}, nil
}
