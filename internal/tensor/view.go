package tensor

import "fmt"

// Reshape returns a view with default strides for newShape sharing storage.
// It succeeds iff product(newShape) == NumElements(). A non-contiguous view is
// materialized first, so the result never aliases a gapped layout.
func (r *RawTensor) Reshape(newShape Shape) (*RawTensor, error) {
	if err := newShape.Validate(); err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	if newShape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("reshape: incompatible shapes: %v -> %v (different number of elements): %w",
			r.shape, newShape, ErrShapeMismatch)
	}

	if !r.IsContiguous() {
		c := r.Clone()
		c.shape = newShape.Clone()
		c.stride = newShape.ComputeStrides()
		return c, nil
	}
	return r.view(newShape.Clone(), newShape.ComputeStrides(), r.offset), nil
}

// Transpose swaps the last two dimensions without copying data.
func (r *RawTensor) Transpose() (*RawTensor, error) {
	ndim := len(r.shape)
	if ndim < 2 {
		return nil, fmt.Errorf("transpose: need at least 2 dimensions, got %d: %w", ndim, ErrDimension)
	}
	axes := make([]int, ndim)
	for i := range axes {
		axes[i] = i
	}
	axes[ndim-2], axes[ndim-1] = axes[ndim-1], axes[ndim-2]
	return r.Permute(axes...)
}

// Permute reorders dimensions: result dim i is input dim axes[i].
// With no axes all dimensions are reversed. No data is copied.
func (r *RawTensor) Permute(axes ...int) (*RawTensor, error) {
	ndim := len(r.shape)

	// Default: reverse all dimensions
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		return nil, fmt.Errorf("permute: axes length %d != ndim %d: %w", len(axes), ndim, ErrDimension)
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			return nil, fmt.Errorf("permute: invalid axis %d for %dD tensor: %w", ax, ndim, ErrDimension)
		}
		if seen[ax] {
			return nil, fmt.Errorf("permute: duplicate axis %d: %w", ax, ErrDimension)
		}
		seen[ax] = true
	}

	shape := make(Shape, ndim)
	stride := make([]int, ndim)
	for i, ax := range axes {
		shape[i] = r.shape[ax]
		stride[i] = r.stride[ax]
	}
	return r.view(shape, stride, r.offset), nil
}

// Slice returns a view selecting ranges per dimension. Missing trailing
// ranges select the whole dimension. No data is copied.
func (r *RawTensor) Slice(ranges ...Range) (*RawTensor, error) {
	ndim := len(r.shape)
	if len(ranges) > ndim {
		return nil, fmt.Errorf("slice: %d ranges for %dD tensor: %w", len(ranges), ndim, ErrDimension)
	}

	shape := r.shape.Clone()
	stride := append([]int(nil), r.stride...)
	offset := r.offset
	for d, rg := range ranges {
		start, size, err := rg.Resolve(r.shape[d])
		if err != nil {
			return nil, fmt.Errorf("slice: dimension %d: %w", d, err)
		}
		offset += start * r.stride[d]
		shape[d] = size
		stride[d] = r.stride[d] * rg.Step
	}
	return r.view(shape, stride, offset), nil
}

// Expand returns a read-only broadcast view of r with the given shape, using
// stride 0 on broadcast dimensions. The caller must not write through it.
func (r *RawTensor) Expand(shape Shape) (*RawTensor, error) {
	out, _, err := BroadcastShapes(r.shape, shape)
	if err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}
	if !out.Equal(shape) {
		return nil, fmt.Errorf("expand: %v cannot be expanded to %v: %w", r.shape, shape, ErrBroadcast)
	}
	return r.view(shape.Clone(), BroadcastStrides(r.shape, r.stride, shape), r.offset), nil
}

// CopyFrom writes the elements of src into r, honoring r's strides. Shapes
// must match. Any device-resident copy of r's storage is dropped.
func (r *RawTensor) CopyFrom(src *RawTensor) error {
	if !r.shape.Equal(src.shape) {
		return fmt.Errorf("copy: shape %v into %v: %w", src.shape, r.shape, ErrShapeMismatch)
	}
	values := src.Data()
	if r.IsContiguous() {
		copy(r.storage.data[r.offset:r.offset+len(values)], values)
		r.storage.Invalidate()
		return nil
	}
	// src may alias r; values is a private copy only when src was gathered.
	if src.storage == r.storage && src.IsContiguous() {
		values = append([]float32(nil), values...)
	}
	r.scatter(values)
	r.storage.Invalidate()
	return nil
}

// scatter is the inverse of gather: it writes src into the strided view.
func (r *RawTensor) scatter(src []float32) {
	n := len(src)
	if n == 0 {
		return
	}
	ndim := len(r.shape)
	if ndim == 0 {
		r.storage.data[r.offset] = src[0]
		return
	}

	idx := make([]int, ndim)
	dst := r.offset
	for i := 0; i < n; i++ {
		r.storage.data[dst] = src[i]
		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			dst += r.stride[d]
			if idx[d] < r.shape[d] {
				break
			}
			dst -= idx[d] * r.stride[d]
			idx[d] = 0
		}
	}
}
