package tensor

import (
	"fmt"
	"slices"
)

// Shape lists the size of each dimension, outermost first. An empty Shape is
// a scalar.
type Shape []int

// NumElements returns the product of the dimensions; 1 for a scalar.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate rejects negative dimensions. Size 0 is allowed.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("dimension %d has negative size %d: %w", i, dim, ErrShapeMismatch)
		}
	}
	return nil
}

// Equal reports whether s and other have the same rank and sizes.
func (s Shape) Equal(other Shape) bool {
	return slices.Equal(s, other)
}

// Clone returns a copy that never aliases s.
func (s Shape) Clone() Shape {
	return append(make(Shape, 0, len(s)), s...)
}

// Rank returns len(s).
func (s Shape) Rank() int {
	return len(s)
}

// ComputeStrides returns row-major strides: the last dimension has stride 1
// and each earlier one spans everything after it.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	step := 1
	for d := len(s) - 1; d >= 0; d-- {
		strides[d] = step
		step *= s[d]
	}
	return strides
}

// BroadcastShapes returns the shape two operands combine to. Shapes are
// aligned at the trailing dimension and a missing or size-1 dimension stretches
// to the other side's size. The flag is false only when a and b are identical.
//
//	[3 1] [3 5] -> [3 5] true
//	[2 3] [3]   -> [2 3] true
//	[3 5] [3 5] -> [3 5] false
//	[3 4] [3 5] -> ErrBroadcast
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	rank := max(len(a), len(b))
	out := make(Shape, rank)
	stretched := len(a) != len(b)

	for d := range rank {
		da, db := alignedDim(a, rank, d), alignedDim(b, rank, d)
		switch {
		case da == db:
			out[d] = da
		case da == 1:
			out[d], stretched = db, true
		case db == 1:
			out[d], stretched = da, true
		default:
			return nil, false, fmt.Errorf("shapes %v and %v differ at dimension %d (%d vs %d): %w",
				a, b, d, da, db, ErrBroadcast)
		}
	}
	return out, stretched, nil
}

// alignedDim returns dimension d of s right-aligned to rank, or 1 where s has
// no such dimension.
func alignedDim(s Shape, rank, d int) int {
	if i := d - (rank - len(s)); i >= 0 {
		return s[i]
	}
	return 1
}

// BroadcastStrides returns strides that map an index in outShape onto a tensor
// with the given shape and strides. Dimensions of size 1 and leading dimensions
// missing from shape get stride 0.
func BroadcastStrides(shape Shape, strides []int, outShape Shape) []int {
	out := make([]int, len(outShape))
	shift := len(outShape) - len(shape)
	for i := range outShape {
		j := i - shift
		if j < 0 || shape[j] == 1 {
			continue
		}
		out[i] = strides[j]
	}
	return out
}
