package tensor

import (
	"fmt"
	"math"
	"math/rand"
)

// Zeros creates a CPU tensor filled with zeros.
//
// Example:
//
//	t, err := tensor.Zeros(tensor.Shape{3, 4})
func Zeros(shape Shape) (*RawTensor, error) {
	return NewRaw(shape, CPU)
}

// Ones creates a CPU tensor filled with ones.
func Ones(shape Shape) (*RawTensor, error) {
	return Full(shape, 1)
}

// Full creates a CPU tensor filled with a specific value.
//
// Example:
//
//	t, err := tensor.Full(tensor.Shape{3, 3}, 3.14)
func Full(shape Shape, value float32) (*RawTensor, error) {
	t, err := NewRaw(shape, CPU)
	if err != nil {
		return nil, err
	}
	data := t.storage.data
	for i := range data {
		data[i] = value
	}
	return t, nil
}

// Scalar creates a 0-D tensor holding v.
func Scalar(v float32) *RawTensor {
	t, _ := FromSlice([]float32{v}, Shape{}, CPU)
	return t
}

// Randn creates a tensor with values from a normal distribution (mean=0, std=1).
// Uses Box-Muller transform for generating normal distribution.
// Note: Uses math/rand (not crypto/rand) - appropriate for ML/statistical purposes.
func Randn(shape Shape, rng *rand.Rand) (*RawTensor, error) {
	t, err := NewRaw(shape, CPU)
	if err != nil {
		return nil, err
	}
	data := t.storage.data
	for i := 0; i < len(data); i += 2 {
		u1 := 1 - rng.Float64() // (0, 1] keeps the log finite
		u2 := rng.Float64()
		r := math.Sqrt(-2.0 * math.Log(u1))
		data[i] = float32(r * math.Cos(2.0*math.Pi*u2))
		if i+1 < len(data) {
			data[i+1] = float32(r * math.Sin(2.0*math.Pi*u2))
		}
	}
	return t, nil
}

// Rand creates a tensor with values uniformly distributed in [0, 1).
func Rand(shape Shape, rng *rand.Rand) (*RawTensor, error) {
	t, err := NewRaw(shape, CPU)
	if err != nil {
		return nil, err
	}
	for i := range t.storage.data {
		t.storage.data[i] = rng.Float32()
	}
	return t, nil
}

// Arange creates a 1D tensor with values start, start+1, ... below end.
//
// Example:
//
//	t, _ := tensor.Arange(0, 10) // [0, 1, 2, ..., 9]
func Arange(start, end float32) (*RawTensor, error) {
	n := int(math.Ceil(float64(end - start)))
	if n <= 0 {
		return nil, fmt.Errorf("arange: end %v must be greater than start %v: %w", end, start, ErrOutOfRange)
	}
	t, err := NewRaw(Shape{n}, CPU)
	if err != nil {
		return nil, err
	}
	for i := range t.storage.data {
		t.storage.data[i] = start + float32(i)
	}
	return t, nil
}

// Eye creates a 2D identity matrix.
func Eye(n int) (*RawTensor, error) {
	t, err := NewRaw(Shape{n, n}, CPU)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		t.storage.data[i*n+i] = 1
	}
	return t, nil
}
