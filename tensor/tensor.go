// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Device represents the device where tensor data resides.
type Device = tensor.Device

// Device constants.
const (
	CPU      Device = tensor.CPU
	WebGPU   Device = tensor.WebGPU
	Emulator Device = tensor.Emulator
)

// RawTensor is a strided view over shared float32 storage.
type RawTensor = tensor.RawTensor

// Snapshot is a contiguous copy of a tensor's shape and elements.
type Snapshot = tensor.Snapshot

// Range selects elements along one dimension for Slice.
type Range = tensor.Range

// ToEnd as a Range end selects through the last element.
const ToEnd = tensor.ToEnd

// Sentinel errors.
var (
	ErrShapeMismatch     = tensor.ErrShapeMismatch
	ErrDimension         = tensor.ErrDimension
	ErrBroadcast         = tensor.ErrBroadcast
	ErrInvalidGraph      = tensor.ErrInvalidGraph
	ErrDeviceState       = tensor.ErrDeviceState
	ErrAlreadyRegistered = tensor.ErrAlreadyRegistered
	ErrOutOfRange        = tensor.ErrOutOfRange
	ErrUnavailable       = tensor.ErrUnavailable
)

// NewRaw allocates a zero-filled tensor.
func NewRaw(shape Shape, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, device)
}

// FromSlice creates a tensor holding a copy of data.
// len(data) must equal shape.NumElements().
func FromSlice(data []float32, shape Shape, device Device) (*RawTensor, error) {
	return tensor.FromSlice(data, shape, device)
}

// FromSnapshot restores a contiguous CPU tensor from s.
func FromSnapshot(s Snapshot) (*RawTensor, error) {
	return tensor.FromSnapshot(s)
}

// Zeros creates a CPU tensor filled with zeros.
func Zeros(shape Shape) (*RawTensor, error) { return tensor.Zeros(shape) }

// Ones creates a CPU tensor filled with ones.
func Ones(shape Shape) (*RawTensor, error) { return tensor.Ones(shape) }

// Full creates a CPU tensor filled with value.
func Full(shape Shape, value float32) (*RawTensor, error) { return tensor.Full(shape, value) }

// Scalar creates a rank-0 tensor.
func Scalar(v float32) *RawTensor { return tensor.Scalar(v) }

// Randn creates a tensor of standard normal samples drawn from rng.
func Randn(shape Shape, rng *rand.Rand) (*RawTensor, error) { return tensor.Randn(shape, rng) }

// Rand creates a tensor of uniform samples in [0, 1) drawn from rng.
func Rand(shape Shape, rng *rand.Rand) (*RawTensor, error) { return tensor.Rand(shape, rng) }

// Arange creates the 1-D tensor [start, start+1, ..., end).
func Arange(start, end float32) (*RawTensor, error) { return tensor.Arange(start, end) }

// Eye creates an n×n identity matrix.
func Eye(n int) (*RawTensor, error) { return tensor.Eye(n) }

// BroadcastShapes returns the broadcast shape of a and b and whether either
// operand needs to be stretched.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}

// All selects a whole dimension.
func All() Range { return tensor.All() }

// Span selects [start, end) with step 1. Negative indices count from the end.
func Span(start, end int) Range { return tensor.Span(start, end) }

// Stride selects [start, end) every step elements.
func Stride(start, end, step int) Range { return tensor.Stride(start, end, step) }

// Index selects element i, keeping the dimension with size 1.
func Index(i int) Range { return tensor.Index(i) }
