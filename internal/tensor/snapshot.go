package tensor

import (
	"fmt"

	"github.com/x448/float16"
)

// Snapshot is a detached, contiguous copy of a tensor's values plus the shape
// metadata needed to restore it. Serializers persist snapshots; the engine
// itself defines no on-disk format.
type Snapshot struct {
	Shape Shape
	Data  []float32
}

// Snapshot copies the tensor's elements in row-major order.
func (r *RawTensor) Snapshot() Snapshot {
	data := make([]float32, r.NumElements())
	copy(data, r.Data())
	return Snapshot{Shape: r.shape.Clone(), Data: data}
}

// FromSnapshot restores a CPU tensor from a snapshot.
func FromSnapshot(s Snapshot) (*RawTensor, error) {
	return FromSlice(s.Data, s.Shape, CPU)
}

// Float16 converts the snapshot values to IEEE 754 half-precision bit patterns.
// Values outside the half range saturate to ±Inf.
func (s Snapshot) Float16() []uint16 {
	out := make([]uint16, len(s.Data))
	for i, v := range s.Data {
		out[i] = float16.Fromfloat32(v).Bits()
	}
	return out
}

// SnapshotFromFloat16 rebuilds a snapshot from half-precision bit patterns.
func SnapshotFromFloat16(shape Shape, bits []uint16) (Snapshot, error) {
	if shape.NumElements() != len(bits) {
		return Snapshot{}, fmt.Errorf("float16 snapshot: shape %v requires %d values, got %d: %w",
			shape, shape.NumElements(), len(bits), ErrShapeMismatch)
	}
	data := make([]float32, len(bits))
	for i, b := range bits {
		data[i] = float16.Frombits(b).Float32()
	}
	return Snapshot{Shape: shape.Clone(), Data: data}, nil
}
