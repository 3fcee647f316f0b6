package tensor

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
	Emulator
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	case Emulator:
		return "Emulator"
	default:
		return "Unknown"
	}
}

// DeviceBuffer is a device-resident copy of a storage buffer.
// Accelerator backends attach one to Storage to avoid re-uploading operands.
type DeviceBuffer interface {
	Device() Device
	Len() int
	Release()
}

// Storage is a reference-counted flat float32 buffer shared by every view
// derived from the same tensor.
type Storage struct {
	data     []float32
	refCount atomic.Int32
	writes   atomic.Uint64 // host accesses that may have written data

	res *residency
}

// residency holds the device copy apart from Storage so a cleanup can free
// it once the storage is unreachable.
type residency struct {
	mu      sync.Mutex
	buf     DeviceBuffer
	synced  uint64 // Storage.writes when buf was last known equal to data
	tracked bool
}

func (c *residency) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf != nil {
		c.buf.Release()
		c.buf = nil
	}
}

// newStorage creates a zeroed storage with refCount = 1.
func newStorage(n int) *Storage {
	s := &Storage{data: make([]float32, n), res: &residency{}}
	s.refCount.Store(1)
	return s
}

// Len returns the number of float32 slots in the buffer.
func (s *Storage) Len() int {
	return len(s.data)
}

// Resident returns the attached device buffer, or nil. current is false when
// the host buffer may have been written since the device copy was made.
func (s *Storage) Resident() (buf DeviceBuffer, current bool) {
	s.res.mu.Lock()
	defer s.res.mu.Unlock()
	return s.res.buf, s.res.buf != nil && s.res.synced == s.writes.Load()
}

// Attach binds a device-resident copy to the storage, releasing any previous
// one, and marks it current. Attaching the buffer already held only refreshes
// it. The caller guarantees buf holds the same values as the host buffer.
//
// The buffer is released when the last view is released, on a later Attach or
// Invalidate, or after the storage has been garbage collected.
func (s *Storage) Attach(buf DeviceBuffer) {
	c := s.res
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf != nil && c.buf != buf {
		c.buf.Release()
	}
	c.buf = buf
	c.synced = s.writes.Load()
	if buf != nil && !c.tracked {
		c.tracked = true
		runtime.AddCleanup(s, (*residency).drop, c)
	}
}

// Invalidate drops the device-resident copy after a host-side write.
func (s *Storage) Invalidate() {
	s.Attach(nil)
}

// touch records that the host buffer was handed out for writing.
func (s *Storage) touch() {
	s.writes.Add(1)
}

func (s *Storage) addRef() {
	s.refCount.Add(1)
}

func (s *Storage) release() {
	if s.refCount.Add(-1) == 0 {
		s.Invalidate()
	}
}

// RawTensor is the low-level tensor representation: a strided view over a
// shared Storage. Views produced by Reshape, Transpose and Slice alias the
// same storage with their own shape, strides and offset.
type RawTensor struct {
	storage *Storage
	shape   Shape
	stride  []int
	offset  int
	device  Device
}

// NewRaw creates a new zero-filled contiguous RawTensor.
func NewRaw(shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		storage: newStorage(shape.NumElements()),
		shape:   shape.Clone(),
		stride:  shape.ComputeStrides(),
		device:  device,
	}, nil
}

// FromSlice creates a contiguous tensor holding a copy of data.
func FromSlice(data []float32, shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d: %w",
			shape, shape.NumElements(), len(data), ErrShapeMismatch)
	}

	r, err := NewRaw(shape, device)
	if err != nil {
		return nil, err
	}
	copy(r.storage.data, data)
	return r, nil
}

// view returns a RawTensor over the same storage.
func (r *RawTensor) view(shape Shape, stride []int, offset int) *RawTensor {
	r.storage.addRef()
	return &RawTensor{
		storage: r.storage,
		shape:   shape,
		stride:  stride,
		offset:  offset,
		device:  r.device,
	}
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// Offset returns the position of the first element in the storage.
func (r *RawTensor) Offset() int {
	return r.offset
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// Rank returns the number of dimensions.
func (r *RawTensor) Rank() int {
	return len(r.shape)
}

// Storage returns the shared storage backing this tensor.
func (r *RawTensor) Storage() *Storage {
	return r.storage
}

// Buffer returns the whole underlying storage slice, shared with all views.
// WARNING: Direct access to underlying memory. Any device-resident copy is
// treated as stale from here on and refreshed before its next use.
func (r *RawTensor) Buffer() []float32 {
	r.storage.touch()
	return r.storage.data
}

// IsContiguous reports whether the elements are laid out in row-major order
// without gaps, starting at Offset.
func (r *RawTensor) IsContiguous() bool {
	expected := 1
	for i := len(r.shape) - 1; i >= 0; i-- {
		if r.shape[i] == 1 {
			continue
		}
		if r.stride[i] != expected {
			return false
		}
		expected *= r.shape[i]
	}
	return true
}

// Data returns the elements in row-major order.
// For a contiguous tensor the slice aliases the storage (zero-copy) and may be
// written through, so a device-resident copy counts as stale afterwards; for
// any other view it is a freshly materialized copy. Write through the slice
// before handing the tensor to an accelerator, not while it is in use there.
func (r *RawTensor) Data() []float32 {
	n := r.NumElements()
	if r.IsContiguous() {
		r.storage.touch()
		return r.storage.data[r.offset : r.offset+n]
	}
	out := make([]float32, n)
	r.gather(out)
	return out
}

// gather copies the logical elements of a strided view into dst.
func (r *RawTensor) gather(dst []float32) {
	n := len(dst)
	if n == 0 {
		return
	}
	ndim := len(r.shape)
	if ndim == 0 {
		dst[0] = r.storage.data[r.offset]
		return
	}

	idx := make([]int, ndim)
	src := r.offset
	for i := 0; i < n; i++ {
		dst[i] = r.storage.data[src]
		// Odometer increment over the multi-index.
		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			src += r.stride[d]
			if idx[d] < r.shape[d] {
				break
			}
			src -= idx[d] * r.stride[d]
			idx[d] = 0
		}
	}
}

// flatOffset converts a multi-index into a storage offset:
// offset + Σ index[d] * strides[d].
func (r *RawTensor) flatOffset(indices []int) (int, error) {
	if len(indices) != len(r.shape) {
		return 0, fmt.Errorf("expected %d indices, got %d: %w", len(r.shape), len(indices), ErrOutOfRange)
	}

	off := r.offset
	for i, idx := range indices {
		if idx < 0 || idx >= r.shape[i] {
			return 0, fmt.Errorf("index %d out of bounds for dimension %d (size %d): %w",
				idx, i, r.shape[i], ErrOutOfRange)
		}
		off += idx * r.stride[i]
	}
	return off, nil
}

// At returns the element at the given indices.
//
// Example:
//
//	value, err := t.At(1, 2) // Row 1, column 2
func (r *RawTensor) At(indices ...int) (float32, error) {
	off, err := r.flatOffset(indices)
	if err != nil {
		return 0, err
	}
	return r.storage.data[off], nil
}

// Set sets the element at the given indices.
func (r *RawTensor) Set(value float32, indices ...int) error {
	off, err := r.flatOffset(indices)
	if err != nil {
		return err
	}
	r.storage.data[off] = value
	r.storage.Invalidate()
	return nil
}

// Item returns the value of a single-element tensor.
func (r *RawTensor) Item() (float32, error) {
	if r.NumElements() != 1 {
		return 0, fmt.Errorf("item of tensor with shape %v: %w", r.shape, ErrShapeMismatch)
	}
	return r.storage.data[r.offset], nil
}

// Clone creates a deep, contiguous copy of the tensor on the same device.
func (r *RawTensor) Clone() *RawTensor {
	out := &RawTensor{
		storage: newStorage(r.NumElements()),
		shape:   r.shape.Clone(),
		stride:  r.shape.ComputeStrides(),
		device:  r.device,
	}
	copy(out.storage.data, r.Data())
	return out
}

// Contiguous returns r itself when it is already contiguous, otherwise a
// contiguous copy.
func (r *RawTensor) Contiguous() *RawTensor {
	if r.IsContiguous() {
		return r
	}
	return r.Clone()
}

// WithDevice returns a view of r tagged with another device.
// The storage is shared; backends use the tag to pick their code path.
func (r *RawTensor) WithDevice(device Device) *RawTensor {
	v := r.view(r.shape.Clone(), append([]int(nil), r.stride...), r.offset)
	v.device = device
	return v
}

// Release drops this view's reference to the storage. When the last reference
// is released any device-resident copy is freed; host memory is left to the GC.
func (r *RawTensor) Release() {
	r.storage.release()
}

// String returns a human-readable representation of the tensor.
func (r *RawTensor) String() string {
	return fmt.Sprintf("Tensor[float32]%v on %s", r.shape, r.device)
}
