// Package device defines the accelerator contracts used when a tensor is
// bound to a non-CPU device: compiled kernels, command queues, device
// buffers and the positional argument model used to dispatch kernels.
package device

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Accelerator is an execution target that compiles kernels, owns device
// memory and creates command queues.
type Accelerator interface {
	// Kind reports the tensor device tag this accelerator serves.
	Kind() tensor.Device
	// Name is a human-readable adapter description.
	Name() string
	// Compile builds a kernel from a program. The accelerator picks the
	// program representation it understands.
	Compile(name string, p Program) (Kernel, error)
	// NewQueue creates a command queue.
	NewQueue() (Queue, error)
	// Alloc creates a zeroed device buffer of n float32 elements.
	Alloc(n int) (Buffer, error)
	// Release frees the accelerator. Kernels and queues must be released
	// first; buffers still outstanding are freed with it, and releasing them
	// afterwards is a no-op.
	Release()
}

// Program is the source of a kernel. WebGPU compiles Source (WGSL, entry
// point "main"); the emulator runs Host.
type Program struct {
	Source string
	Host   HostFunc
}

// HostFunc is a kernel implemented in Go, executed by software accelerators.
type HostFunc func(inv Invocation) error

// Invocation is one dispatch of a HostFunc.
type Invocation struct {
	Args   []Arg
	Global WorkSize
	Local  WorkSize
}

// Kernel is a compiled program bound to one accelerator.
type Kernel interface {
	Name() string
	Device() tensor.Device
	Release()
}

// Buffer is device-resident float32 memory.
type Buffer interface {
	tensor.DeviceBuffer
	// Owner returns the accelerator that allocated the buffer.
	Owner() Accelerator
}

// HostBuffer is a Buffer whose contents are addressable from Go.
type HostBuffer interface {
	Buffer
	Floats() []float32
}

// Queue orders work on one accelerator. Commands run in submission order.
type Queue interface {
	// Dispatch enqueues kernel k with positional args over the global work
	// size, split into local workgroups.
	Dispatch(k Kernel, args []Arg, global, local WorkSize) error
	// Write enqueues a host-to-device copy into dst.
	Write(dst Buffer, data []float32) error
	// Read copies src into dst, blocking until all prior work completes.
	Read(src Buffer, dst []float32) error
	// Flush submits pending work without waiting.
	Flush() error
	// Finish blocks until all submitted work has completed.
	Finish() error
	// Release frees the queue. Pending work is discarded.
	Release()
}

// WorkSize is a 3-D dispatch extent.
type WorkSize [3]int

// Linear returns a 1-D work size.
func Linear(n int) WorkSize {
	return WorkSize{n, 1, 1}
}

// Grid returns a 2-D work size.
func Grid(x, y int) WorkSize {
	return WorkSize{x, y, 1}
}

// Total returns the number of work items.
func (w WorkSize) Total() int {
	return w[0] * w[1] * w[2]
}

// Groups returns the number of workgroups of size local needed to cover w.
func (w WorkSize) Groups(local WorkSize) WorkSize {
	var g WorkSize
	for i := range w {
		l := max(local[i], 1)
		g[i] = (w[i] + l - 1) / l
	}
	return g
}

type argKind int

const (
	argBuffer argKind = iota
	argUint
	argFloat
)

// Arg is a positional kernel argument.
type Arg struct {
	kind argKind
	buf  Buffer
	u    uint32
	f    float32
}

// BufferArg binds a device buffer.
func BufferArg(b Buffer) Arg {
	return Arg{kind: argBuffer, buf: b}
}

// UintArg binds an unsigned scalar.
func UintArg(v uint32) Arg {
	return Arg{kind: argUint, u: v}
}

// FloatArg binds a float scalar.
func FloatArg(v float32) Arg {
	return Arg{kind: argFloat, f: v}
}

// IsBuffer reports whether the argument is a buffer binding.
func (a Arg) IsBuffer() bool { return a.kind == argBuffer }

// IsFloat reports whether the argument is a float scalar.
func (a Arg) IsFloat() bool { return a.kind == argFloat }

// Buffer returns the bound buffer, or nil for scalar arguments.
func (a Arg) Buffer() Buffer { return a.buf }

// Uint returns the scalar value as uint32.
func (a Arg) Uint() uint32 {
	if a.kind == argFloat {
		return uint32(a.f)
	}
	return a.u
}

// Float returns the scalar value as float32.
func (a Arg) Float() float32 {
	if a.kind == argUint {
		return float32(a.u)
	}
	return a.f
}

func (a Arg) String() string {
	switch a.kind {
	case argBuffer:
		return fmt.Sprintf("buffer[%d]", a.buf.Len())
	case argUint:
		return fmt.Sprintf("u32(%d)", a.u)
	default:
		return fmt.Sprintf("f32(%g)", a.f)
	}
}

// Floats returns the host view of buffer argument i of inv.
func (inv Invocation) Floats(i int) ([]float32, error) {
	if i >= len(inv.Args) || !inv.Args[i].IsBuffer() {
		return nil, fmt.Errorf("argument %d is not a buffer: %w", i, tensor.ErrDeviceState)
	}
	hb, ok := inv.Args[i].buf.(HostBuffer)
	if !ok {
		return nil, fmt.Errorf("argument %d is not host addressable: %w", i, tensor.ErrDeviceState)
	}
	return hb.Floats(), nil
}

// Uint returns scalar argument i of inv.
func (inv Invocation) Uint(i int) (uint32, error) {
	if i >= len(inv.Args) || inv.Args[i].IsBuffer() {
		return 0, fmt.Errorf("argument %d is not a scalar: %w", i, tensor.ErrDeviceState)
	}
	return inv.Args[i].Uint(), nil
}

// Float returns scalar argument i of inv.
func (inv Invocation) Float(i int) (float32, error) {
	if i >= len(inv.Args) || inv.Args[i].IsBuffer() {
		return 0, fmt.Errorf("argument %d is not a scalar: %w", i, tensor.ErrDeviceState)
	}
	return inv.Args[i].Float(), nil
}
