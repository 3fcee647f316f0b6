// Package emulator is a software accelerator. It runs kernels written in Go
// behind the same kernel, queue and buffer contracts as a GPU, so dispatch
// paths can be exercised on any host.
package emulator

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/born-ml/tensorcore/internal/device"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Accelerator executes device.HostFunc kernels on the calling goroutine.
type Accelerator struct {
	released atomic.Bool

	mu      sync.Mutex
	buffers map[*Buffer]struct{}
}

// New creates an emulator accelerator.
func New() *Accelerator {
	return &Accelerator{buffers: make(map[*Buffer]struct{})}
}

// Probe reports the emulator, which is always available.
func Probe() device.Info {
	return device.Info{Kind: tensor.Emulator, Name: "software emulator", Available: true}
}

// Kind returns tensor.Emulator.
func (a *Accelerator) Kind() tensor.Device { return tensor.Emulator }

// Name returns the adapter description.
func (a *Accelerator) Name() string { return "software emulator" }

// LiveBuffers returns the number of allocated, unreleased buffers.
func (a *Accelerator) LiveBuffers() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int64(len(a.buffers))
}

// Compile wraps p.Host as a kernel.
func (a *Accelerator) Compile(name string, p device.Program) (device.Kernel, error) {
	if a.released.Load() {
		return nil, fmt.Errorf("emulator: compile %q after release: %w", name, tensor.ErrDeviceState)
	}
	if p.Host == nil {
		return nil, fmt.Errorf("emulator: kernel %q has no host implementation: %w", name, tensor.ErrUnavailable)
	}
	return &Kernel{name: name, fn: p.Host}, nil
}

// NewQueue creates an in-order queue.
func (a *Accelerator) NewQueue() (device.Queue, error) {
	if a.released.Load() {
		return nil, fmt.Errorf("emulator: queue after release: %w", tensor.ErrDeviceState)
	}
	return &Queue{acc: a}, nil
}

// Alloc creates a zeroed buffer.
func (a *Accelerator) Alloc(n int) (device.Buffer, error) {
	if a.released.Load() {
		return nil, fmt.Errorf("emulator: alloc after release: %w", tensor.ErrDeviceState)
	}
	if n < 0 {
		return nil, fmt.Errorf("emulator: alloc %d elements: %w", n, tensor.ErrOutOfRange)
	}
	b := &Buffer{acc: a, data: make([]float32, n)}
	a.mu.Lock()
	a.buffers[b] = struct{}{}
	a.mu.Unlock()
	return b, nil
}

// Release marks the accelerator unusable and frees every outstanding buffer.
func (a *Accelerator) Release() {
	a.released.Store(true)

	a.mu.Lock()
	outstanding := make([]*Buffer, 0, len(a.buffers))
	for b := range a.buffers {
		outstanding = append(outstanding, b)
	}
	a.mu.Unlock()

	for _, b := range outstanding {
		b.Release()
	}
}

// Kernel is a compiled emulator kernel.
type Kernel struct {
	name     string
	fn       device.HostFunc
	released atomic.Bool
}

// Name returns the registered kernel name.
func (k *Kernel) Name() string { return k.name }

// Device returns tensor.Emulator.
func (k *Kernel) Device() tensor.Device { return tensor.Emulator }

// Release marks the kernel unusable.
func (k *Kernel) Release() { k.released.Store(true) }

// Buffer is host memory standing in for device memory.
type Buffer struct {
	acc  *Accelerator
	once sync.Once
	data []float32
}

// Device returns tensor.Emulator.
func (b *Buffer) Device() tensor.Device { return tensor.Emulator }

// Owner returns the allocating accelerator.
func (b *Buffer) Owner() device.Accelerator { return b.acc }

// Len returns the number of float32 elements.
func (b *Buffer) Len() int { return len(b.data) }

// Floats returns the buffer contents.
func (b *Buffer) Floats() []float32 { return b.data }

// Release frees the buffer. Further releases are no-ops.
func (b *Buffer) Release() {
	b.once.Do(func() {
		b.data = nil
		b.acc.mu.Lock()
		delete(b.acc.buffers, b)
		b.acc.mu.Unlock()
	})
}

var (
	_ device.Accelerator = (*Accelerator)(nil)
	_ device.HostBuffer  = (*Buffer)(nil)
)
