//go:build windows

package webgpu

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/tensorcore/internal/device"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Accelerator owns one WebGPU adapter and device.
type Accelerator struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     wgpu.AdapterInfo

	mu       sync.Mutex
	released bool
	buffers  map[*Buffer]struct{}
}

// New opens the high-performance adapter.
// Returns an error wrapping tensor.ErrUnavailable if WebGPU cannot be initialized.
func New() (acc device.Accelerator, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			acc = nil
			err = fmt.Errorf("webgpu: native library not available: %v: %w", r, tensor.ErrUnavailable)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %v: %w", adapterErr, tensor.ErrUnavailable)
	}

	info := adapter.GetInfo()

	dev, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %v: %w", deviceErr, tensor.ErrUnavailable)
	}

	queue := dev.GetQueue()
	if queue == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue: %w", tensor.ErrUnavailable)
	}

	a := &Accelerator{instance: instance, adapter: adapter, device: dev, queue: queue, info: info}
	slog.Debug("webgpu device opened", "adapter", info.Name, "vendor", info.VendorName)
	return a, nil
}

// Probe reports whether a WebGPU adapter can be requested.
func Probe() (info device.Info) {
	info = device.Info{Kind: tensor.WebGPU, Name: "WebGPU"}
	defer func() {
		if r := recover(); r != nil {
			info.Available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return info
	}
	defer adapter.Release()

	ai := adapter.GetInfo()
	info.Name = fmt.Sprintf("WebGPU (%s %s)", ai.Name, ai.VendorName)
	info.Available = true
	return info
}

// Kind returns tensor.WebGPU.
func (a *Accelerator) Kind() tensor.Device { return tensor.WebGPU }

// Name returns the adapter description.
func (a *Accelerator) Name() string {
	return fmt.Sprintf("WebGPU (%s %s)", a.info.Name, a.info.VendorName)
}

// Compile builds a compute pipeline from WGSL source.
func (a *Accelerator) Compile(name string, p device.Program) (k device.Kernel, err error) {
	if p.Source == "" {
		return nil, fmt.Errorf("webgpu: kernel %q has no WGSL source: %w", name, tensor.ErrUnavailable)
	}
	defer func() {
		if r := recover(); r != nil {
			k = nil
			err = fmt.Errorf("webgpu: compile %q: %v: %w", name, r, tensor.ErrDeviceState)
		}
	}()

	shader := a.device.CreateShaderModuleWGSL(p.Source)
	pipeline := a.device.CreateComputePipelineSimple(nil, shader, "main")
	return &Kernel{name: name, shader: shader, pipeline: pipeline}, nil
}

// NewQueue creates a command queue over the device queue.
func (a *Accelerator) NewQueue() (device.Queue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil, fmt.Errorf("webgpu: queue after release: %w", tensor.ErrDeviceState)
	}
	// A tiny buffer copied to a mapped staging buffer acts as a completion fence.
	fence := a.createBuffer(make([]float32, 4), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	return &Queue{acc: a, fence: fence}, nil
}

// Alloc creates a zeroed storage buffer.
func (a *Accelerator) Alloc(n int) (device.Buffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("webgpu: alloc %d elements: %w", n, tensor.ErrOutOfRange)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil, fmt.Errorf("webgpu: alloc after release: %w", tensor.ErrDeviceState)
	}
	buf := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  byteSize(n),
	})
	b := &Buffer{acc: a, buf: buf, n: n}
	if a.buffers == nil {
		a.buffers = make(map[*Buffer]struct{})
	}
	a.buffers[b] = struct{}{}
	return b, nil
}

// Release frees outstanding buffers, then all WebGPU resources.
func (a *Accelerator) Release() {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return
	}
	a.released = true
	outstanding := make([]*Buffer, 0, len(a.buffers))
	for b := range a.buffers {
		outstanding = append(outstanding, b)
	}
	a.mu.Unlock()

	for _, b := range outstanding {
		b.Release()
	}
	if len(outstanding) > 0 {
		slog.Debug("webgpu: released outstanding buffers", "count", len(outstanding))
	}

	if a.queue != nil {
		a.queue.Release()
	}
	if a.device != nil {
		a.device.Release()
	}
	if a.adapter != nil {
		a.adapter.Release()
	}
	if a.instance != nil {
		a.instance.Release()
	}
}

// createBuffer creates a GPU buffer initialized with data.
func (a *Accelerator) createBuffer(data []float32, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := byteSize(len(data))
	buffer := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*float32)(mappedPtr), len(data)), data)
	buffer.Unmap()
	return buffer
}

// createUniformBuffer creates a uniform buffer rounded up to 16 bytes.
func (a *Accelerator) createUniformBuffer(words []uint32) (*wgpu.Buffer, uint64) {
	size := (uint64(len(words))*4 + 15) &^ 15
	buffer := a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(unsafe.Slice((*uint32)(mappedPtr), size/4), words)
	buffer.Unmap()
	return buffer, size
}

// byteSize returns the buffer size for n float32 values. Empty buffers are
// not allowed, so at least one 16-byte block is reserved.
func byteSize(n int) uint64 {
	//nolint:gosec // G115: n is non-negative
	return max(uint64(n)*4, 16)
}

// Kernel is a compiled compute pipeline.
type Kernel struct {
	name     string
	shader   *wgpu.ShaderModule
	pipeline *wgpu.ComputePipeline
}

// Name returns the registered kernel name.
func (k *Kernel) Name() string { return k.name }

// Device returns tensor.WebGPU.
func (k *Kernel) Device() tensor.Device { return tensor.WebGPU }

// Release frees the pipeline and shader module.
func (k *Kernel) Release() {
	k.pipeline.Release()
	k.shader.Release()
}

// Buffer is a WebGPU storage buffer.
type Buffer struct {
	acc  *Accelerator
	buf  *wgpu.Buffer
	n    int
	once sync.Once
}

// Device returns tensor.WebGPU.
func (b *Buffer) Device() tensor.Device { return tensor.WebGPU }

// Owner returns the allocating accelerator.
func (b *Buffer) Owner() device.Accelerator { return b.acc }

// Len returns the number of float32 elements.
func (b *Buffer) Len() int { return b.n }

// Release frees the GPU buffer. Further releases are no-ops.
func (b *Buffer) Release() {
	b.once.Do(func() {
		b.buf.Release()
		b.acc.mu.Lock()
		delete(b.acc.buffers, b)
		b.acc.mu.Unlock()
	})
}

var _ device.Accelerator = (*Accelerator)(nil)
