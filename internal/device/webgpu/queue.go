//go:build windows

package webgpu

import (
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/tensorcore/internal/device"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Queue batches command buffers and submits them together on Flush.
type Queue struct {
	acc   *Accelerator
	fence *wgpu.Buffer

	mu         sync.Mutex
	pending    []*wgpu.CommandBuffer
	transients []func() // released once the pending batch is submitted
	released   bool
}

// Dispatch records a compute pass for k.
func (q *Queue) Dispatch(k device.Kernel, args []device.Arg, global, local device.WorkSize) error {
	wk, ok := k.(*Kernel)
	if !ok {
		return fmt.Errorf("webgpu: dispatch of %s kernel %q: %w", k.Device(), k.Name(), tensor.ErrDeviceState)
	}

	var entries []wgpu.BindGroupEntry
	var words []uint32
	for i, arg := range args {
		if !arg.IsBuffer() {
			continue
		}
		b, ok := arg.Buffer().(*Buffer)
		if !ok {
			return fmt.Errorf("webgpu: kernel %q argument %d is not a webgpu buffer: %w", wk.name, i, tensor.ErrDeviceState)
		}
		//nolint:gosec // G115: binding index is small
		entries = append(entries, wgpu.BufferBindingEntry(uint32(len(entries)), b.buf, 0, byteSize(b.n)))
	}
	for _, arg := range args {
		switch {
		case arg.IsBuffer():
		case arg.IsFloat():
			words = append(words, math.Float32bits(arg.Float()))
		default:
			words = append(words, arg.Uint())
		}
	}

	var release []func()
	if len(words) > 0 {
		params, size := q.acc.createUniformBuffer(words)
		release = append(release, params.Release)
		//nolint:gosec // G115: binding index is small
		entries = append(entries, wgpu.BufferBindingEntry(uint32(len(entries)), params, 0, size))
	}

	layout := wk.pipeline.GetBindGroupLayout(0)
	bindGroup := q.acc.device.CreateBindGroupSimple(layout, entries)
	release = append(release, bindGroup.Release)

	groups := global.Groups(local)
	encoder := q.acc.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(wk.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	//nolint:gosec // G115: workgroup counts are non-negative
	pass.DispatchWorkgroups(uint32(groups[0]), uint32(groups[1]), uint32(groups[2]))
	pass.End()

	return q.record(encoder.Finish(nil), release...)
}

// Write records a copy of data into dst through a mapped staging buffer.
func (q *Queue) Write(dst device.Buffer, data []float32) error {
	b, ok := dst.(*Buffer)
	if !ok {
		return fmt.Errorf("webgpu: write to foreign buffer: %w", tensor.ErrDeviceState)
	}
	if len(data) > b.n {
		return fmt.Errorf("webgpu: write %d elements into buffer of %d: %w", len(data), b.n, tensor.ErrOutOfRange)
	}
	if len(data) == 0 {
		return nil
	}

	staging := q.acc.createBuffer(data, wgpu.BufferUsageCopySrc)
	encoder := q.acc.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, b.buf, 0, uint64(len(data))*4)
	return q.record(encoder.Finish(nil), staging.Release)
}

// Read flushes pending work and copies src back to host memory.
// MapAsync blocks until the copy, and everything before it, has completed.
func (q *Queue) Read(src device.Buffer, dst []float32) error {
	b, ok := src.(*Buffer)
	if !ok {
		return fmt.Errorf("webgpu: read from foreign buffer: %w", tensor.ErrDeviceState)
	}
	if err := q.Flush(); err != nil {
		return err
	}
	n := min(len(dst), b.n)
	if n == 0 {
		return nil
	}
	return q.readback(b.buf, dst[:n])
}

func (q *Queue) readback(src *wgpu.Buffer, dst []float32) error {
	size := uint64(len(dst)) * 4
	staging := q.acc.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := q.acc.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	q.acc.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(q.acc.device, wgpu.MapModeRead, 0, size); err != nil {
		return fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}
	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(dst, unsafe.Slice((*float32)(mappedPtr), len(dst)))
	staging.Unmap()
	return nil
}

// Flush submits all pending command buffers.
func (q *Queue) Flush() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return fmt.Errorf("webgpu: flush of released queue: %w", tensor.ErrDeviceState)
	}
	if len(q.pending) > 0 {
		q.acc.queue.Submit(q.pending...)
		q.pending = q.pending[:0]
	}
	for _, release := range q.transients {
		release()
	}
	q.transients = q.transients[:0]
	return nil
}

// Finish flushes and waits for the device to drain the queue.
func (q *Queue) Finish() error {
	if err := q.Flush(); err != nil {
		return err
	}
	var sink [4]float32
	return q.readback(q.fence, sink[:])
}

// Release drops unsubmitted work and frees the fence.
func (q *Queue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return
	}
	q.released = true
	q.pending = nil
	for _, release := range q.transients {
		release()
	}
	q.transients = nil
	q.fence.Release()
}

func (q *Queue) record(cmd *wgpu.CommandBuffer, release ...func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		for _, r := range release {
			r()
		}
		return fmt.Errorf("webgpu: enqueue on released queue: %w", tensor.ErrDeviceState)
	}
	q.pending = append(q.pending, cmd)
	q.transients = append(q.transients, release...)
	return nil
}
