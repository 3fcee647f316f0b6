package emulator

import (
	"fmt"
	"sync"

	"github.com/born-ml/tensorcore/internal/device"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Queue records commands and runs them in order on Flush.
type Queue struct {
	acc *Accelerator

	mu       sync.Mutex
	pending  []func() error
	released bool
}

// Dispatch enqueues k. Arguments are validated eagerly.
func (q *Queue) Dispatch(k device.Kernel, args []device.Arg, global, local device.WorkSize) error {
	ek, ok := k.(*Kernel)
	if !ok || k.Device() != tensor.Emulator {
		return fmt.Errorf("emulator: dispatch of %s kernel %q: %w", k.Device(), k.Name(), tensor.ErrDeviceState)
	}
	if ek.released.Load() {
		return fmt.Errorf("emulator: dispatch of released kernel %q: %w", ek.name, tensor.ErrDeviceState)
	}
	for i, a := range args {
		if a.IsBuffer() {
			if _, ok := a.Buffer().(*Buffer); !ok {
				return fmt.Errorf("emulator: kernel %q argument %d is not an emulator buffer: %w",
					ek.name, i, tensor.ErrDeviceState)
			}
		}
	}

	bound := append([]device.Arg(nil), args...)
	return q.enqueue(func() error {
		if err := ek.fn(device.Invocation{Args: bound, Global: global, Local: local}); err != nil {
			return fmt.Errorf("emulator: kernel %q: %w", ek.name, err)
		}
		return nil
	})
}

// Write enqueues a copy of data into dst.
func (q *Queue) Write(dst device.Buffer, data []float32) error {
	b, ok := dst.(*Buffer)
	if !ok {
		return fmt.Errorf("emulator: write to foreign buffer: %w", tensor.ErrDeviceState)
	}
	if len(data) > b.Len() {
		return fmt.Errorf("emulator: write %d elements into buffer of %d: %w", len(data), b.Len(), tensor.ErrOutOfRange)
	}
	src := append([]float32(nil), data...)
	return q.enqueue(func() error {
		copy(b.data, src)
		return nil
	})
}

// Read finishes pending work and copies src into dst.
func (q *Queue) Read(src device.Buffer, dst []float32) error {
	b, ok := src.(*Buffer)
	if !ok {
		return fmt.Errorf("emulator: read from foreign buffer: %w", tensor.ErrDeviceState)
	}
	if err := q.Finish(); err != nil {
		return err
	}
	copy(dst, b.data)
	return nil
}

// Flush runs every pending command in submission order. The first error
// stops execution; remaining commands are dropped.
func (q *Queue) Flush() error {
	q.mu.Lock()
	if q.released {
		q.mu.Unlock()
		return fmt.Errorf("emulator: flush of released queue: %w", tensor.ErrDeviceState)
	}
	cmds := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, cmd := range cmds {
		if err := cmd(); err != nil {
			return err
		}
	}
	return nil
}

// Finish is Flush: commands execute synchronously.
func (q *Queue) Finish() error {
	return q.Flush()
}

// Pending returns the number of commands not yet executed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Release discards pending work.
func (q *Queue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.released = true
}

func (q *Queue) enqueue(cmd func() error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return fmt.Errorf("emulator: enqueue on released queue: %w", tensor.ErrDeviceState)
	}
	q.pending = append(q.pending, cmd)
	return nil
}
