package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Context binds command queues to devices for one caller. Each worker that
// dispatches accelerator work owns its own Context; contexts may share a
// Registry.
type Context struct {
	id       uuid.UUID
	registry *Registry

	mu     sync.Mutex
	queues map[tensor.Device]Queue
}

// NewContext creates a context over registry. A nil registry gets a fresh one.
func NewContext(registry *Registry) *Context {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Context{
		id:       uuid.New(),
		registry: registry,
		queues:   make(map[tensor.Device]Queue),
	}
}

// ID identifies the context in logs.
func (c *Context) ID() uuid.UUID {
	return c.id
}

// Registry returns the accelerator and kernel registry.
func (c *Context) Registry() *Registry {
	return c.registry
}

// Bind creates a queue for dev on its attached accelerator. Binding an
// already bound device returns the existing queue.
func (c *Context) Bind(dev tensor.Device) (Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if q, ok := c.queues[dev]; ok {
		return q, nil
	}
	acc, err := c.registry.Accelerator(dev)
	if err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	q, err := acc.NewQueue()
	if err != nil {
		return nil, fmt.Errorf("bind queue on %s: %w", dev, err)
	}
	c.queues[dev] = q
	slog.Debug("queue bound", "context", c.id, "device", dev)
	return q, nil
}

// Queue returns the queue bound to dev, or ErrDeviceState if none is bound.
func (c *Context) Queue(dev tensor.Device) (Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[dev]
	if !ok {
		return nil, fmt.Errorf("no queue bound for %s in context %s: %w", dev, c.id, tensor.ErrDeviceState)
	}
	return q, nil
}

// ReleaseQueue blocks until the queue for dev has finished its work, then frees it.
func (c *Context) ReleaseQueue(dev tensor.Device) error {
	c.mu.Lock()
	q, ok := c.queues[dev]
	delete(c.queues, dev)
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("release queue: none bound for %s: %w", dev, tensor.ErrDeviceState)
	}
	return c.finishAndRelease(dev, q)
}

func (c *Context) finishAndRelease(dev tensor.Device, q Queue) error {
	err := q.Finish()
	q.Release()
	slog.Debug("queue released", "context", c.id, "device", dev, "error", err)
	if err != nil {
		return fmt.Errorf("release queue on %s: %w", dev, err)
	}
	return nil
}

// Close finishes and releases every bound queue. The registry is left open.
func (c *Context) Close() error {
	c.mu.Lock()
	queues := c.queues
	c.queues = make(map[tensor.Device]Queue)
	c.mu.Unlock()

	var errs []error
	for dev, q := range queues {
		errs = append(errs, c.finishAndRelease(dev, q))
	}
	return errors.Join(errs...)
}

// Kernel looks up a registered kernel.
func (c *Context) Kernel(dev tensor.Device, name string) (Kernel, error) {
	return c.registry.Kernel(dev, name)
}

// Dispatch looks up kernel name for dev and enqueues it on the bound queue.
func (c *Context) Dispatch(dev tensor.Device, name string, args []Arg, global, local WorkSize) error {
	k, err := c.registry.Kernel(dev, name)
	if err != nil {
		return err
	}
	q, err := c.Queue(dev)
	if err != nil {
		return err
	}
	return q.Dispatch(k, args, global, local)
}
