package device

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Registry holds the attached accelerators and their compiled kernels,
// keyed by (device, kernel name). It is safe for concurrent use and is
// read-mostly once kernels are registered.
type Registry struct {
	mu      sync.RWMutex
	accels  map[tensor.Device]Accelerator
	kernels map[tensor.Device]map[string]Kernel
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		accels:  make(map[tensor.Device]Accelerator),
		kernels: make(map[tensor.Device]map[string]Kernel),
	}
}

// Attach makes an accelerator available under its Kind.
func (r *Registry) Attach(acc Accelerator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accels[acc.Kind()]; ok {
		return fmt.Errorf("accelerator %s: %w", acc.Kind(), tensor.ErrAlreadyRegistered)
	}
	r.accels[acc.Kind()] = acc
	slog.Debug("accelerator attached", "device", acc.Kind(), "name", acc.Name())
	return nil
}

// Accelerator returns the accelerator attached for dev.
func (r *Registry) Accelerator(dev tensor.Device) (Accelerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accels[dev]
	if !ok {
		return nil, fmt.Errorf("no accelerator attached for %s: %w", dev, tensor.ErrDeviceState)
	}
	return acc, nil
}

// Devices lists the attached device kinds in ascending order.
func (r *Registry) Devices() []tensor.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devs := make([]tensor.Device, 0, len(r.accels))
	for d := range r.accels {
		devs = append(devs, d)
	}
	slices.Sort(devs)
	return devs
}

// Register compiles program p on dev's accelerator and stores it under name.
// Registering a name twice for the same device returns ErrAlreadyRegistered.
func (r *Registry) Register(dev tensor.Device, name string, p Program) (Kernel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accels[dev]
	if !ok {
		return nil, fmt.Errorf("register kernel %q: no accelerator for %s: %w", name, dev, tensor.ErrDeviceState)
	}
	if _, dup := r.kernels[dev][name]; dup {
		return nil, fmt.Errorf("register kernel %q on %s: %w", name, dev, tensor.ErrAlreadyRegistered)
	}

	k, err := acc.Compile(name, p)
	if err != nil {
		return nil, fmt.Errorf("register kernel %q on %s: %w", name, dev, err)
	}
	if r.kernels[dev] == nil {
		r.kernels[dev] = make(map[string]Kernel)
	}
	r.kernels[dev][name] = k
	slog.Debug("kernel registered", "device", dev, "kernel", name)
	return k, nil
}

// Kernel returns the kernel registered under name for dev.
func (r *Registry) Kernel(dev tensor.Device, name string) (Kernel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byName, ok := r.kernels[dev]
	if !ok {
		return nil, fmt.Errorf("kernel %q: no kernels registered for %s: %w", name, dev, tensor.ErrDeviceState)
	}
	k, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("kernel %q not registered for %s: %w", name, dev, tensor.ErrDeviceState)
	}
	return k, nil
}

// Kernels lists the kernel names registered for dev in sorted order.
func (r *Registry) Kernels(dev tensor.Device) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.kernels[dev]))
	for n := range r.kernels[dev] {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Close releases every kernel, then every accelerator.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for dev, byName := range r.kernels {
		for _, k := range byName {
			k.Release()
		}
		delete(r.kernels, dev)
	}
	for dev, acc := range r.accels {
		acc.Release()
		delete(r.accels, dev)
	}
}
