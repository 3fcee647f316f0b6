// Package cpu implements the CPU backend: broadcasting element-wise kernels
// and a batched matmul with fork/join parallelism and a SIMD-width strategy.
package cpu

import (
	"github.com/born-ml/tensorcore/internal/envconfig"
	"github.com/born-ml/tensorcore/internal/parallel"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Config tunes the CPU backend.
type Config struct {
	// Strategy is the matmul inner-loop implementation. Nil selects DefaultStrategy().
	Strategy Strategy
	// Pool bounds matmul fork/join. Nil selects parallel.Default().
	Pool *parallel.Pool
	// Parallel controls chunking of element-wise operations.
	Parallel parallel.Config
	// MatMulMinRows is the smallest row range that is bisected.
	MatMulMinRows int
	// MatMulMinWork is the smallest rows*n*p product that is bisected.
	MatMulMinWork int
}

// DefaultConfig returns the configuration from BORN_* environment variables.
func DefaultConfig() Config {
	return Config{
		Strategy:      DefaultStrategy(),
		Pool:          parallel.Default(),
		Parallel:      parallel.DefaultConfig(),
		MatMulMinRows: int(envconfig.MatMulMinRows()),
		MatMulMinWork: int(envconfig.MatMulMinWork()),
	}
}

// SerialConfig returns a configuration that never leaves the calling goroutine.
func SerialConfig() Config {
	cfg := DefaultConfig()
	cfg.Pool = parallel.NewPool(1)
	cfg.Parallel.Enabled = false
	return cfg
}

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device   tensor.Device
	strategy Strategy
	pool     *parallel.Pool
	par      parallel.Config
	minRows  int
	minWork  int
}

// New creates a CPU backend configured from the environment.
func New() *CPUBackend {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a CPU backend with explicit tuning.
func NewWithConfig(cfg Config) *CPUBackend {
	if cfg.Strategy == nil {
		cfg.Strategy = DefaultStrategy()
	}
	if cfg.Pool == nil {
		cfg.Pool = parallel.Default()
	}
	return &CPUBackend{
		device:   tensor.CPU,
		strategy: cfg.Strategy,
		pool:     cfg.Pool,
		par:      cfg.Parallel,
		minRows:  max(cfg.MatMulMinRows, 1),
		minWork:  max(cfg.MatMulMinWork, 0),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Strategy returns the matmul strategy bound at construction.
func (cpu *CPUBackend) Strategy() Strategy {
	return cpu.strategy
}

// Upload returns a host view of x tagged for the CPU. Host storage is always
// authoritative, so no copy is needed.
func (cpu *CPUBackend) Upload(x *tensor.RawTensor) (*tensor.RawTensor, error) {
	return x.WithDevice(cpu.device), nil
}

var _ tensor.Backend = (*CPUBackend)(nil)
