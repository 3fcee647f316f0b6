package accel

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/tensorcore/internal/device"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Kernel names of the standard set.
const (
	KernelAdd       = "add"
	KernelSub       = "sub"
	KernelMul       = "mul"
	KernelDiv       = "div"
	KernelPow       = "pow"
	KernelScale     = "scale"
	KernelAddScalar = "add_scalar"
	KernelMatMul    = "matmul"
	KernelMatMulTB  = "matmul_transb"
)

// Programs returns the standard kernel set. Each program carries both the
// WGSL source and the equivalent Go implementation, so every accelerator
// kind can compile it.
func Programs() map[string]device.Program {
	return map[string]device.Program{
		KernelAdd: {Source: binaryShader("a[idx] + b[idx]"), Host: binaryHost(func(x, y float32) float32 { return x + y })},
		KernelSub: {Source: binaryShader("a[idx] - b[idx]"), Host: binaryHost(func(x, y float32) float32 { return x - y })},
		KernelMul: {Source: binaryShader("a[idx] * b[idx]"), Host: binaryHost(func(x, y float32) float32 { return x * y })},
		KernelDiv: {Source: binaryShader("a[idx] / b[idx]"), Host: binaryHost(func(x, y float32) float32 { return x / y })},
		KernelPow: {Source: binaryShader("pow(a[idx], b[idx])"), Host: binaryHost(func(x, y float32) float32 {
			return float32(math.Pow(float64(x), float64(y)))
		})},
		KernelScale:     {Source: scalarShader("x[idx] * params.s"), Host: scalarHost(func(x, s float32) float32 { return x * s })},
		KernelAddScalar: {Source: scalarShader("x[idx] + params.s"), Host: scalarHost(func(x, s float32) float32 { return x + s })},
		KernelMatMul:    {Source: matmulShader("k * params.N + col"), Host: matmulHost(false)},
		KernelMatMulTB:  {Source: matmulShader("col * params.K + k"), Host: matmulHost(true)},
	}
}

// RegisterKernels compiles the standard kernel set for dev. Kernels that are
// already registered are kept.
func RegisterKernels(reg *device.Registry, dev tensor.Device) error {
	for name, p := range Programs() {
		if _, err := reg.Register(dev, name, p); err != nil && !errors.Is(err, tensor.ErrAlreadyRegistered) {
			return err
		}
	}
	return nil
}

// binaryHost: args a, b, result buffers and size.
func binaryHost(f func(x, y float32) float32) device.HostFunc {
	return func(inv device.Invocation) error {
		bufs, err := hostBuffers(inv, 3)
		if err != nil {
			return err
		}
		n, err := inv.Uint(3)
		if err != nil {
			return err
		}
		a, b, out := bufs[0], bufs[1], bufs[2]
		if int(n) > len(out) || int(n) > len(a) || int(n) > len(b) {
			return fmt.Errorf("size %d exceeds buffers: %w", n, tensor.ErrOutOfRange)
		}
		for i := range int(n) {
			out[i] = f(a[i], b[i])
		}
		return nil
	}
}

// scalarHost: args x, result buffers, size and scalar.
func scalarHost(f func(x, s float32) float32) device.HostFunc {
	return func(inv device.Invocation) error {
		bufs, err := hostBuffers(inv, 2)
		if err != nil {
			return err
		}
		n, err := inv.Uint(2)
		if err != nil {
			return err
		}
		s, err := inv.Float(3)
		if err != nil {
			return err
		}
		x, out := bufs[0], bufs[1]
		if int(n) > len(out) || int(n) > len(x) {
			return fmt.Errorf("size %d exceeds buffers: %w", n, tensor.ErrOutOfRange)
		}
		for i := range int(n) {
			out[i] = f(x[i], s)
		}
		return nil
	}
}

// matmulHost: args a, b, result buffers and M, K, N, batch.
func matmulHost(transB bool) device.HostFunc {
	return func(inv device.Invocation) error {
		bufs, err := hostBuffers(inv, 3)
		if err != nil {
			return err
		}
		var dims [4]int
		for i := range dims {
			v, err := inv.Uint(3 + i)
			if err != nil {
				return err
			}
			dims[i] = int(v)
		}
		m, k, n, batch := dims[0], dims[1], dims[2], dims[3]
		a, b, c := bufs[0], bufs[1], bufs[2]
		if len(a) < batch*m*k || len(b) < batch*k*n || len(c) < batch*m*n {
			return fmt.Errorf("matmul %dx[%d,%d]@[%d,%d] exceeds buffers: %w", batch, m, k, k, n, tensor.ErrOutOfRange)
		}

		for bt := 0; bt < batch; bt++ {
			aOff, bOff, cOff := bt*m*k, bt*k*n, bt*m*n
			for row := 0; row < m; row++ {
				for col := 0; col < n; col++ {
					var sum float32
					for kk := 0; kk < k; kk++ {
						bIdx := kk*n + col
						if transB {
							bIdx = col*k + kk
						}
						sum += a[aOff+row*k+kk] * b[bOff+bIdx]
					}
					c[cOff+row*n+col] = sum
				}
			}
		}
		return nil
	}
}

func hostBuffers(inv device.Invocation, n int) ([][]float32, error) {
	bufs := make([][]float32, n)
	for i := range bufs {
		f, err := inv.Floats(i)
		if err != nil {
			return nil, err
		}
		bufs[i] = f
	}
	return bufs, nil
}
