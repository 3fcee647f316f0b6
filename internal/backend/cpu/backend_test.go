package cpu

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensorcore/internal/parallel"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Helper to create test backend.
func newTestBackend() *CPUBackend {
	return New()
}

// parallelBackend splits every element-wise op and matmul it can.
func parallelBackend(strategy Strategy) *CPUBackend {
	return NewWithConfig(Config{
		Strategy:      strategy,
		Pool:          parallel.NewPool(4),
		Parallel:      parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 4},
		MatMulMinRows: 2,
		MatMulMinWork: 1,
	})
}

func serialBackend(strategy Strategy) *CPUBackend {
	cfg := SerialConfig()
	cfg.Strategy = strategy
	return NewWithConfig(cfg)
}

var approx = cmpopts.EquateApprox(1e-5, 1e-6)

func raw(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromSlice(data, shape, tensor.CPU)
	require.NoError(t, err)
	return r
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	require.NotNil(t, backend)
	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
	assert.NotNil(t, backend.Strategy())
}

func TestCPUBackend_Add(t *testing.T) {
	backend := newTestBackend()

	t.Run("SameShape", func(t *testing.T) {
		a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
		b := raw(t, []float32{10, 11, 12, 13, 14, 15}, 2, 3)

		result, err := backend.Add(a, b)
		require.NoError(t, err)
		assert.Equal(t, []float32{11, 13, 15, 17, 19, 21}, result.Data())
		// Inputs are untouched.
		assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, a.Data())
	})

	t.Run("BiasRow", func(t *testing.T) {
		a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
		b := raw(t, []float32{10, 20, 30}, 3)

		result, err := backend.Add(a, b)
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{2, 3}, result.Shape())
		assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, result.Data())
	})

	t.Run("Column", func(t *testing.T) {
		a := raw(t, []float32{1, 2}, 2, 1)
		b := raw(t, []float32{10, 20, 30}, 3)

		result, err := backend.Add(a, b)
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{2, 3}, result.Shape())
		assert.Equal(t, []float32{11, 21, 31, 12, 22, 32}, result.Data())
	})

	t.Run("Incompatible", func(t *testing.T) {
		a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
		b := raw(t, []float32{1, 2}, 2)

		_, err := backend.Add(a, b)
		assert.ErrorIs(t, err, tensor.ErrBroadcast)
	})
}

func TestCPUBackend_MulScalarShaped(t *testing.T) {
	backend := newTestBackend()

	v := raw(t, []float32{1, 2, 3}, 3)
	s := raw(t, []float32{2}, 1)

	result, err := backend.Mul(v, s)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4, 6}, result.Data())
}

func TestCPUBackend_BinaryOps(t *testing.T) {
	backend := newTestBackend()
	a := raw(t, []float32{2, 4, 9}, 3)
	b := raw(t, []float32{2, 2, 0.5}, 3)

	tests := []struct {
		name string
		fn   func(a, b *tensor.RawTensor) (*tensor.RawTensor, error)
		want []float32
	}{
		{"sub", backend.Sub, []float32{0, 2, 8.5}},
		{"mul", backend.Mul, []float32{4, 8, 4.5}},
		{"div", backend.Div, []float32{1, 2, 18}},
		{"pow", backend.Pow, []float32{4, 16, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(a, b)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got.Data(), approx); diff != "" {
				t.Errorf("%s mismatch (-want +got):\n%s", tt.name, diff)
			}
		})
	}
}

func TestCPUBackend_EqualShapeElementwise(t *testing.T) {
	// broadcastAdd(A, B)[i] == A[i] + B[i] for every flat index.
	for _, backend := range []*CPUBackend{serialBackend(ScalarStrategy()), parallelBackend(ScalarStrategy())} {
		n := 257
		ad := make([]float32, n)
		bd := make([]float32, n)
		for i := range ad {
			ad[i] = float32(i) * 0.5
			bd[i] = float32(n-i) * 0.25
		}
		a := raw(t, ad, n)
		b := raw(t, bd, n)

		sum, err := backend.Add(a, b)
		require.NoError(t, err)
		for i, v := range sum.Data() {
			if v != ad[i]+bd[i] {
				t.Fatalf("index %d: got %v, want %v", i, v, ad[i]+bd[i])
			}
		}
	}
}

func TestCPUBackend_StridedOperands(t *testing.T) {
	backend := newTestBackend()

	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	at, err := a.Transpose() // [3, 2] view
	require.NoError(t, err)
	b := raw(t, []float32{1, 1, 2, 2, 3, 3}, 3, 2)

	result, err := backend.Add(at, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 5, 4, 7, 6, 9}, result.Data())

	// Broadcast against a strided slice.
	m, _ := tensor.Arange(0, 16)
	m4, _ := m.Reshape(tensor.Shape{4, 4})
	cols, err := m4.Slice(tensor.All(), tensor.Stride(0, tensor.ToEnd, 2)) // [4, 2]
	require.NoError(t, err)
	bias := raw(t, []float32{100, 200}, 2)
	out, err := backend.Add(cols, bias)
	require.NoError(t, err)
	assert.Equal(t, []float32{100, 202, 104, 206, 108, 210, 112, 214}, out.Data())
}

func TestCPUBackend_InPlace(t *testing.T) {
	backend := newTestBackend()

	t.Run("BiasRow", func(t *testing.T) {
		a := raw(t, []float32{1, 2, 3, 4}, 2, 2)
		require.NoError(t, backend.AddInPlace(a, raw(t, []float32{10, 20}, 2)))
		assert.Equal(t, []float32{11, 22, 13, 24}, a.Data())
	})

	t.Run("AllOps", func(t *testing.T) {
		a := raw(t, []float32{8, 6}, 2)
		b := raw(t, []float32{2, 3}, 2)
		require.NoError(t, backend.SubInPlace(a, b)) // 6, 3
		require.NoError(t, backend.MulInPlace(a, b)) // 12, 9
		require.NoError(t, backend.DivInPlace(a, b)) // 6, 3
		require.NoError(t, backend.PowInPlace(a, b)) // 36, 27
		if diff := cmp.Diff([]float32{36, 27}, a.Data(), approx); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("StridedDestination", func(t *testing.T) {
		a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
		at, _ := a.Transpose() // [3, 2]
		require.NoError(t, backend.AddInPlace(at, raw(t, []float32{10, 20}, 2)))
		// at[i, j] += bias[j] means a[j, i] += bias[j].
		assert.Equal(t, []float32{11, 12, 13, 24, 25, 26}, a.Data())
	})

	t.Run("AliasedOperand", func(t *testing.T) {
		a := raw(t, []float32{1, 2, 3, 4}, 2, 2)
		at, _ := a.Transpose()
		require.NoError(t, backend.AddInPlace(a, at))
		assert.Equal(t, []float32{2, 5, 5, 8}, a.Data())
	})

	t.Run("NoPartialWrite", func(t *testing.T) {
		a := raw(t, []float32{1, 2, 3}, 3)
		b := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

		err := backend.AddInPlace(a, b)
		require.Error(t, err)
		assert.True(t, errors.Is(err, tensor.ErrBroadcast))
		assert.Equal(t, []float32{1, 2, 3}, a.Data(), "destination must be untouched")
	})
}

func TestCPUBackend_ScalarOps(t *testing.T) {
	backend := newTestBackend()
	x := raw(t, []float32{1, -2, 3}, 3)

	scaled, err := backend.Scale(x, -2)
	require.NoError(t, err)
	assert.Equal(t, []float32{-2, 4, -6}, scaled.Data())

	shifted, err := backend.AddScalar(x, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -1.5, 3.5}, shifted.Data())
}

func TestCPUBackend_Upload(t *testing.T) {
	backend := newTestBackend()
	x := raw(t, []float32{1, 2}, 2).WithDevice(tensor.Emulator)

	host, err := backend.Upload(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.CPU, host.Device())
	assert.Same(t, x.Storage(), host.Storage())
}
