package cpu

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/tensorcore/internal/tensor"
)

func randomRaw(t testing.TB, rng *rand.Rand, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.Rand(shape, rng)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

// referenceMatMul computes a single [m,n] @ [n,p] product with gonum.
func referenceMatMul(a, b []float32, m, n, p int) []float32 {
	toF64 := func(src []float32) []float64 {
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out
	}
	var c mat.Dense
	c.Mul(mat.NewDense(m, n, toF64(a)), mat.NewDense(n, p, toF64(b)))

	out := make([]float32, 0, m*p)
	for i := 0; i < m; i++ {
		for j := 0; j < p; j++ {
			out = append(out, float32(c.At(i, j)))
		}
	}
	return out
}

func allBackends() map[string]*CPUBackend {
	return map[string]*CPUBackend{
		"serial/scalar":   serialBackend(ScalarStrategy()),
		"serial/simd":     serialBackend(SIMDStrategy()),
		"parallel/scalar": parallelBackend(ScalarStrategy()),
		"parallel/simd":   parallelBackend(SIMDStrategy()),
	}
}

func TestMatMul_Identity(t *testing.T) {
	for name, backend := range allBackends() {
		t.Run(name, func(t *testing.T) {
			a := raw(t, []float32{1, 2, 3, 4}, 2, 2)
			eye := raw(t, []float32{1, 0, 0, 1}, 2, 2)

			c, err := backend.MatMul(a, eye)
			require.NoError(t, err)
			assert.Equal(t, tensor.Shape{2, 2}, c.Shape())
			assert.Equal(t, a.Data(), c.Data())
		})
	}
}

func TestMatMul_MatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sizes := [][3]int{{1, 1, 1}, {3, 5, 2}, {17, 9, 13}, {64, 33, 31}, {40, 7, 100}}

	for name, backend := range allBackends() {
		for _, sz := range sizes {
			m, n, p := sz[0], sz[1], sz[2]
			a := randomRaw(t, rng, m, n)
			b := randomRaw(t, rng, n, p)

			c, err := backend.MatMul(a, b)
			require.NoError(t, err)
			assert.Equal(t, tensor.Shape{m, p}, c.Shape())

			want := referenceMatMul(a.Data(), b.Data(), m, n, p)
			if diff := cmp.Diff(want, c.Data(), approx); diff != "" {
				t.Errorf("%s %v: mismatch (-want +got):\n%s", name, sz, diff)
			}
		}
	}
}

func TestMatMul_ParallelMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	a := randomRaw(t, rng, 3, 50, 24)
	b := randomRaw(t, rng, 3, 24, 40)

	serial, err := serialBackend(ScalarStrategy()).MatMul(a, b)
	require.NoError(t, err)
	par, err := parallelBackend(SIMDStrategy()).MatMul(a, b)
	require.NoError(t, err)

	if diff := cmp.Diff(serial.Data(), par.Data(), approx); diff != "" {
		t.Errorf("parallel differs from serial (-serial +parallel):\n%s", diff)
	}
}

func TestMatMul_BatchBroadcast(t *testing.T) {
	backend := newTestBackend()
	rng := rand.New(rand.NewSource(3))

	a := randomRaw(t, rng, 2, 1, 3, 4) // batch [2, 1]
	b := randomRaw(t, rng, 5, 4, 2)    // batch [5]

	c, err := backend.MatMul(a, b)
	require.NoError(t, err)
	require.Equal(t, tensor.Shape{2, 5, 3, 2}, c.Shape())

	ad, bd, cd := a.Data(), b.Data(), c.Data()
	for i := 0; i < 2; i++ {
		for j := 0; j < 5; j++ {
			want := referenceMatMul(ad[i*12:(i+1)*12], bd[j*8:(j+1)*8], 3, 4, 2)
			off := (i*5 + j) * 6
			if diff := cmp.Diff(want, cd[off:off+6], approx); diff != "" {
				t.Errorf("batch (%d,%d) mismatch (-want +got):\n%s", i, j, diff)
			}
		}
	}
}

func TestMatMul_TransB(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	a := randomRaw(t, rng, 6, 10)
	b := randomRaw(t, rng, 10, 7)

	// Contiguous [p, n] copy of bᵀ.
	bT, err := b.Transpose()
	require.NoError(t, err)
	bt := bT.Contiguous()

	want := referenceMatMul(a.Data(), b.Data(), 6, 10, 7)
	for name, backend := range allBackends() {
		got, err := backend.MatMulTransB(a, bt)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got.Data(), approx); diff != "" {
			t.Errorf("%s MatMulTransB mismatch (-want +got):\n%s", name, diff)
		}

		// A transposed view of contiguous storage goes through the same kernel.
		view, err := bt.Transpose()
		require.NoError(t, err)
		got, err = backend.MatMul(a, view)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got.Data(), approx); diff != "" {
			t.Errorf("%s MatMul(transposed view) mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestMatMul_Errors(t *testing.T) {
	backend := newTestBackend()

	t.Run("rank", func(t *testing.T) {
		_, err := backend.MatMul(raw(t, []float32{1, 2}, 2), raw(t, []float32{1, 2}, 2, 1))
		assert.ErrorIs(t, err, tensor.ErrDimension)
	})

	t.Run("inner", func(t *testing.T) {
		a, _ := tensor.Zeros(tensor.Shape{2, 3})
		b, _ := tensor.Zeros(tensor.Shape{2, 3})
		_, err := backend.MatMul(a, b)
		assert.ErrorIs(t, err, tensor.ErrDimension)
	})

	t.Run("batch", func(t *testing.T) {
		a, _ := tensor.Zeros(tensor.Shape{2, 2, 3})
		b, _ := tensor.Zeros(tensor.Shape{3, 3, 2})
		_, err := backend.MatMul(a, b)
		assert.ErrorIs(t, err, tensor.ErrBroadcast)
	})
}

func TestMatMul_Degenerate(t *testing.T) {
	backend := newTestBackend()

	a, _ := tensor.Zeros(tensor.Shape{0, 3})
	b, _ := tensor.Ones(tensor.Shape{3, 4})
	c, err := backend.MatMul(a, b)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{0, 4}, c.Shape())

	// Empty inner dimension yields a zero result.
	a, _ = tensor.Zeros(tensor.Shape{2, 0})
	b, _ = tensor.Zeros(tensor.Shape{0, 3})
	c, err = backend.MatMul(a, b)
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 6), c.Data())
}

func TestSelectStrategy(t *testing.T) {
	assert.Equal(t, "simd", selectStrategy(true, false).Name())
	assert.Equal(t, "scalar", selectStrategy(true, true).Name())
	assert.Equal(t, "scalar", selectStrategy(false, false).Name())
	assert.Equal(t, DefaultStrategy(), DefaultStrategy())
}

func TestAxpyAndDotTails(t *testing.T) {
	for _, n := range []int{0, 1, 7, 8, 9, 23} {
		x := make([]float32, n)
		y := make([]float32, n)
		for i := range x {
			x[i] = float32(i + 1)
			y[i] = 1
		}
		axpy(y, x, 2)
		var want float32
		for i := range y {
			assert.Equal(t, 1+2*x[i], y[i])
			want += x[i] * y[i]
		}
		assert.InDelta(t, want, dot(x, y), 1e-3)
	}
}

func BenchmarkMatMul(b *testing.B) {
	rng := rand.New(rand.NewSource(5))
	x := randomRaw(b, rng, 256, 256)
	y := randomRaw(b, rng, 256, 256)

	for name, backend := range map[string]*CPUBackend{
		"serial/scalar":   serialBackend(ScalarStrategy()),
		"serial/simd":     serialBackend(SIMDStrategy()),
		"parallel/simd":   NewWithConfig(Config{Strategy: SIMDStrategy(), MatMulMinRows: 16, MatMulMinWork: 32768}),
		"parallel/scalar": NewWithConfig(Config{Strategy: ScalarStrategy(), MatMulMinRows: 16, MatMulMinWork: 32768}),
	} {
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := backend.MatMul(x, y); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
