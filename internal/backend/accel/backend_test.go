package accel

import (
	"math/rand"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensorcore/internal/backend/cpu"
	"github.com/born-ml/tensorcore/internal/device"
	"github.com/born-ml/tensorcore/internal/device/emulator"
	"github.com/born-ml/tensorcore/internal/tensor"
)

var approx = cmpopts.EquateApprox(1e-5, 1e-6)

func newEmulatorBackend(t *testing.T) (*Backend, *emulator.Accelerator) {
	t.Helper()
	reg := device.NewRegistry()
	acc := emulator.New()
	require.NoError(t, reg.Attach(acc))
	ctx := device.NewContext(reg)
	t.Cleanup(func() {
		assert.NoError(t, ctx.Close())
		reg.Close()
	})

	b, err := New(ctx, tensor.Emulator)
	require.NoError(t, err)
	return b, acc
}

func raw(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromSlice(data, shape, tensor.CPU)
	require.NoError(t, err)
	return r
}

func randomRaw(t *testing.T, rng *rand.Rand, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.Rand(shape, rng)
	require.NoError(t, err)
	return r
}

func TestNew(t *testing.T) {
	b, _ := newEmulatorBackend(t)
	assert.Equal(t, tensor.Emulator, b.Device())
	assert.Contains(t, b.Name(), "Emulator")

	// A second backend on the same registry keeps the compiled kernels.
	b2, err := New(b.ctx, tensor.Emulator)
	require.NoError(t, err)
	assert.Len(t, b2.ctx.Registry().Kernels(tensor.Emulator), len(Programs()))

	_, err = New(device.NewContext(nil), tensor.Emulator)
	assert.ErrorIs(t, err, tensor.ErrDeviceState)
}

func TestBinaryMatchesCPU(t *testing.T) {
	b, _ := newEmulatorBackend(t)
	host := cpu.New()
	rng := rand.New(rand.NewSource(1))

	cases := []struct {
		name   string
		xs, ys []int
	}{
		{"same shape", []int{2, 3}, []int{2, 3}},
		{"bias row", []int{4, 3}, []int{3}},
		{"column", []int{3, 1}, []int{1, 5}},
		{"scalar", []int{}, []int{2, 2}},
	}
	ops := []struct {
		name    string
		dev, cp func(x, y *tensor.RawTensor) (*tensor.RawTensor, error)
	}{
		{"add", b.Add, host.Add},
		{"sub", b.Sub, host.Sub},
		{"mul", b.Mul, host.Mul},
		{"div", b.Div, host.Div},
		{"pow", b.Pow, host.Pow},
	}

	for _, tc := range cases {
		for _, op := range ops {
			t.Run(tc.name+"/"+op.name, func(t *testing.T) {
				// Positive operands keep pow and div finite.
				x, err := tensor.Full(tc.xs, 0.5)
				require.NoError(t, err)
				require.NoError(t, host.AddInPlace(x, randomRaw(t, rng, tc.xs...)))
				y, err := tensor.Full(tc.ys, 0.5)
				require.NoError(t, err)
				require.NoError(t, host.AddInPlace(y, randomRaw(t, rng, tc.ys...)))

				got, err := op.dev(x, y)
				require.NoError(t, err)
				want, err := op.cp(x, y)
				require.NoError(t, err)

				assert.True(t, got.Shape().Equal(want.Shape()), "shape %v, want %v", got.Shape(), want.Shape())
				assert.Equal(t, tensor.Emulator, got.Device())
				if diff := cmp.Diff(want.Data(), got.Data(), approx); diff != "" {
					t.Errorf("%s mismatch (-cpu +emulator):\n%s", op.name, diff)
				}
			})
		}
	}
}

func TestBinaryBroadcastError(t *testing.T) {
	b, _ := newEmulatorBackend(t)
	_, err := b.Add(raw(t, []float32{1, 2, 3}, 3), raw(t, []float32{1, 2}, 2))
	assert.ErrorIs(t, err, tensor.ErrBroadcast)
}

func TestInPlace(t *testing.T) {
	b, _ := newEmulatorBackend(t)

	x := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, b.AddInPlace(x, raw(t, []float32{10, 20, 30}, 3)))
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, x.Data())

	// Through a transposed view the write lands at the strided positions.
	xt, err := x.Transpose()
	require.NoError(t, err)
	require.NoError(t, b.MulInPlace(xt, raw(t, []float32{1, 2}, 2)))
	assert.Equal(t, []float32{11, 22, 33, 28, 50, 72}, x.Data())

	// The result shape must equal the destination; nothing is written otherwise.
	v := raw(t, []float32{1, 2, 3}, 3)
	err = b.SubInPlace(v, raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3))
	assert.ErrorIs(t, err, tensor.ErrBroadcast)
	assert.Equal(t, []float32{1, 2, 3}, v.Data())
}

func TestScalarOps(t *testing.T) {
	b, _ := newEmulatorBackend(t)
	x := raw(t, []float32{1, 2, 3, 4}, 2, 2)
	xt, err := x.Transpose()
	require.NoError(t, err)

	scaled, err := b.Scale(xt, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 6, 4, 8}, scaled.Data())

	shifted, err := b.AddScalar(x, -1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 2, 3}, shifted.Data())

	sum, err := b.Sum(x)
	require.NoError(t, err)
	v, err := sum.Item()
	require.NoError(t, err)
	assert.InDelta(t, 10, v, 1e-6)
	assert.Equal(t, tensor.Emulator, sum.Device())
}

func TestMatMulIdentity(t *testing.T) {
	b, _ := newEmulatorBackend(t)
	rng := rand.New(rand.NewSource(3))

	a := randomRaw(t, rng, 4, 4)
	eye, err := tensor.Eye(4)
	require.NoError(t, err)

	got, err := b.MatMul(a, eye)
	require.NoError(t, err)
	if diff := cmp.Diff(a.Data(), got.Data(), approx); diff != "" {
		t.Errorf("A @ I (-want +got):\n%s", diff)
	}
}

func TestMatMulMatchesCPU(t *testing.T) {
	b, _ := newEmulatorBackend(t)
	host := cpu.New()
	rng := rand.New(rand.NewSource(5))

	t.Run("batched broadcast", func(t *testing.T) {
		x := randomRaw(t, rng, 2, 3, 4)
		y := randomRaw(t, rng, 4, 5)
		got, err := b.MatMul(x, y)
		require.NoError(t, err)
		want, err := host.MatMul(x, y)
		require.NoError(t, err)
		assert.True(t, got.Shape().Equal(tensor.Shape{2, 3, 5}))
		if diff := cmp.Diff(want.Data(), got.Data(), approx); diff != "" {
			t.Errorf("(-cpu +emulator):\n%s", diff)
		}
	})

	t.Run("transposed view", func(t *testing.T) {
		x := randomRaw(t, rng, 3, 4)
		w := randomRaw(t, rng, 5, 4)
		wt, err := w.Transpose()
		require.NoError(t, err)

		got, err := b.MatMul(x, wt)
		require.NoError(t, err)
		want, err := host.MatMulTransB(x, w)
		require.NoError(t, err)
		if diff := cmp.Diff(want.Data(), got.Data(), approx); diff != "" {
			t.Errorf("(-cpu +emulator):\n%s", diff)
		}
	})

	t.Run("inner dimension", func(t *testing.T) {
		_, err := b.MatMul(randomRaw(t, rng, 2, 3), randomRaw(t, rng, 4, 2))
		assert.ErrorIs(t, err, tensor.ErrDimension)
	})

	t.Run("batch broadcast error", func(t *testing.T) {
		_, err := b.MatMul(randomRaw(t, rng, 2, 3, 4), randomRaw(t, rng, 3, 4, 5))
		assert.ErrorIs(t, err, tensor.ErrBroadcast)
	})
}

func TestResidentBufferReuse(t *testing.T) {
	b, acc := newEmulatorBackend(t)

	x := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	xu, err := b.Upload(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Emulator, xu.Device())
	assert.EqualValues(t, 1, acc.LiveBuffers())

	// Both operands are already resident: only the output is allocated.
	y, err := b.Add(xu, xu)
	require.NoError(t, err)
	assert.EqualValues(t, 2, acc.LiveBuffers())

	z, err := b.Mul(y, xu)
	require.NoError(t, err)
	assert.EqualValues(t, 3, acc.LiveBuffers())
	assert.Equal(t, []float32{2, 8, 18, 32, 50, 72}, z.Data())

	// Releasing the last reference frees the attached buffer.
	y.Release()
	assert.EqualValues(t, 2, acc.LiveBuffers())

	// A host write drops the stale device copy; the next op uploads again.
	require.NoError(t, xu.Set(10, 0, 0))
	assert.EqualValues(t, 1, acc.LiveBuffers())
	w, err := b.Add(xu, xu)
	require.NoError(t, err)
	assert.Equal(t, []float32{20, 4, 6, 8, 10, 12}, w.Data())
	assert.EqualValues(t, 3, acc.LiveBuffers())
}

func TestDroppedResultsFreeDeviceBuffers(t *testing.T) {
	b, acc := newEmulatorBackend(t)
	x := raw(t, []float32{1, 2, 3}, 3)
	y := raw(t, []float32{4, 5, 6}, 3)

	for range 100 {
		_, err := b.Add(x, y)
		require.NoError(t, err)
	}

	// Only the operands' resident copies outlive the collected results.
	assert.Eventually(t, func() bool {
		runtime.GC()
		return acc.LiveBuffers() == 2
	}, 5*time.Second, 10*time.Millisecond, "live buffers = %d", acc.LiveBuffers())
	runtime.KeepAlive(x)
	runtime.KeepAlive(y)
}

func TestHostWriteRefreshesResident(t *testing.T) {
	b, acc := newEmulatorBackend(t)
	x := raw(t, []float32{1, 2, 3}, 3)

	first, err := b.AddScalar(x, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, first.Data())
	live := acc.LiveBuffers()

	x.Data()[0] = 100
	second, err := b.AddScalar(x, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{100, 2, 3}, second.Data())

	// The resident buffer was rewritten in place, only the output is new.
	assert.Equal(t, live+1, acc.LiveBuffers())
	runtime.KeepAlive(first)

	// A result written on the host feeds the next op with the new values.
	second.Data()[1] = -2
	third, err := b.Add(second, x)
	require.NoError(t, err)
	assert.Equal(t, []float32{200, 0, 6}, third.Data())
}

func TestClosedAcceleratorBuffers(t *testing.T) {
	reg := device.NewRegistry()
	old := emulator.New()
	require.NoError(t, reg.Attach(old))
	ctx := device.NewContext(reg)
	b, err := New(ctx, tensor.Emulator)
	require.NoError(t, err)

	x := raw(t, []float32{1, 2}, 2)
	sum, err := b.Add(x, x)
	require.NoError(t, err)
	require.NoError(t, ctx.Close())
	reg.Close()

	// Closing frees buffers still attached to live tensors.
	assert.Zero(t, old.LiveBuffers())
	sum.Release()
	assert.Zero(t, old.LiveBuffers())

	// A new accelerator of the same kind uploads again instead of reusing them.
	b2, acc := newEmulatorBackend(t)
	got, err := b2.Add(x, x)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4}, got.Data())
	assert.EqualValues(t, 2, acc.LiveBuffers())
}

func TestHostKernelBounds(t *testing.T) {
	acc := emulator.New()
	k, err := acc.Compile(KernelAdd, Programs()[KernelAdd])
	require.NoError(t, err)
	q, err := acc.NewQueue()
	require.NoError(t, err)
	defer q.Release()

	a, _ := acc.Alloc(2)
	out, _ := acc.Alloc(2)
	require.NoError(t, q.Dispatch(k, []device.Arg{
		device.BufferArg(a), device.BufferArg(a), device.BufferArg(out), device.UintArg(3),
	}, device.Linear(3), device.Linear(workgroupSize)))
	assert.ErrorIs(t, q.Finish(), tensor.ErrOutOfRange)
}
