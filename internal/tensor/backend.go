package tensor

// Backend defines the capability set every compute backend implements.
// A tensor's backend decides which code path an operation takes: the CPU
// backend runs Go loops, accelerator backends enqueue device kernels.
//
// Implementations:
//   - backend/cpu: Pure Go, fork/join parallel, SIMD-width matmul strategy
//   - backend/accel: Kernel dispatch over a device.Context (WebGPU, Emulator)
//
// All binary operations follow NumPy broadcasting. Errors wrap the sentinel
// values in errors.go.
type Backend interface {
	// Element-wise binary operations (out of place, result has the broadcast shape).
	Add(a, b *RawTensor) (*RawTensor, error)
	Sub(a, b *RawTensor) (*RawTensor, error)
	Mul(a, b *RawTensor) (*RawTensor, error)
	Div(a, b *RawTensor) (*RawTensor, error)
	Pow(a, b *RawTensor) (*RawTensor, error)

	// In-place variants mutate a. The broadcast of a and b must equal a's
	// shape; this is checked before anything is written.
	AddInPlace(a, b *RawTensor) error
	SubInPlace(a, b *RawTensor) error
	MulInPlace(a, b *RawTensor) error
	DivInPlace(a, b *RawTensor) error
	PowInPlace(a, b *RawTensor) error

	// Matrix operations. Batch dimensions broadcast.
	MatMul(a, b *RawTensor) (*RawTensor, error)       // [..., m, n] @ [..., n, p]
	MatMulTransB(a, b *RawTensor) (*RawTensor, error) // [..., m, n] @ [..., p, n]^T

	// Scalar operations (element-wise with scalar).
	Scale(x *RawTensor, s float32) (*RawTensor, error)
	AddScalar(x *RawTensor, s float32) (*RawTensor, error)

	// Reductions.
	Sum(x *RawTensor) (*RawTensor, error)                // total sum (scalar result)
	SumTo(x *RawTensor, shape Shape) (*RawTensor, error) // reduce broadcast dims down to shape

	// Upload moves x onto this backend's device. CPU returns a host view.
	Upload(x *RawTensor) (*RawTensor, error)

	// Metadata
	Name() string
	Device() Device
}
