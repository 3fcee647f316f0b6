// Package accel implements tensor.Backend by dispatching kernels to an
// accelerator through a device.Context. Results are read back to host
// storage after every operation and keep their device buffer attached, so
// chained operations reuse it instead of uploading again.
package accel

import (
	"fmt"

	"github.com/born-ml/tensorcore/internal/backend/cpu"
	"github.com/born-ml/tensorcore/internal/device"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Backend runs tensor operations on one accelerator.
type Backend struct {
	ctx   *device.Context
	dev   tensor.Device
	acc   device.Accelerator
	queue device.Queue
	host  *cpu.CPUBackend // reductions
}

// New registers the standard kernel set for dev and binds a queue in ctx.
func New(ctx *device.Context, dev tensor.Device) (*Backend, error) {
	acc, err := ctx.Registry().Accelerator(dev)
	if err != nil {
		return nil, fmt.Errorf("accel: %w", err)
	}
	if err := RegisterKernels(ctx.Registry(), dev); err != nil {
		return nil, fmt.Errorf("accel: %w", err)
	}
	q, err := ctx.Bind(dev)
	if err != nil {
		return nil, fmt.Errorf("accel: %w", err)
	}
	return &Backend{ctx: ctx, dev: dev, acc: acc, queue: q, host: cpu.New()}, nil
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return fmt.Sprintf("%s (%s)", b.dev, b.acc.Name())
}

// Device returns the accelerator kind.
func (b *Backend) Device() tensor.Device {
	return b.dev
}

// Finish blocks until all work submitted by this backend has completed.
func (b *Backend) Finish() error {
	return b.queue.Finish()
}

// Add performs element-wise addition with broadcasting.
func (b *Backend) Add(x, y *tensor.RawTensor) (*tensor.RawTensor, error) {
	return b.binary(KernelAdd, x, y)
}

// Sub performs element-wise subtraction with broadcasting.
func (b *Backend) Sub(x, y *tensor.RawTensor) (*tensor.RawTensor, error) {
	return b.binary(KernelSub, x, y)
}

// Mul performs element-wise multiplication with broadcasting.
func (b *Backend) Mul(x, y *tensor.RawTensor) (*tensor.RawTensor, error) {
	return b.binary(KernelMul, x, y)
}

// Div performs element-wise division with broadcasting.
func (b *Backend) Div(x, y *tensor.RawTensor) (*tensor.RawTensor, error) {
	return b.binary(KernelDiv, x, y)
}

// Pow raises x to the power y element-wise with broadcasting.
func (b *Backend) Pow(x, y *tensor.RawTensor) (*tensor.RawTensor, error) {
	return b.binary(KernelPow, x, y)
}

// AddInPlace computes x += y.
func (b *Backend) AddInPlace(x, y *tensor.RawTensor) error {
	return b.binaryInPlace(KernelAdd, x, y)
}

// SubInPlace computes x -= y.
func (b *Backend) SubInPlace(x, y *tensor.RawTensor) error {
	return b.binaryInPlace(KernelSub, x, y)
}

// MulInPlace computes x *= y.
func (b *Backend) MulInPlace(x, y *tensor.RawTensor) error {
	return b.binaryInPlace(KernelMul, x, y)
}

// DivInPlace computes x /= y.
func (b *Backend) DivInPlace(x, y *tensor.RawTensor) error {
	return b.binaryInPlace(KernelDiv, x, y)
}

// PowInPlace computes x = x ** y.
func (b *Backend) PowInPlace(x, y *tensor.RawTensor) error {
	return b.binaryInPlace(KernelPow, x, y)
}

// Scale multiplies every element by s.
func (b *Backend) Scale(x *tensor.RawTensor, s float32) (*tensor.RawTensor, error) {
	return b.scalar(KernelScale, x, s)
}

// AddScalar adds s to every element.
func (b *Backend) AddScalar(x *tensor.RawTensor, s float32) (*tensor.RawTensor, error) {
	return b.scalar(KernelAddScalar, x, s)
}

// Sum reduces on the host. Host storage is current after every operation.
func (b *Backend) Sum(x *tensor.RawTensor) (*tensor.RawTensor, error) {
	r, err := b.host.Sum(x)
	if err != nil {
		return nil, err
	}
	return r.WithDevice(b.dev), nil
}

// SumTo reduces broadcast dimensions on the host.
func (b *Backend) SumTo(x *tensor.RawTensor, shape tensor.Shape) (*tensor.RawTensor, error) {
	r, err := b.host.SumTo(x, shape)
	if err != nil {
		return nil, err
	}
	return r.WithDevice(b.dev), nil
}

// Upload makes x resident on the accelerator and returns it tagged with the
// backend's device. Views that do not cover their whole storage are copied first.
func (b *Backend) Upload(x *tensor.RawTensor) (*tensor.RawTensor, error) {
	if !coversStorage(x) {
		x = x.Clone()
	}
	if _, _, err := b.operand(x); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if err := b.queue.Flush(); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	return x.WithDevice(b.dev), nil
}

func (b *Backend) binary(kernel string, x, y *tensor.RawTensor) (*tensor.RawTensor, error) {
	outShape, _, err := tensor.BroadcastShapes(x.Shape(), y.Shape())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kernel, err)
	}
	n := outShape.NumElements()
	if n == 0 {
		return tensor.NewRaw(outShape, b.dev)
	}

	xe, doneX, err := broadcastTo(x, outShape)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kernel, err)
	}
	defer doneX()
	ye, doneY, err := broadcastTo(y, outShape)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kernel, err)
	}
	defer doneY()

	xb, releaseX, err := b.operand(xe)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kernel, err)
	}
	defer releaseX()
	yb, releaseY, err := b.operand(ye)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kernel, err)
	}
	defer releaseY()

	return b.run(kernel, outShape, func(out device.Buffer) []device.Arg {
		return []device.Arg{
			device.BufferArg(xb),
			device.BufferArg(yb),
			device.BufferArg(out),
			device.UintArg(uint32(n)),
		}
	}, device.Linear(n), device.Linear(workgroupSize))
}

// binaryInPlace computes into a fresh result and copies it back through x's
// strides. The broadcast shape is checked before anything is dispatched.
func (b *Backend) binaryInPlace(kernel string, x, y *tensor.RawTensor) error {
	outShape, _, err := tensor.BroadcastShapes(x.Shape(), y.Shape())
	if err != nil {
		return fmt.Errorf("%s in place: %w", kernel, err)
	}
	if !outShape.Equal(x.Shape()) {
		return fmt.Errorf("%s in place: result shape %v differs from destination %v: %w",
			kernel, outShape, x.Shape(), tensor.ErrBroadcast)
	}

	result, err := b.binary(kernel, x, y)
	if err != nil {
		return err
	}
	defer result.Release()
	return x.CopyFrom(result)
}

func (b *Backend) scalar(kernel string, x *tensor.RawTensor, s float32) (*tensor.RawTensor, error) {
	n := x.NumElements()
	if n == 0 {
		return tensor.NewRaw(x.Shape(), b.dev)
	}
	xb, release, err := b.operand(x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kernel, err)
	}
	defer release()

	return b.run(kernel, x.Shape(), func(out device.Buffer) []device.Arg {
		return []device.Arg{
			device.BufferArg(xb),
			device.BufferArg(out),
			device.UintArg(uint32(n)),
			device.FloatArg(s),
		}
	}, device.Linear(n), device.Linear(workgroupSize))
}

// MatMul performs batched matrix multiplication with broadcast batch
// dimensions. A B that is the transpose view of contiguous storage runs the
// transposed-B kernel without copying.
func (b *Backend) MatMul(x, y *tensor.RawTensor) (*tensor.RawTensor, error) {
	if y.Rank() >= 2 && !y.IsContiguous() {
		if yt, err := y.Transpose(); err == nil {
			defer yt.Release()
			if yt.IsContiguous() {
				return b.matmul(x, yt, true)
			}
		}
	}
	return b.matmul(x, y, false)
}

// MatMulTransB computes x @ ytᵀ where yt is [..., p, n].
func (b *Backend) MatMulTransB(x, yt *tensor.RawTensor) (*tensor.RawTensor, error) {
	return b.matmul(x, yt, true)
}

func (b *Backend) matmul(x, y *tensor.RawTensor, transB bool) (*tensor.RawTensor, error) {
	kernel := KernelMatMul
	if transB {
		kernel = KernelMatMulTB
	}

	xs, ys := x.Shape(), y.Shape()
	if len(xs) < 2 || len(ys) < 2 {
		return nil, fmt.Errorf("matmul: operands must be at least 2D, got %dD and %dD: %w",
			len(xs), len(ys), tensor.ErrDimension)
	}
	rx, ry := len(xs), len(ys)
	m, k := xs[rx-2], xs[rx-1]
	kb, n := ys[ry-2], ys[ry-1]
	if transB {
		kb, n = n, kb
	}
	if k != kb {
		return nil, fmt.Errorf("matmul: inner dimensions differ: %v @ %v: %w", xs, ys, tensor.ErrDimension)
	}

	outBatch, _, err := tensor.BroadcastShapes(xs[:rx-2], ys[:ry-2])
	if err != nil {
		return nil, fmt.Errorf("matmul: batch dimensions: %w", err)
	}
	outShape := append(outBatch.Clone(), m, n)
	if outShape.NumElements() == 0 || k == 0 {
		return tensor.NewRaw(outShape, b.dev)
	}

	xe, doneX, err := broadcastTo(x, append(outBatch.Clone(), m, k))
	if err != nil {
		return nil, fmt.Errorf("matmul: %w", err)
	}
	defer doneX()
	ye, doneY, err := broadcastTo(y, append(outBatch.Clone(), ys[ry-2], ys[ry-1]))
	if err != nil {
		return nil, fmt.Errorf("matmul: %w", err)
	}
	defer doneY()

	xb, releaseX, err := b.operand(xe)
	if err != nil {
		return nil, fmt.Errorf("matmul: %w", err)
	}
	defer releaseX()
	yb, releaseY, err := b.operand(ye)
	if err != nil {
		return nil, fmt.Errorf("matmul: %w", err)
	}
	defer releaseY()

	batch := outBatch.NumElements()
	return b.run(kernel, outShape, func(out device.Buffer) []device.Arg {
		return []device.Arg{
			device.BufferArg(xb),
			device.BufferArg(yb),
			device.BufferArg(out),
			device.UintArg(uint32(m)),
			device.UintArg(uint32(k)),
			device.UintArg(uint32(n)),
			device.UintArg(uint32(batch)),
		}
	}, device.WorkSize{n, m, batch}, device.WorkSize{tileSize, tileSize, 1})
}

// run allocates the output, dispatches kernel with the args bound to it and
// reads the result back. The output buffer stays attached to the result.
func (b *Backend) run(kernel string, shape tensor.Shape, bind func(out device.Buffer) []device.Arg,
	global, local device.WorkSize,
) (*tensor.RawTensor, error) {
	result, err := tensor.NewRaw(shape, b.dev)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kernel, err)
	}
	out, err := b.acc.Alloc(result.NumElements())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kernel, err)
	}

	if err := b.ctx.Dispatch(b.dev, kernel, bind(out), global, local); err != nil {
		out.Release()
		return nil, fmt.Errorf("%s: %w", kernel, err)
	}
	if err := b.queue.Read(out, result.Buffer()); err != nil {
		out.Release()
		return nil, fmt.Errorf("%s: %w", kernel, err)
	}
	result.Storage().Attach(out)
	return result, nil
}

// operand returns a device buffer holding x's elements in row-major order.
// A tensor covering its whole storage reuses, or becomes, the storage's
// resident buffer; a resident copy the host may have written since is
// rewritten in place first. Anything else is uploaded into a temporary that
// the returned release func frees.
func (b *Backend) operand(x *tensor.RawTensor) (device.Buffer, func(), error) {
	whole := coversStorage(x)
	if whole {
		if buf, current := b.resident(x); buf != nil {
			if !current {
				if err := b.queue.Write(buf, x.Data()); err != nil {
					return nil, nil, err
				}
				x.Storage().Attach(buf)
			}
			return buf, func() {}, nil
		}
	}

	buf, err := b.acc.Alloc(x.NumElements())
	if err != nil {
		return nil, nil, err
	}
	if err := b.queue.Write(buf, x.Data()); err != nil {
		buf.Release()
		return nil, nil, err
	}
	if whole {
		x.Storage().Attach(buf)
		return buf, func() {}, nil
	}
	return buf, buf.Release, nil
}

// resident returns x's attached buffer when this backend's accelerator owns it.
func (b *Backend) resident(x *tensor.RawTensor) (device.Buffer, bool) {
	res, current := x.Storage().Resident()
	buf, ok := res.(device.Buffer)
	if !ok || buf.Owner() != b.acc {
		return nil, false
	}
	return buf, current
}

// coversStorage reports whether x is a row-major view of its entire storage.
func coversStorage(x *tensor.RawTensor) bool {
	return x.Offset() == 0 && x.IsContiguous() && x.NumElements() == x.Storage().Len()
}

// broadcastTo returns x materialized with shape and a func that drops the
// temporary, freeing any device buffer attached to it.
func broadcastTo(x *tensor.RawTensor, shape tensor.Shape) (*tensor.RawTensor, func(), error) {
	if x.Shape().Equal(shape) {
		return x, func() {}, nil
	}
	e, err := x.Expand(shape)
	if err != nil {
		return nil, nil, err
	}
	if e.IsContiguous() {
		return e, e.Release, nil
	}
	c := e.Clone()
	e.Release()
	return c, c.Release, nil
}

var _ tensor.Backend = (*Backend)(nil)
