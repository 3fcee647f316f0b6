package tensor

import "errors"

// Error taxonomy shared by every component of the engine.
// Operations wrap one of these with context using fmt.Errorf("...: %w", err),
// so callers should match with errors.Is.
var (
	// ErrShapeMismatch reports a reshape or elementwise size incompatibility.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrDimension reports a rank or inner-dimension mismatch (matmul, transpose axes).
	ErrDimension = errors.New("dimension error")

	// ErrBroadcast reports shapes that cannot be broadcast together, including batch dims.
	ErrBroadcast = errors.New("broadcast error")

	// ErrInvalidGraph reports an arity mismatch, unknown operation or dangling
	// reference while reconstructing a computation graph.
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrDeviceState reports a kernel or command queue that is not registered or bound.
	ErrDeviceState = errors.New("device state error")

	// ErrAlreadyRegistered reports a duplicate kernel registration on a device.
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrOutOfRange reports an index, range or axis outside the valid bounds.
	ErrOutOfRange = errors.New("out of range")

	// ErrUnavailable reports an accelerator that is not present on this system.
	ErrUnavailable = errors.New("device unavailable")
)
