package tensor

import "github.com/pkg/errors"

// Error taxonomy of the handler contract. Backends wrap these with operation
// context; callers match them with errors.Is.
var (
	// ErrShapeMismatch reports an input or output whose shape does not match
	// the shape derived from the contract.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrDTypeMismatch reports a tensor of the wrong data type.
	ErrDTypeMismatch = errors.New("dtype mismatch")

	// ErrInvalidParameter reports a scalar parameter outside its domain,
	// e.g. clip bounds with max < min or a non-positive stride.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDeviceMismatch reports a tensor that lives in another handler's
	// memory space. Crossing spaces requires FromHost/ToHost.
	ErrDeviceMismatch = errors.New("device mismatch")

	// ErrOutOfMemory reports an allocation failure on the compute device or
	// an exhausted scratch budget. It is fatal for the call and not retried.
	ErrOutOfMemory = errors.New("out of memory")
)
