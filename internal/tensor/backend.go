package tensor

// AllAxes selects a full reduction in SumT.
const AllAxes = -1

// Handler is the operation contract every compute backend implements.
//
// Operations never allocate their results: callers pass pre-allocated outputs
// whose shapes follow the rules in this package (see Conv2DOutputShape and
// Pool2DOutputShape). A violated contract is reported before any output is
// written. Every operation returns only after its outputs are complete.
//
// Implementations:
//   - internal/backend/cpu: sequential reference, the correctness oracle
//   - internal/backend/multicore: goroutine-parallel over output indices
//   - internal/backend/webgpu: WGSL compute shaders on a GPU adapter
type Handler interface {
	// Memory space.
	Allocate(shape Shape, dtype DataType) (*RawTensor, error) // Zeroed tensor on this handler's device.
	FromHost(src *RawTensor) (*RawTensor, error)              // Copy a CPU tensor into this handler's space.
	ToHost(src *RawTensor) (*RawTensor, error)                // Copy a tensor of this handler back to the CPU.
	Sync() error                                              // Wait for all issued work.
	Fill(t *RawTensor, value float32) error                   // t[...] = value
	CopyTo(src, dst *RawTensor) error                         // dst[...] = src[...]

	// Tensor-tensor elementwise operations (identical shapes).
	AddTT(a, b, out *RawTensor) error      // out = a + b
	SubtractTT(a, b, out *RawTensor) error // out = a - b
	MultTT(a, b, out *RawTensor) error     // out = a * b
	MultAddTT(a, b, out *RawTensor) error  // out += a * b
	DivideTT(a, b, out *RawTensor) error   // out = a / b

	// Scalar-tensor operations.
	AddST(s float32, b, out *RawTensor) error  // out = s + b
	MultST(s float32, b, out *RawTensor) error // out = s * b

	// Matrix-vector broadcasting; v is (1, n) for rows or (m, 1) for columns.
	AddMV(m, v, out *RawTensor) error    // out = m + v
	MultMV(m, v, out *RawTensor) error   // out = m * v
	DivideMV(m, v, out *RawTensor) error // out = m / v

	// Broadcasting and reductions.
	BroadcastFeaturesT(a, out *RawTensor) error        // replicate trailing singleton of a over out's trailing dims
	SumT(a *RawTensor, axis int, out *RawTensor) error // axis 0, 1 or AllAxes
	ClipT(a *RawTensor, lo, hi float32, out *RawTensor) error
	LogT(a, out *RawTensor) error

	// Matrix products.
	DotMM(a, b, out *RawTensor) error    // out = a @ b
	DotAddMM(a, b, out *RawTensor) error // out += a @ b

	// Activations; derivatives are expressed through the forward output y.
	Sigmoid(x, y *RawTensor) error
	SigmoidDeriv(x, y, dy, dx *RawTensor) error
	Tanh(x, y *RawTensor) error
	TanhDeriv(x, y, dy, dx *RawTensor) error
	Rel(x, y *RawTensor) error
	RelDeriv(x, y, dy, dx *RawTensor) error

	// Spatial operations on [N, C, H, W] batches.
	Conv2DForwardBatch(x, w, b, out *RawTensor, pad int, stride [2]int) error
	Conv2DBackwardBatch(x, w *RawTensor, pad int, stride [2]int, iDeltas, oDeltas, wDeltas, bDeltas *RawTensor) error
	Pool2DForwardBatch(x *RawTensor, window [2]int, out *RawTensor, pad int, strides [2]int, argmax *RawTensor) error
	Pool2DBackwardBatch(x *RawTensor, window [2]int, out *RawTensor, pad int, strides [2]int, argmax, iDeltas, oDeltas *RawTensor) error

	// Metadata
	Name() string
	Device() Device
}
