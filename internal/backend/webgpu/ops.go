//go:build windows

package webgpu

import (
	"github.com/born-ml/handler/internal/tensor"
)

// Allocate returns a zeroed tensor tagged with the WebGPU device.
func (b *Backend) Allocate(shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	return tensor.NewRaw(shape, dtype, tensor.WebGPU)
}

// FromHost copies a host tensor into this backend's space.
func (b *Backend) FromHost(src *tensor.RawTensor) (*tensor.RawTensor, error) {
	return tensor.Transfer("from_host", src, tensor.CPU, tensor.WebGPU)
}

// ToHost copies a tensor of this backend to the host.
func (b *Backend) ToHost(src *tensor.RawTensor) (*tensor.RawTensor, error) {
	return tensor.Transfer("to_host", src, tensor.WebGPU, tensor.CPU)
}

// Sync returns once the queue is idle. Every operation already waits for its
// readback, so no work is pending between calls.
func (b *Backend) Sync() error {
	return nil
}

// Fill sets every element of t to value.
func (b *Backend) Fill(t *tensor.RawTensor, value float32) error {
	const op = "fill"
	if err := tensor.CheckElementwise(op, tensor.WebGPU, t); err != nil {
		return err
	}
	n := t.NumElements()
	return b.run(op, kernel{
		name: op, code: fillShader, threads: n,
		outputs: []*tensor.RawTensor{t},
		params:  newUniform(n).f32(value),
	})
}

// CopyTo copies src into dst word by word.
func (b *Backend) CopyTo(src, dst *tensor.RawTensor) error {
	const op = "copy_to"
	if err := tensor.CheckCopy(tensor.WebGPU, src, dst); err != nil {
		return err
	}
	n := src.NumElements()
	return b.run(op, kernel{
		name: op, code: copyShader, threads: n,
		inputs:  []*tensor.RawTensor{src},
		outputs: []*tensor.RawTensor{dst},
		params:  newUniform(n),
	})
}

// AddTT computes out = a + b.
func (b *Backend) AddTT(a, other, out *tensor.RawTensor) error {
	return b.binary("add_tt", addShader, a, other, out)
}

// SubtractTT computes out = a - b.
func (b *Backend) SubtractTT(a, other, out *tensor.RawTensor) error {
	return b.binary("subtract_tt", subShader, a, other, out)
}

// MultTT computes out = a * b.
func (b *Backend) MultTT(a, other, out *tensor.RawTensor) error {
	return b.binary("mult_tt", mulShader, a, other, out)
}

// MultAddTT computes out += a * b.
func (b *Backend) MultAddTT(a, other, out *tensor.RawTensor) error {
	return b.binary("mult_add_tt", multAddShader, a, other, out)
}

// DivideTT computes out = a / b.
func (b *Backend) DivideTT(a, other, out *tensor.RawTensor) error {
	return b.binary("divide_tt", divShader, a, other, out)
}

func (b *Backend) binary(op, code string, a, other, out *tensor.RawTensor) error {
	if err := tensor.CheckElementwise(op, tensor.WebGPU, a, other, out); err != nil {
		return err
	}
	n := out.NumElements()
	return b.run(op, kernel{
		name: op, code: code, threads: n,
		inputs:  []*tensor.RawTensor{a, other},
		outputs: []*tensor.RawTensor{out},
		params:  newUniform(n),
	})
}

// AddST computes out = s + b.
func (b *Backend) AddST(s float32, x, out *tensor.RawTensor) error {
	return b.scalar("add_st", scalarAddShader, s, x, out)
}

// MultST computes out = s * b.
func (b *Backend) MultST(s float32, x, out *tensor.RawTensor) error {
	return b.scalar("mult_st", scalarMulShader, s, x, out)
}

func (b *Backend) scalar(op, code string, s float32, x, out *tensor.RawTensor) error {
	if err := tensor.CheckElementwise(op, tensor.WebGPU, x, out); err != nil {
		return err
	}
	n := out.NumElements()
	return b.run(op, kernel{
		name: op, code: code, threads: n,
		inputs:  []*tensor.RawTensor{x},
		outputs: []*tensor.RawTensor{out},
		params:  newUniform(n).f32(s),
	})
}

// AddMV computes out = m + v.
func (b *Backend) AddMV(m, v, out *tensor.RawTensor) error {
	return b.matrixVector("add_mv", addMVShader, m, v, out)
}

// MultMV computes out = m * v.
func (b *Backend) MultMV(m, v, out *tensor.RawTensor) error {
	return b.matrixVector("mult_mv", mulMVShader, m, v, out)
}

// DivideMV computes out = m / v.
func (b *Backend) DivideMV(m, v, out *tensor.RawTensor) error {
	return b.matrixVector("divide_mv", divMVShader, m, v, out)
}

func (b *Backend) matrixVector(op, code string, m, v, out *tensor.RawTensor) error {
	rowWise, err := tensor.CheckMV(op, tensor.WebGPU, m, v, out)
	if err != nil {
		return err
	}
	n := out.NumElements()
	flag := 0
	if rowWise {
		flag = 1
	}
	return b.run(op, kernel{
		name: op, code: code, threads: n,
		inputs:  []*tensor.RawTensor{m, v},
		outputs: []*tensor.RawTensor{out},
		params:  newUniform(n).u32(m.Shape()[1]).u32(flag),
	})
}

// BroadcastFeaturesT replicates a (shape S + (1,)) across the trailing
// feature dims of out (shape S + E).
func (b *Backend) BroadcastFeaturesT(a, out *tensor.RawTensor) error {
	const op = "broadcast_features_t"
	_, inner, err := tensor.CheckBroadcastFeatures(tensor.WebGPU, a, out)
	if err != nil {
		return err
	}
	n := out.NumElements()
	return b.run(op, kernel{
		name: op, code: broadcastFeaturesShader, threads: n,
		inputs:  []*tensor.RawTensor{a},
		outputs: []*tensor.RawTensor{out},
		params:  newUniform(n).u32(inner),
	})
}

// SumT sums a along axis into out. A full reduction runs as a row sum over
// a single row holding every element.
func (b *Backend) SumT(a *tensor.RawTensor, axis int, out *tensor.RawTensor) error {
	const op = "sum_t"
	if err := tensor.CheckSum(tensor.WebGPU, a, axis, out); err != nil {
		return err
	}
	var rows, cols, byRow int
	switch axis {
	case tensor.AllAxes:
		rows, cols, byRow = 1, a.NumElements(), 1
	case 0:
		rows, cols = a.Shape()[0], a.Shape()[1]
	case 1:
		rows, cols, byRow = a.Shape()[0], a.Shape()[1], 1
	}
	n := out.NumElements()
	return b.run(op, kernel{
		name: op, code: sumShader, threads: n,
		inputs:  []*tensor.RawTensor{a},
		outputs: []*tensor.RawTensor{out},
		params:  newUniform(n).u32(rows).u32(cols).u32(byRow),
	})
}

// ClipT clamps every element of a into [lo, hi].
func (b *Backend) ClipT(a *tensor.RawTensor, lo, hi float32, out *tensor.RawTensor) error {
	const op = "clip_t"
	if err := tensor.CheckClip(tensor.WebGPU, a, lo, hi, out); err != nil {
		return err
	}
	n := out.NumElements()
	return b.run(op, kernel{
		name: op, code: clipShader, threads: n,
		inputs:  []*tensor.RawTensor{a},
		outputs: []*tensor.RawTensor{out},
		params:  newUniform(n).f32(lo).f32(hi),
	})
}

// LogT computes the natural logarithm.
func (b *Backend) LogT(a, out *tensor.RawTensor) error {
	return b.unary("log_t", logShader, a, out)
}

// DotMM computes out = a @ b.
func (b *Backend) DotMM(a, other, out *tensor.RawTensor) error {
	return b.matmul("dot_mm", a, other, out, false)
}

// DotAddMM computes out += a @ b.
func (b *Backend) DotAddMM(a, other, out *tensor.RawTensor) error {
	return b.matmul("dot_add_mm", a, other, out, true)
}

func (b *Backend) matmul(op string, a, other, out *tensor.RawTensor, accumulate bool) error {
	m, k, n, err := tensor.CheckDot(op, tensor.WebGPU, a, other, out)
	if err != nil {
		return err
	}
	flag := 0
	if accumulate {
		flag = 1
	}
	return b.run(op, kernel{
		name: "matmul", code: matmulShader, threads: m * n,
		inputs:  []*tensor.RawTensor{a, other},
		outputs: []*tensor.RawTensor{out},
		params:  newUniform(m * n).u32(k).u32(n).u32(flag),
	})
}

// Sigmoid computes y = 1 / (1 + exp(-x)).
func (b *Backend) Sigmoid(x, y *tensor.RawTensor) error {
	return b.unary("sigmoid", sigmoidShader, x, y)
}

// Tanh computes y = tanh(x).
func (b *Backend) Tanh(x, y *tensor.RawTensor) error {
	return b.unary("tanh", tanhShader, x, y)
}

// Rel computes y = max(x, 0).
func (b *Backend) Rel(x, y *tensor.RawTensor) error {
	return b.unary("rel", relShader, x, y)
}

func (b *Backend) unary(op, code string, x, y *tensor.RawTensor) error {
	if err := tensor.CheckActivation(op, tensor.WebGPU, x, y); err != nil {
		return err
	}
	n := y.NumElements()
	return b.run(op, kernel{
		name: op, code: code, threads: n,
		inputs:  []*tensor.RawTensor{x},
		outputs: []*tensor.RawTensor{y},
		params:  newUniform(n),
	})
}

// SigmoidDeriv computes dx = dy * y * (1 - y).
func (b *Backend) SigmoidDeriv(x, y, dy, dx *tensor.RawTensor) error {
	return b.derivative("sigmoid_deriv", sigmoidDerivShader, x, y, dy, dx)
}

// TanhDeriv computes dx = dy * (1 - y²).
func (b *Backend) TanhDeriv(x, y, dy, dx *tensor.RawTensor) error {
	return b.derivative("tanh_deriv", tanhDerivShader, x, y, dy, dx)
}

// RelDeriv computes dx = dy where y > 0, else 0.
func (b *Backend) RelDeriv(x, y, dy, dx *tensor.RawTensor) error {
	return b.derivative("rel_deriv", relDerivShader, x, y, dy, dx)
}

func (b *Backend) derivative(op, code string, x, y, dy, dx *tensor.RawTensor) error {
	if err := tensor.CheckActivationDeriv(op, tensor.WebGPU, x, y, dy, dx); err != nil {
		return err
	}
	n := dx.NumElements()
	return b.run(op, kernel{
		name: op, code: code, threads: n,
		inputs:  []*tensor.RawTensor{y, dy},
		outputs: []*tensor.RawTensor{dx},
		params:  newUniform(n),
	})
}
