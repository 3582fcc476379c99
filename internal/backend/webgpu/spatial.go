//go:build windows

package webgpu

import (
	"github.com/born-ml/handler/internal/tensor"
)

// Conv2DForwardBatch computes a batched 2D cross-correlation with bias.
func (b *Backend) Conv2DForwardBatch(x, w, bias, out *tensor.RawTensor, pad int, stride [2]int) error {
	const op = "conv2d_forward_batch"
	g, err := tensor.CheckConv2DForward(tensor.WebGPU, x, w, bias, out, pad, stride)
	if err != nil {
		return err
	}
	n := out.NumElements()
	return b.run(op, kernel{
		name: op, code: conv2dShader, threads: n,
		inputs:  []*tensor.RawTensor{x, w, bias},
		outputs: []*tensor.RawTensor{out},
		params: newUniform(n).u32(g.CIn).u32(g.H).u32(g.W).u32(g.COut).u32(g.KH).u32(g.KW).
			u32(g.OH).u32(g.OW).u32(g.Pad).u32(g.SH).u32(g.SW),
	})
}

// Conv2DBackwardBatch overwrites iDeltas, wDeltas and bDeltas in a single
// launch. Each invocation gathers one gradient element, so no two
// invocations write the same cell.
func (b *Backend) Conv2DBackwardBatch(x, w *tensor.RawTensor, pad int, stride [2]int,
	iDeltas, oDeltas, wDeltas, bDeltas *tensor.RawTensor,
) error {
	const op = "conv2d_backward_batch"
	g, err := tensor.CheckConv2DBackward(tensor.WebGPU, x, w, pad, stride, iDeltas, oDeltas, wDeltas, bDeltas)
	if err != nil {
		return err
	}
	n := iDeltas.NumElements() + wDeltas.NumElements() + bDeltas.NumElements()
	return b.run(op, kernel{
		name: op, code: conv2dBackwardShader, threads: n,
		inputs:  []*tensor.RawTensor{x, w, oDeltas},
		outputs: []*tensor.RawTensor{iDeltas, wDeltas, bDeltas},
		params: newUniform(n).u32(g.N).u32(g.CIn).u32(g.H).u32(g.W).u32(g.COut).u32(g.KH).u32(g.KW).
			u32(g.OH).u32(g.OW).u32(g.Pad).u32(g.SH).u32(g.SW),
	})
}

// Pool2DForwardBatch performs 2D max pooling with argmax in padded
// coordinates and a first-maximum tie-break.
func (b *Backend) Pool2DForwardBatch(x *tensor.RawTensor, window [2]int, out *tensor.RawTensor, pad int,
	strides [2]int, argmax *tensor.RawTensor,
) error {
	const op = "pool2d_forward_batch"
	g, err := tensor.CheckPool2DForward(tensor.WebGPU, x, window, out, pad, strides, argmax)
	if err != nil {
		return err
	}
	n := out.NumElements()
	return b.run(op, kernel{
		name: op, code: maxPool2dShader, threads: n,
		inputs:  []*tensor.RawTensor{x},
		outputs: []*tensor.RawTensor{out, argmax},
		params:  poolParams(n, g),
	})
}

// Pool2DBackwardBatch overwrites iDeltas with the output gradients routed
// through argmax. Every input position gathers from the windows covering it.
func (b *Backend) Pool2DBackwardBatch(x *tensor.RawTensor, window [2]int, out *tensor.RawTensor, pad int,
	strides [2]int, argmax, iDeltas, oDeltas *tensor.RawTensor,
) error {
	const op = "pool2d_backward_batch"
	g, err := tensor.CheckPool2DBackward(tensor.WebGPU, x, window, out, pad, strides, argmax, iDeltas, oDeltas)
	if err != nil {
		return err
	}
	n := iDeltas.NumElements()
	return b.run(op, kernel{
		name: op, code: maxPool2dBackwardShader, threads: n,
		inputs:  []*tensor.RawTensor{argmax, oDeltas},
		outputs: []*tensor.RawTensor{iDeltas},
		params:  poolParams(n, g),
	})
}

func poolParams(n int, g tensor.Pool2DGeometry) *uniform {
	return newUniform(n).u32(g.H).u32(g.W).u32(g.WH).u32(g.WW).u32(g.OH).u32(g.OW).
		u32(g.Pad).u32(g.SH).u32(g.SW)
}
