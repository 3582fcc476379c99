package cpu

import (
	"github.com/born-ml/handler/internal/tensor"
)

// Conv2DBackwardBatch computes the three convolution gradients from oDeltas
// ([N, C_out, H_out, W_out]) and overwrites:
//   - iDeltas [N, C_in, H, W]: gradient w.r.t. x
//   - wDeltas [C_out, C_in, K_h, K_w]: gradient w.r.t. w
//   - bDeltas [C_out]: gradient w.r.t. the bias
//
// References:
//   - Burn framework: crates/burn-autodiff/src/ops/module.rs (conv2d_x_backward, conv2d_weight_backward)
//   - "A guide to convolution arithmetic for deep learning" (Dumoulin & Visin, 2016)
func (cpu *CPUBackend) Conv2DBackwardBatch(x, w *tensor.RawTensor, pad int, stride [2]int,
	iDeltas, oDeltas, wDeltas, bDeltas *tensor.RawTensor,
) error {
	g, err := tensor.CheckConv2DBackward(cpu.device, x, w, pad, stride, iDeltas, oDeltas, wDeltas, bDeltas)
	if err != nil {
		return err
	}

	conv2dInputBackwardFloat32(iDeltas.AsFloat32(), oDeltas.AsFloat32(), w.AsFloat32(), g)
	conv2dKernelBackwardFloat32(wDeltas.AsFloat32(), oDeltas.AsFloat32(), x.AsFloat32(), g)
	conv2dBiasBackwardFloat32(bDeltas.AsFloat32(), oDeltas.AsFloat32(), g)
	return nil
}

// conv2dInputBackwardFloat32 computes the input gradient (transposed
// convolution) by scattering every output gradient back over its window.
//
//nolint:gocognit // High complexity inherent to convolution backprop
func conv2dInputBackwardFloat32(inputGradData, gradData, kernelData []float32, g tensor.Conv2DGeometry) {
	for i := range inputGradData {
		inputGradData[i] = 0.0
	}

	for batch := 0; batch < g.N; batch++ {
		// Pre-slice batch planes
		inputGradBatchOffset := batch * g.CIn * g.H * g.W
		inputGradBatch := inputGradData[inputGradBatchOffset : inputGradBatchOffset+g.CIn*g.H*g.W]

		gradBatchOffset := batch * g.COut * g.OH * g.OW
		gradBatch := gradData[gradBatchOffset : gradBatchOffset+g.COut*g.OH*g.OW]

		for outH := 0; outH < g.OH; outH++ {
			for outW := 0; outW < g.OW; outW++ {
				for outChan := 0; outChan < g.COut; outChan++ {
					gradVal := gradBatch[(outChan*g.OH+outH)*g.OW+outW]

					// Pre-slice kernel for this output channel
					kernelCOutOffset := outChan * g.CIn * g.KH * g.KW
					kernelCOut := kernelData[kernelCOutOffset : kernelCOutOffset+g.CIn*g.KH*g.KW]

					for inChan := 0; inChan < g.CIn; inChan++ {
						inputGradCIn := inputGradBatch[inChan*g.H*g.W : (inChan+1)*g.H*g.W]
						kernelCIn := kernelCOut[inChan*g.KH*g.KW : (inChan+1)*g.KH*g.KW]

						for kh := 0; kh < g.KH; kh++ {
							hPos := outH*g.SH - g.Pad + kh
							if hPos < 0 || hPos >= g.H {
								continue
							}
							for kw := 0; kw < g.KW; kw++ {
								wPos := outW*g.SW - g.Pad + kw
								if wPos < 0 || wPos >= g.W {
									continue
								}
								inputGradCIn[hPos*g.W+wPos] += gradVal * kernelCIn[kh*g.KW+kw]
							}
						}
					}
				}
			}
		}
	}
}

// conv2dKernelBackwardFloat32 computes the kernel gradient: for each kernel
// weight, the sum over batch and output positions of input * grad.
//
//nolint:gocognit // High complexity inherent to convolution backprop
func conv2dKernelBackwardFloat32(kernelGradData, gradData, inputData []float32, g tensor.Conv2DGeometry) {
	for cOut := 0; cOut < g.COut; cOut++ {
		for cIn := 0; cIn < g.CIn; cIn++ {
			for kh := 0; kh < g.KH; kh++ {
				for kw := 0; kw < g.KW; kw++ {
					sum := float32(0.0)

					for n := 0; n < g.N; n++ {
						for outH := 0; outH < g.OH; outH++ {
							h := outH*g.SH - g.Pad + kh
							if h < 0 || h >= g.H {
								continue
							}
							for outW := 0; outW < g.OW; outW++ {
								w := outW*g.SW - g.Pad + kw
								if w < 0 || w >= g.W {
									continue
								}
								inputIdx := ((n*g.CIn+cIn)*g.H+h)*g.W + w
								gradIdx := ((n*g.COut+cOut)*g.OH+outH)*g.OW + outW
								sum += inputData[inputIdx] * gradData[gradIdx]
							}
						}
					}

					kernelGradData[((cOut*g.CIn+cIn)*g.KH+kh)*g.KW+kw] = sum
				}
			}
		}
	}
}

// conv2dBiasBackwardFloat32 sums the output gradient over batch and space.
func conv2dBiasBackwardFloat32(biasGradData, gradData []float32, g tensor.Conv2DGeometry) {
	plane := g.OH * g.OW
	for cOut := 0; cOut < g.COut; cOut++ {
		sum := float32(0.0)
		for n := 0; n < g.N; n++ {
			for _, v := range gradData[(n*g.COut+cOut)*plane : (n*g.COut+cOut+1)*plane] {
				sum += v
			}
		}
		biasGradData[cOut] = sum
	}
}
