package cpu

import (
	"github.com/born-ml/handler/internal/tensor"
)

// Conv2DForwardBatch computes a batched 2D cross-correlation with bias using
// the im2col algorithm.
//
// Shapes:
//   - x:   [N, C_in, H, W]
//   - w:   [C_out, C_in, K_h, K_w]
//   - b:   [C_out]
//   - out: [N, C_out, H_out, W_out]
//
// Where:
//
//	H_out = (H + 2*pad - K_h) / stride_h + 1
//	W_out = (W + 2*pad - K_w) / stride_w + 1
//
// Padded positions read as zero.
//
// Algorithm: Im2col
//  1. Transform input patches into rows of a column buffer (im2col)
//  2. Multiply every kernel row with every patch row
//  3. Add the bias of the output channel
//
// Reference: "High Performance Convolutional Neural Networks for Document Processing"
// (Chellapilla et al., 2006).
func (cpu *CPUBackend) Conv2DForwardBatch(x, w, b, out *tensor.RawTensor, pad int, stride [2]int) error {
	g, err := tensor.CheckConv2DForward(cpu.device, x, w, b, out, pad, stride)
	if err != nil {
		return err
	}

	// colBuf: [N * H_out * W_out, C_in * K_h * K_w]
	colWidth := g.CIn * g.KH * g.KW
	colBuf := make([]float32, g.N*g.OH*g.OW*colWidth)
	im2colFloat32(colBuf, x.AsFloat32(), g)

	kernelData := w.AsFloat32()
	biasData := b.AsFloat32()
	outputData := out.AsFloat32()
	plane := g.OH * g.OW

	// kernelData is already [C_out, C_in * K_h * K_w] in row-major order.
	for n := 0; n < g.N; n++ {
		for c := 0; c < g.COut; c++ {
			kernelRow := kernelData[c*colWidth : (c+1)*colWidth]
			outPlane := outputData[(n*g.COut+c)*plane : (n*g.COut+c+1)*plane]
			for p := 0; p < plane; p++ {
				patch := colBuf[(n*plane+p)*colWidth : (n*plane+p+1)*colWidth]
				sum := float32(0.0)
				for k, kv := range kernelRow {
					sum += kv * patch[k]
				}
				outPlane[p] = sum + biasData[c]
			}
		}
	}
	return nil
}

// im2colFloat32 transforms the input tensor into a column matrix.
//
// Input: [N, C, H, W]
// Output: colBuf [N * H_out * W_out, C * K_h * K_w]
//
// Each row of colBuf corresponds to one output position.
// Each column corresponds to one kernel weight.
func im2colFloat32(colBuf, inputData []float32, g tensor.Conv2DGeometry) {
	colIdx := 0
	colWidth := g.CIn * g.KH * g.KW

	for n := 0; n < g.N; n++ {
		for outH := 0; outH < g.OH; outH++ {
			for outW := 0; outW < g.OW; outW++ {
				// Top-left corner in input space
				hStart := outH*g.SH - g.Pad
				wStart := outW*g.SW - g.Pad
				bufIdx := colIdx * colWidth

				for c := 0; c < g.CIn; c++ {
					for kh := 0; kh < g.KH; kh++ {
						for kw := 0; kw < g.KW; kw++ {
							h := hStart + kh
							w := wStart + kw

							if h >= 0 && h < g.H && w >= 0 && w < g.W {
								colBuf[bufIdx] = inputData[((n*g.CIn+c)*g.H+h)*g.W+w]
							} else {
								colBuf[bufIdx] = 0.0 // padding
							}
							bufIdx++
						}
					}
				}
				colIdx++
			}
		}
	}
}
