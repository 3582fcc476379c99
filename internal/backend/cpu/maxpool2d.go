package cpu

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/handler/internal/tensor"
)

// Pool2DForwardBatch performs 2D max pooling with zero-cost padding.
//
// Input shape:  [N, C, H, W]
// Output shape: [N, C, H_out, W_out]
// Argmax shape: [N, C, H_out, W_out, 2] (int32)
//
// Where:
//
//	H_out = (H + 2*pad - window_h) / stride_h + 1
//	W_out = (W + 2*pad - window_w) / stride_w + 1
//
// Algorithm:
//  1. For each batch, channel and output cell
//  2. Scan the in-bounds part of the window in row-major order
//  3. Keep the first maximum (later equal values do not replace it)
//  4. Record its (row, col) in padded coordinates into argmax
//
// A window that lies entirely in padding outputs -Inf and argmax (-1, -1).
//
// Example (2x2 window, stride=2, no padding):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) Pool2DForwardBatch(x *tensor.RawTensor, window [2]int, out *tensor.RawTensor, pad int,
	strides [2]int, argmax *tensor.RawTensor,
) error {
	g, err := tensor.CheckPool2DForward(cpu.device, x, window, out, pad, strides, argmax)
	if err != nil {
		return err
	}
	maxpool2dFloat32(out.AsFloat32(), argmax.AsInt32(), x.AsFloat32(), g)
	return nil
}

func maxpool2dFloat32(outputData []float32, argmaxData []int32, inputData []float32, g tensor.Pool2DGeometry) {
	negInf := math32.Inf(-1)

	for n := 0; n < g.N; n++ {
		for c := 0; c < g.C; c++ {
			// Pre-slice channel plane
			channelOffset := (n*g.C + c) * g.H * g.W
			channelData := inputData[channelOffset : channelOffset+g.H*g.W]

			for outH := 0; outH < g.OH; outH++ {
				// Window start in padded coordinates
				hStart := outH * g.SH

				for outW := 0; outW < g.OW; outW++ {
					wStart := outW * g.SW

					maxVal := negInf
					maxRow, maxCol := -1, -1

					for kh := 0; kh < g.WH; kh++ {
						h := hStart + kh - g.Pad
						if h < 0 || h >= g.H {
							continue
						}
						rowData := channelData[h*g.W : (h+1)*g.W]

						for kw := 0; kw < g.WW; kw++ {
							w := wStart + kw - g.Pad
							if w < 0 || w >= g.W {
								continue
							}
							val := rowData[w]
							if maxRow < 0 || val > maxVal {
								maxVal = val
								maxRow, maxCol = hStart+kh, wStart+kw
							}
						}
					}

					outputIdx := ((n*g.C+c)*g.OH+outH)*g.OW + outW
					outputData[outputIdx] = maxVal
					argmaxData[2*outputIdx] = int32(maxRow)
					argmaxData[2*outputIdx+1] = int32(maxCol)
				}
			}
		}
	}
}
