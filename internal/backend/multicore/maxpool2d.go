package multicore

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/handler/internal/parallel"
	"github.com/born-ml/handler/internal/tensor"
)

// Pool2DForwardBatch performs 2D max pooling, one (batch, channel) plane per
// work item. The scan visits in-bounds window positions in row-major order
// and keeps the first maximum; argmax holds padded coordinates, and windows
// entirely in padding produce -Inf with argmax (-1, -1).
func (mc *Backend) Pool2DForwardBatch(x *tensor.RawTensor, window [2]int, out *tensor.RawTensor, pad int,
	strides [2]int, argmax *tensor.RawTensor,
) error {
	g, err := tensor.CheckPool2DForward(mc.device, x, window, out, pad, strides, argmax)
	if err != nil {
		return err
	}
	xData, outData, idx := x.AsFloat32(), out.AsFloat32(), argmax.AsInt32()
	negInf := math32.Inf(-1)

	parallel.ForBatch(g.N, g.C, func(n, c int) {
		nc := n*g.C + c
		plane := xData[nc*g.H*g.W : (nc+1)*g.H*g.W]
		for oh := 0; oh < g.OH; oh++ {
			for ow := 0; ow < g.OW; ow++ {
				best, row, col := negInf, -1, -1
				for kh := 0; kh < g.WH; kh++ {
					ph := oh*g.SH + kh
					h := ph - g.Pad
					if h < 0 || h >= g.H {
						continue
					}
					for kw := 0; kw < g.WW; kw++ {
						pw := ow*g.SW + kw
						w := pw - g.Pad
						if w < 0 || w >= g.W {
							continue
						}
						if v := plane[h*g.W+w]; row < 0 || v > best {
							best, row, col = v, ph, pw
						}
					}
				}
				o := (nc*g.OH+oh)*g.OW + ow
				outData[o] = best
				idx[2*o], idx[2*o+1] = int32(row), int32(col)
			}
		}
	}, mc.cfg)
	return nil
}

// Pool2DBackwardBatch zeroes iDeltas and sums every output gradient into the
// input position its argmax names. Overlapping windows may name the same
// position, so the routing goes through scatterAccumulate.
func (mc *Backend) Pool2DBackwardBatch(x *tensor.RawTensor, window [2]int, out *tensor.RawTensor, pad int,
	strides [2]int, argmax, iDeltas, oDeltas *tensor.RawTensor,
) error {
	g, err := tensor.CheckPool2DBackward(mc.device, x, window, out, pad, strides, argmax, iDeltas, oDeltas)
	if err != nil {
		return err
	}
	cells := oDeltas.NumElements()
	plan, err := mc.planScatter("pool2d_backward_batch", cells, iDeltas.NumElements())
	if err != nil {
		return err
	}

	gradData, idx := oDeltas.AsFloat32(), argmax.AsInt32()
	plane := g.OH * g.OW
	mc.scatterAccumulate(plan, iDeltas.AsFloat32(), func(r parallel.Range, acc []float32) {
		for o := r.Lo; o < r.Hi; o++ {
			row, col := int(idx[2*o]), int(idx[2*o+1])
			if row < 0 {
				continue
			}
			nc := o / plane
			acc[(nc*g.H+row-g.Pad)*g.W+col-g.Pad] += gradData[o]
		}
	})
	return nil
}
