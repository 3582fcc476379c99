package multicore

import (
	"github.com/born-ml/handler/internal/parallel"
	"github.com/born-ml/handler/internal/tensor"
)

// Conv2DForwardBatch computes a batched 2D cross-correlation with bias.
// Every (batch, output channel) plane is an independent work item computed
// by direct summation over the window.
func (mc *Backend) Conv2DForwardBatch(x, w, b, out *tensor.RawTensor, pad int, stride [2]int) error {
	g, err := tensor.CheckConv2DForward(mc.device, x, w, b, out, pad, stride)
	if err != nil {
		return err
	}
	xData, wData, bData, outData := x.AsFloat32(), w.AsFloat32(), b.AsFloat32(), out.AsFloat32()

	parallel.ForBatch(g.N, g.COut, func(n, c int) {
		outPlane := outData[(n*g.COut+c)*g.OH*g.OW : (n*g.COut+c+1)*g.OH*g.OW]
		kernel := wData[c*g.CIn*g.KH*g.KW : (c+1)*g.CIn*g.KH*g.KW]
		for oh := 0; oh < g.OH; oh++ {
			for ow := 0; ow < g.OW; ow++ {
				sum := float32(0)
				for ci := 0; ci < g.CIn; ci++ {
					plane := xData[(n*g.CIn+ci)*g.H*g.W : (n*g.CIn+ci+1)*g.H*g.W]
					taps := kernel[ci*g.KH*g.KW : (ci+1)*g.KH*g.KW]
					for kh := 0; kh < g.KH; kh++ {
						h := oh*g.SH - g.Pad + kh
						if h < 0 || h >= g.H {
							continue
						}
						for kw := 0; kw < g.KW; kw++ {
							col := ow*g.SW - g.Pad + kw
							if col < 0 || col >= g.W {
								continue
							}
							sum += plane[h*g.W+col] * taps[kh*g.KW+kw]
						}
					}
				}
				outPlane[oh*g.OW+ow] = sum + bData[c]
			}
		}
	}, mc.cfg)
	return nil
}

// Conv2DBackwardBatch overwrites iDeltas, wDeltas and bDeltas.
//
// The input gradient is a scatter: every output row (batch, output row index)
// spreads its gradient over the input window, and neighbouring rows overlap.
// It runs through scatterAccumulate. Weight and bias gradients are gathers
// with one work item per destination element.
func (mc *Backend) Conv2DBackwardBatch(x, w *tensor.RawTensor, pad int, stride [2]int,
	iDeltas, oDeltas, wDeltas, bDeltas *tensor.RawTensor,
) error {
	g, err := tensor.CheckConv2DBackward(mc.device, x, w, pad, stride, iDeltas, oDeltas, wDeltas, bDeltas)
	if err != nil {
		return err
	}
	plan, err := mc.planScatter("conv2d_backward_batch", g.N*g.OH, iDeltas.NumElements())
	if err != nil {
		return err
	}

	xData, wData := x.AsFloat32(), w.AsFloat32()
	gradData := oDeltas.AsFloat32()

	mc.scatterAccumulate(plan, iDeltas.AsFloat32(), func(r parallel.Range, acc []float32) {
		for item := r.Lo; item < r.Hi; item++ {
			n, oh := item/g.OH, item%g.OH
			for co := 0; co < g.COut; co++ {
				gradRow := gradData[((n*g.COut+co)*g.OH+oh)*g.OW : ((n*g.COut+co)*g.OH+oh+1)*g.OW]
				for ow, grad := range gradRow {
					for ci := 0; ci < g.CIn; ci++ {
						accPlane := acc[(n*g.CIn+ci)*g.H*g.W : (n*g.CIn+ci+1)*g.H*g.W]
						taps := wData[(co*g.CIn+ci)*g.KH*g.KW : (co*g.CIn+ci+1)*g.KH*g.KW]
						for kh := 0; kh < g.KH; kh++ {
							h := oh*g.SH - g.Pad + kh
							if h < 0 || h >= g.H {
								continue
							}
							for kw := 0; kw < g.KW; kw++ {
								col := ow*g.SW - g.Pad + kw
								if col < 0 || col >= g.W {
									continue
								}
								accPlane[h*g.W+col] += grad * taps[kh*g.KW+kw]
							}
						}
					}
				}
			}
		}
	})

	wGrad := wDeltas.AsFloat32()
	mc.forEach(len(wGrad), func(idx int) {
		kw := idx % g.KW
		kh := (idx / g.KW) % g.KH
		ci := (idx / (g.KW * g.KH)) % g.CIn
		co := idx / (g.KW * g.KH * g.CIn)

		sum := float32(0)
		for n := 0; n < g.N; n++ {
			for oh := 0; oh < g.OH; oh++ {
				h := oh*g.SH - g.Pad + kh
				if h < 0 || h >= g.H {
					continue
				}
				for ow := 0; ow < g.OW; ow++ {
					col := ow*g.SW - g.Pad + kw
					if col < 0 || col >= g.W {
						continue
					}
					sum += xData[((n*g.CIn+ci)*g.H+h)*g.W+col] * gradData[((n*g.COut+co)*g.OH+oh)*g.OW+ow]
				}
			}
		}
		wGrad[idx] = sum
	})

	bGrad := bDeltas.AsFloat32()
	plane := g.OH * g.OW
	mc.forEach(g.COut, func(co int) {
		sum := float32(0)
		for n := 0; n < g.N; n++ {
			for _, v := range gradData[(n*g.COut+co)*plane : (n*g.COut+co+1)*plane] {
				sum += v
			}
		}
		bGrad[co] = sum
	})
	return nil
}
