package multicore

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/handler/internal/parallel"
	"github.com/born-ml/handler/internal/tensor"
)

// SumT sums a along axis into out. Axis 0 assigns columns to workers, axis 1
// rows. tensor.AllAxes sums each chunk separately and adds the chunk totals
// in chunk order.
func (mc *Backend) SumT(a *tensor.RawTensor, axis int, out *tensor.RawTensor) error {
	if err := tensor.CheckSum(mc.device, a, axis, out); err != nil {
		return err
	}
	src, dst := a.AsFloat32(), out.AsFloat32()

	switch axis {
	case tensor.AllAxes:
		ranges := parallel.Chunks(len(src), mc.cfg)
		totals := make([]float32, len(ranges))
		parallel.ForRange(len(src), mc.cfg, func(k int, r parallel.Range) {
			sum := float32(0)
			for _, x := range src[r.Lo:r.Hi] {
				sum += x
			}
			totals[k] = sum
		})
		sum := float32(0)
		for _, s := range totals {
			sum += s
		}
		dst[0] = sum
	case 0:
		rows, cols := a.Shape()[0], a.Shape()[1]
		mc.forEach(cols, func(j int) {
			sum := float32(0)
			for i := 0; i < rows; i++ {
				sum += src[i*cols+j]
			}
			dst[j] = sum
		})
	case 1:
		cols := a.Shape()[1]
		mc.forEach(a.Shape()[0], func(i int) {
			sum := float32(0)
			for _, x := range src[i*cols : (i+1)*cols] {
				sum += x
			}
			dst[i] = sum
		})
	}
	return nil
}

// BroadcastFeaturesT replicates a (shape S + (1,)) across the trailing
// feature dims of out. Each output element reads its source directly.
func (mc *Backend) BroadcastFeaturesT(a, out *tensor.RawTensor) error {
	_, inner, err := tensor.CheckBroadcastFeatures(mc.device, a, out)
	if err != nil {
		return err
	}
	src, dst := a.AsFloat32(), out.AsFloat32()
	parallel.ForRange(len(dst), mc.cfg, func(_ int, r parallel.Range) {
		for i := r.Lo; i < r.Hi; i++ {
			dst[i] = src[i/inner]
		}
	})
	return nil
}

// ClipT clamps every element of a into [lo, hi].
func (mc *Backend) ClipT(a *tensor.RawTensor, lo, hi float32, out *tensor.RawTensor) error {
	if err := tensor.CheckClip(mc.device, a, lo, hi, out); err != nil {
		return err
	}
	return mc.unary("clip_t", a, out, func(x float32) float32 {
		switch {
		case x < lo:
			return lo
		case x > hi:
			return hi
		default:
			return x
		}
	})
}

// LogT computes the natural logarithm.
func (mc *Backend) LogT(a, out *tensor.RawTensor) error {
	return mc.unary("log_t", a, out, math32.Log)
}
