package cpu

import (
	"github.com/chewxy/math32"

	"github.com/born-ml/handler/internal/tensor"
)

// SumT sums a along axis into out.
//
// Shapes:
//   - axis 0 on (m, n) produces (1, n)
//   - axis 1 on (m, n) produces (m,)
//   - tensor.AllAxes on any rank produces a rank-0 scalar
//
// Accumulation runs in ascending index order.
func (cpu *CPUBackend) SumT(a *tensor.RawTensor, axis int, out *tensor.RawTensor) error {
	if err := tensor.CheckSum(cpu.device, a, axis, out); err != nil {
		return err
	}
	src, dst := a.AsFloat32(), out.AsFloat32()

	switch axis {
	case tensor.AllAxes:
		sum := float32(0)
		for _, x := range src {
			sum += x
		}
		dst[0] = sum
	case 0:
		rows, cols := a.Shape()[0], a.Shape()[1]
		for j := 0; j < cols; j++ {
			sum := float32(0)
			for i := 0; i < rows; i++ {
				sum += src[i*cols+j]
			}
			dst[j] = sum
		}
	case 1:
		rows, cols := a.Shape()[0], a.Shape()[1]
		for i := 0; i < rows; i++ {
			sum := float32(0)
			for _, x := range src[i*cols : (i+1)*cols] {
				sum += x
			}
			dst[i] = sum
		}
	}
	return nil
}

// BroadcastFeaturesT replicates a (shape S + (1,)) across the trailing
// feature dims of out (shape S + E): out[s, e...] = a[s].
func (cpu *CPUBackend) BroadcastFeaturesT(a, out *tensor.RawTensor) error {
	outer, inner, err := tensor.CheckBroadcastFeatures(cpu.device, a, out)
	if err != nil {
		return err
	}
	src, dst := a.AsFloat32(), out.AsFloat32()
	for s := 0; s < outer; s++ {
		v := src[s]
		row := dst[s*inner : (s+1)*inner]
		for e := range row {
			row[e] = v
		}
	}
	return nil
}

// ClipT clamps every element of a into [lo, hi].
func (cpu *CPUBackend) ClipT(a *tensor.RawTensor, lo, hi float32, out *tensor.RawTensor) error {
	if err := tensor.CheckClip(cpu.device, a, lo, hi, out); err != nil {
		return err
	}
	src, dst := a.AsFloat32(), out.AsFloat32()
	for i, x := range src {
		dst[i] = clamp(x, lo, hi)
	}
	return nil
}

// clamp keeps NaN as NaN, matching the comparisons of every backend.
func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// LogT computes the natural logarithm. Non-positive inputs yield NaN or -Inf.
func (cpu *CPUBackend) LogT(a, out *tensor.RawTensor) error {
	if err := tensor.CheckElementwise("log_t", cpu.device, a, out); err != nil {
		return err
	}
	src, dst := a.AsFloat32(), out.AsFloat32()
	for i, x := range src {
		dst[i] = math32.Log(x)
	}
	return nil
}
