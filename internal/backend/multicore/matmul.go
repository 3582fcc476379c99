package multicore

import (
	"github.com/born-ml/handler/internal/tensor"
)

// DotMM computes out = a @ b, one output row per work item.
func (mc *Backend) DotMM(a, b, out *tensor.RawTensor) error {
	m, k, n, err := tensor.CheckDot("dot_mm", mc.device, a, b, out)
	if err != nil {
		return err
	}
	mc.matmul(out.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n, false)
	return nil
}

// DotAddMM computes out += a @ b. Rows are disjoint across workers, so no two
// workers touch the same cell.
func (mc *Backend) DotAddMM(a, b, out *tensor.RawTensor) error {
	m, k, n, err := tensor.CheckDot("dot_add_mm", mc.device, a, b, out)
	if err != nil {
		return err
	}
	mc.matmul(out.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n, true)
	return nil
}

// matmul uses the i-k-j loop order on a row-local accumulator, which keeps
// the per-cell summation in ascending k order.
func (mc *Backend) matmul(out, a, b []float32, m, k, n int, accumulate bool) {
	mc.forEach(m, func(i int) {
		aRow := a[i*k : (i+1)*k]
		acc := make([]float32, n)
		for p, av := range aRow {
			bRow := b[p*n : (p+1)*n]
			for j, bv := range bRow {
				acc[j] += av * bv
			}
		}
		outRow := out[i*n : (i+1)*n]
		for j, v := range acc {
			if accumulate {
				outRow[j] += v
			} else {
				outRow[j] = v
			}
		}
	})
}
