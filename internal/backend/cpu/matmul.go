package cpu

import (
	"github.com/born-ml/handler/internal/tensor"
)

// DotMM computes out = a @ b for (m, k) @ (k, n).
func (cpu *CPUBackend) DotMM(a, b, out *tensor.RawTensor) error {
	m, k, n, err := tensor.CheckDot("dot_mm", cpu.device, a, b, out)
	if err != nil {
		return err
	}
	matmulFloat32(out.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n, false)
	return nil
}

// DotAddMM computes out += a @ b for (m, k) @ (k, n).
func (cpu *CPUBackend) DotAddMM(a, b, out *tensor.RawTensor) error {
	m, k, n, err := tensor.CheckDot("dot_add_mm", cpu.device, a, b, out)
	if err != nil {
		return err
	}
	matmulFloat32(out.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n, true)
	return nil
}

// matmulFloat32 is the naive O(m*k*n) product. Each cell is accumulated in
// ascending k order before it is stored (or added) into out.
func matmulFloat32(out, a, b []float32, m, k, n int, accumulate bool) {
	for i := 0; i < m; i++ {
		aRow := a[i*k : (i+1)*k]
		outRow := out[i*n : (i+1)*n]
		for j := 0; j < n; j++ {
			sum := float32(0.0)
			for p, av := range aRow {
				sum += av * b[p*n+j]
			}
			if accumulate {
				outRow[j] += sum
			} else {
				outRow[j] = sum
			}
		}
	}
}
