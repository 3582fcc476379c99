package check

import (
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/handler/internal/tensor"
)

// widen copies a float32 tensor into a float64 matrix.
func widen(t *tensor.RawTensor, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i, v := range t.AsFloat32() {
		data[i] = float64(v)
	}
	return mat.NewDense(rows, cols, data)
}

// dotOracle computes seed + a @ b in float64. A nil seed means zero.
func dotOracle(a, b, seed *tensor.RawTensor) []float64 {
	m, k, n := a.Shape()[0], a.Shape()[1], b.Shape()[1]

	var c mat.Dense
	c.Mul(widen(a, m, k), widen(b, k, n))
	if seed != nil {
		c.Add(&c, widen(seed, m, n))
	}

	result := make([]float64, 0, m*n)
	for i := 0; i < m; i++ {
		result = append(result, mat.Row(nil, i, &c)...)
	}
	return result
}

// CompareOracle checks got against float64 expectations.
func CompareOracle(want []float64, got []float32, tol Tolerance) Parity {
	narrowed := make([]float32, len(want))
	for i, v := range want {
		narrowed[i] = float32(v)
	}
	return Compare(narrowed, got, tol)
}
