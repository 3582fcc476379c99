package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/handler/internal/tensor"
)

func fromValues(t *testing.T, shape tensor.Shape, values ...float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromFloat32(values, shape)
	require.NoError(t, err)
	return r
}

func zeros(t *testing.T, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	return r
}

func sequence(t *testing.T, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r := zeros(t, shape)
	for i := range r.AsFloat32() {
		r.AsFloat32()[i] = float32(i + 1)
	}
	return r
}

func argmaxFor(t *testing.T, out tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(out.Concat(2), tensor.Int32, tensor.CPU)
	require.NoError(t, err)
	return r
}
