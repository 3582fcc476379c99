package npy

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/handler/internal/tensor"
)

func TestSaveLoadKeepsShapesAndDTypes(t *testing.T) {
	x, err := tensor.FromFloat32([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{1, 2, 3})
	require.NoError(t, err)
	argmax, err := tensor.FromInt32([]int32{0, 1, -1, -1}, tensor.Shape{1, 1, 2, 2})
	require.NoError(t, err)
	total, err := tensor.FromFloat32([]float32{21}, tensor.Shape{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cases.npz")
	require.NoError(t, Save(path, map[string]*tensor.RawTensor{
		"pool/x": x, "pool/argmax": argmax, "sum/out": total,
	}))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	assert.Equal(t, tensor.Shape{1, 2, 3}, loaded["pool/x"].Shape())
	assert.Equal(t, x.AsFloat32(), loaded["pool/x"].AsFloat32())

	assert.Equal(t, tensor.Int32, loaded["pool/argmax"].DType())
	assert.Equal(t, argmax.AsInt32(), loaded["pool/argmax"].AsInt32())

	assert.Empty(t, loaded["sum/out"].Shape())
	assert.Equal(t, []float32{21}, loaded["sum/out"].AsFloat32())
}

func TestSaveRejectsDeviceTensors(t *testing.T) {
	x, err := tensor.NewRaw(tensor.Shape{2}, tensor.Float32, tensor.WebGPU)
	require.NoError(t, err)

	err = Save(filepath.Join(t.TempDir(), "bad.npz"), map[string]*tensor.RawTensor{"x": x})
	assert.True(t, errors.Is(err, tensor.ErrDeviceMismatch))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.npz"))
	assert.Error(t, err)
}
