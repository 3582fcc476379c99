// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/handler/tensor"
)

func TestOutputShapes(t *testing.T) {
	conv, err := tensor.Conv2DOutputShape(2, 5, 8, 9, 3, 3, 1, [2]int{2, 1})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 5, 4, 9}, conv)

	pool, err := tensor.Pool2DOutputShape(1, 3, 6, 6, [2]int{2, 2}, 0, [2]int{2, 2})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 3, 3}, pool)

	_, err = tensor.Pool2DOutputShape(1, 3, 6, 6, [2]int{2, 2}, 0, [2]int{0, 2})
	assert.True(t, errors.Is(err, tensor.ErrInvalidParameter))
}

func TestFromFloat32RejectsShortData(t *testing.T) {
	_, err := tensor.FromFloat32([]float32{1, 2, 3}, tensor.Shape{2, 2})
	assert.Error(t, err)

	x, err := tensor.FromFloat32([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	require.NoError(t, err)
	assert.Equal(t, tensor.CPU, x.Device())
	assert.Equal(t, tensor.Float32, x.DType())
}
