// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/handler/internal/tensor"

// Handler is the operation contract every compute backend implements.
//
// Implementations:
//   - backend/cpu: sequential reference, the correctness oracle
//   - backend/multicore: goroutine-parallel kernels on host memory
//   - backend/webgpu: WGSL compute shaders on a GPU adapter (windows)
//
// Example:
//
//	import (
//	    "github.com/born-ml/handler/backend/cpu"
//	    "github.com/born-ml/handler/tensor"
//	)
//
//	var h tensor.Handler = cpu.New()
//	x, _ := tensor.FromFloat32([]float32{-1, 0, 2}, tensor.Shape{1, 3})
//	y, _ := h.Allocate(x.Shape(), tensor.Float32)
//	_ = h.Rel(x, y) // y = [0 0 2]
type Handler = tensor.Handler

// AllAxes selects a full reduction in Handler.SumT.
const AllAxes = tensor.AllAxes

// Errors reported by handlers. Match them with errors.Is.
var (
	ErrShapeMismatch    = tensor.ErrShapeMismatch
	ErrDTypeMismatch    = tensor.ErrDTypeMismatch
	ErrInvalidParameter = tensor.ErrInvalidParameter
	ErrDeviceMismatch   = tensor.ErrDeviceMismatch
	ErrOutOfMemory      = tensor.ErrOutOfMemory
)

// Conv2DOutputShape returns the output shape of a convolution of an
// [n, ?, h, w] batch with cOut kernels of size kh x kw.
func Conv2DOutputShape(n, cOut, h, w, kh, kw, pad int, stride [2]int) (Shape, error) {
	return tensor.Conv2DOutputShape(n, cOut, h, w, kh, kw, pad, stride)
}

// Pool2DOutputShape returns the output shape of max pooling an [n, c, h, w]
// batch. The argmax tensor has the same shape with a trailing 2.
func Pool2DOutputShape(n, c, h, w int, window [2]int, pad int, strides [2]int) (Shape, error) {
	return tensor.Pool2DOutputShape(n, c, h, w, window, pad, strides)
}
