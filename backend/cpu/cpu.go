// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the reference handler.
//
// Every kernel runs sequentially on host memory in a fixed evaluation order,
// so results are reproducible bit for bit. Accelerated handlers are checked
// against this one.
//
// The handler holds no mutable state and is safe for concurrent use on
// disjoint outputs.
package cpu

import (
	internalcpu "github.com/born-ml/handler/internal/backend/cpu"
	"github.com/born-ml/handler/tensor"
)

// Backend is the sequential reference handler.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Handler.
var _ tensor.Handler = (*Backend)(nil)

// New creates a reference handler.
//
// Example:
//
//	h := cpu.New()
//	a, _ := tensor.FromFloat32([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
//	out, _ := h.Allocate(tensor.Shape{2, 2}, tensor.Float32)
//	_ = h.DotMM(a, a, out) // out = [7 10 15 22]
func New() *Backend {
	return internalcpu.New()
}
