// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the tensor container and the Handler operation
// contract shared by every backend.
//
// # Overview
//
// A RawTensor is a contiguous row-major buffer with a Shape, a DataType and
// a Device tag. Values are always Float32; Int32 is used only for the argmax
// output of max pooling.
//
// A Handler executes numeric kernels on tensors that live in its memory
// space. Operations never allocate their results: the caller passes
// pre-allocated outputs, sized with the rules exposed here
// (Conv2DOutputShape, Pool2DOutputShape). Contract violations are reported
// with the sentinel errors of this package before any output is written.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/handler/handler"
//	    "github.com/born-ml/handler/tensor"
//	)
//
//	h, err := handler.New(handler.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer handler.Release(h)
//
//	a, _ := h.Allocate(tensor.Shape{2, 3}, tensor.Float32)
//	b, _ := h.Allocate(tensor.Shape{2, 3}, tensor.Float32)
//	out, _ := h.Allocate(tensor.Shape{2, 3}, tensor.Float32)
//	_ = h.Fill(a, 1)
//	_ = h.Fill(b, 2)
//	if err := h.AddTT(a, b, out); err != nil {
//	    log.Fatal(err)
//	}
//	host, _ := h.ToHost(out)
//	fmt.Println(host.AsFloat32()) // [3 3 3 3 3 3]
//
// # Memory Spaces
//
// Tensors created by a handler carry its Device. Passing a tensor of another
// device to an operation fails with ErrDeviceMismatch; use FromHost and
// ToHost to cross the boundary.
package tensor
