// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/handler/internal/tensor"
)

// RawTensor is the low-level tensor representation.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Device()
//   - Zero-copy data access via AsFloat32() and AsInt32()
//   - Deep copies via Clone()
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	data := raw.AsFloat32() // shares raw's buffer
//	clone := raw.Clone()    // owns a new buffer
type RawTensor = tensor.RawTensor

// Shape lists tensor dimensions, outermost first.
type Shape = tensor.Shape

// DataType is the element type of a tensor.
type DataType = tensor.DataType

// Device is the memory space a tensor lives in.
type Device = tensor.Device

// Element types.
const (
	Float32 = tensor.Float32
	Int32   = tensor.Int32
)

// Memory spaces.
const (
	CPU    = tensor.CPU
	WebGPU = tensor.WebGPU
)

// NewRaw creates a zeroed tensor tagged with device. Most callers should use
// Handler.Allocate instead.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromFloat32 creates a CPU float32 tensor holding a copy of values.
func FromFloat32(values []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromFloat32(values, shape)
}

// FromInt32 creates a CPU int32 tensor holding a copy of values.
func FromInt32(values []int32, shape Shape) (*RawTensor, error) {
	return tensor.FromInt32(values, shape)
}
