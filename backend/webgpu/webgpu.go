//go:build windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the GPU handler.
//
// Kernels are WGSL compute shaders dispatched through wgpu-native. Every
// operation uploads its arguments, runs one compute pass and reads all
// outputs back before returning, so tensors of this handler always hold
// complete results.
//
// Example:
//
//	gpu, err := webgpu.New(webgpu.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gpu.Release()
//
//	x, _ := gpu.FromHost(hostBatch)
package webgpu

import (
	internalwebgpu "github.com/born-ml/handler/internal/backend/webgpu"
	"github.com/born-ml/handler/tensor"
)

// Backend is the GPU handler.
type Backend = internalwebgpu.Backend

// Config configures the GPU handler.
type Config = internalwebgpu.Config

// Compile-time check that Backend implements tensor.Handler.
var _ tensor.Handler = (*Backend)(nil)

// DefaultConfig lets the adapter decide memory limits.
func DefaultConfig() Config {
	return internalwebgpu.DefaultConfig()
}

// New initializes a GPU device. Call Release when done to free it.
//
// Returns an error if no compatible adapter or native library is present.
func New(cfg Config) (*Backend, error) {
	return internalwebgpu.New(cfg)
}

// IsAvailable checks if WebGPU is available on the current system.
//
// Example:
//
//	var h tensor.Handler = cpu.New()
//	if webgpu.IsAvailable() {
//	    gpu, _ := webgpu.New(webgpu.DefaultConfig())
//	    h = gpu
//	}
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
