// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package multicore provides a goroutine-parallel handler on host memory.
//
// Work is split over independent output elements. Backward spatial kernels
// accumulate into per-worker partial buffers that are reduced in a fixed
// order, so results do not depend on scheduling.
package multicore

import (
	internalmc "github.com/born-ml/handler/internal/backend/multicore"
	"github.com/born-ml/handler/internal/parallel"
	"github.com/born-ml/handler/tensor"
)

// Backend is the parallel host handler.
type Backend = internalmc.Backend

// Config configures a parallel host handler.
type Config = internalmc.Config

// ParallelConfig controls worker count and chunking.
type ParallelConfig = parallel.Config

// Compile-time check that Backend implements tensor.Handler.
var _ tensor.Handler = (*Backend)(nil)

// DefaultConfig uses every CPU with no scratch limit.
func DefaultConfig() Config {
	return internalmc.DefaultConfig()
}

// New creates a parallel host handler.
//
// Example:
//
//	cfg := multicore.DefaultConfig()
//	cfg.ScratchLimit = 64 << 20
//	h := multicore.New(cfg)
func New(cfg Config) *Backend {
	return internalmc.New(cfg)
}
