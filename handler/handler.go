// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package handler selects a compute backend at composition time.
//
// Every backend implements tensor.Handler with the same numeric contract.
// Code written against the interface runs unchanged on any of them:
//
//	cfg := handler.DefaultConfig()
//	cfg.Backend = handler.Multicore
//	h, err := handler.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer handler.Release(h)
package handler

import (
	"log/slog"
	"runtime"

	"github.com/pkg/errors"

	"github.com/born-ml/handler/internal/backend/cpu"
	"github.com/born-ml/handler/internal/backend/multicore"
	"github.com/born-ml/handler/internal/parallel"
	"github.com/born-ml/handler/tensor"
)

// Backend names accepted by Config.Backend.
const (
	CPU       = "cpu"
	Multicore = "multicore"
	WebGPU    = "webgpu"
)

// Backends lists the names accepted by Config.Backend.
func Backends() []string {
	return []string{CPU, Multicore, WebGPU}
}

// ErrUnsupported reports a backend that is not built for this platform.
var ErrUnsupported = errors.New("handler: backend not supported on this platform")

// Config selects and configures a backend.
type Config struct {
	// Backend is one of CPU, Multicore or WebGPU.
	Backend string

	// Workers bounds the goroutines of the multicore backend. Zero or less
	// uses every CPU.
	Workers int

	// MinChunk is the smallest number of output elements handed to one
	// multicore worker.
	MinChunk int

	// ScratchLimit caps the partial buffers of one multicore call, in bytes.
	// Zero means unlimited.
	ScratchLimit int64

	// MemoryLimit caps the device bytes one WebGPU dispatch may bind.
	// Zero leaves the decision to the adapter.
	MemoryLimit int64

	// Logger receives backend diagnostics. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns the reference backend configuration.
func DefaultConfig() Config {
	p := parallel.DefaultConfig()
	return Config{
		Backend:  CPU,
		Workers:  p.NumWorkers,
		MinChunk: p.MinChunkSize,
	}
}

// New constructs the backend named by cfg.Backend.
func New(cfg Config) (tensor.Handler, error) {
	switch cfg.Backend {
	case CPU, "":
		return cpu.New(), nil
	case Multicore:
		return multicore.New(multicoreConfig(cfg)), nil
	case WebGPU:
		return newWebGPU(cfg)
	default:
		return nil, errors.Wrapf(tensor.ErrInvalidParameter, "handler: unknown backend %q", cfg.Backend)
	}
}

func multicoreConfig(cfg Config) multicore.Config {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	minChunk := max(cfg.MinChunk, 1)
	return multicore.Config{
		Parallel: parallel.Config{
			Enabled:      workers > 1,
			NumWorkers:   workers,
			MinChunkSize: minChunk,
		},
		ScratchLimit: cfg.ScratchLimit,
		Logger:       cfg.Logger,
	}
}

// Release frees device resources held by h, if any. Host backends hold none.
func Release(h tensor.Handler) {
	if r, ok := h.(interface{ Release() }); ok {
		r.Release()
	}
}
