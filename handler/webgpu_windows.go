//go:build windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package handler

import (
	"github.com/born-ml/handler/internal/backend/webgpu"
	"github.com/born-ml/handler/tensor"
)

func newWebGPU(cfg Config) (tensor.Handler, error) {
	b, err := webgpu.New(webgpu.Config{
		MemoryLimit: cfg.MemoryLimit,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}
