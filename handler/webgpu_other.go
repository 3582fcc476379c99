//go:build !windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package handler

import (
	"runtime"

	"github.com/pkg/errors"

	"github.com/born-ml/handler/tensor"
)

func newWebGPU(Config) (tensor.Handler, error) {
	return nil, errors.Wrapf(ErrUnsupported, "webgpu on %s", runtime.GOOS)
}
