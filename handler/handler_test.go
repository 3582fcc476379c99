// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package handler

import (
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/handler/tensor"
)

func TestNewSelectsBackend(t *testing.T) {
	tests := []struct {
		backend string
		name    string
	}{
		{"", "CPU"},
		{CPU, "CPU"},
		{Multicore, "Multicore"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Backend = tt.backend
			h, err := New(cfg)
			require.NoError(t, err)
			defer Release(h)
			assert.Contains(t, h.Name(), tt.name)
			assert.Equal(t, tensor.CPU, h.Device())
		})
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "tpu"})
	assert.True(t, errors.Is(err, tensor.ErrInvalidParameter))
}

func TestNewWebGPUOffWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("webgpu is built on windows")
	}
	_, err := New(Config{Backend: WebGPU})
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestMulticoreConfigDefaults(t *testing.T) {
	cfg := multicoreConfig(Config{Workers: 0, MinChunk: 0, ScratchLimit: 1 << 20})
	assert.Equal(t, runtime.NumCPU(), cfg.Parallel.NumWorkers)
	assert.Equal(t, 1, cfg.Parallel.MinChunkSize)
	assert.Equal(t, int64(1<<20), cfg.ScratchLimit)

	single := multicoreConfig(Config{Workers: 1, MinChunk: 8})
	assert.False(t, single.Parallel.Enabled)
}

// Host backends must agree exactly on a small pipeline run through the
// public surface only.
func TestHostBackendsAgree(t *testing.T) {
	run := func(backend string) []float32 {
		cfg := DefaultConfig()
		cfg.Backend = backend
		cfg.Workers = 3
		cfg.MinChunk = 1
		h, err := New(cfg)
		require.NoError(t, err)

		x, err := tensor.FromFloat32([]float32{-2, -1, 0, 1, 2, 3}, tensor.Shape{2, 3})
		require.NoError(t, err)
		w, err := tensor.FromFloat32([]float32{1, 0, -1, 2, 0.5, 0.25}, tensor.Shape{3, 2})
		require.NoError(t, err)
		bias, err := tensor.FromFloat32([]float32{0.5, -0.5}, tensor.Shape{1, 2})
		require.NoError(t, err)

		x, err = h.FromHost(x)
		require.NoError(t, err)
		w, err = h.FromHost(w)
		require.NoError(t, err)
		bias, err = h.FromHost(bias)
		require.NoError(t, err)

		z, err := h.Allocate(tensor.Shape{2, 2}, tensor.Float32)
		require.NoError(t, err)
		require.NoError(t, h.DotMM(x, w, z))
		require.NoError(t, h.AddMV(z, bias, z))
		y, err := h.Allocate(tensor.Shape{2, 2}, tensor.Float32)
		require.NoError(t, err)
		require.NoError(t, h.Sigmoid(z, y))
		require.NoError(t, h.Sync())

		host, err := h.ToHost(y)
		require.NoError(t, err)
		return host.AsFloat32()
	}

	ref := run(CPU)
	if diff := cmp.Diff(ref, run(Multicore)); diff != "" {
		t.Errorf("multicore differs from cpu (-cpu +multicore):\n%s", diff)
	}
}
