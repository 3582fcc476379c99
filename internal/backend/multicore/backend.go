// Package multicore implements an accelerated handler that shares host memory
// with the reference backend and fans every operation out over goroutines.
//
// Work is split over independent output indices with internal/parallel.
// Kernels that scatter into overlapping input positions (convolution input
// gradients and pooling backward) go through scatterAccumulate, which gives
// every worker a private partial buffer and reduces the partials in a fixed
// order, so results are identical from run to run.
package multicore

import (
	"log/slog"

	"github.com/born-ml/handler/internal/parallel"
	"github.com/born-ml/handler/internal/tensor"
)

// Config configures the multicore backend.
type Config struct {
	// Parallel controls worker count and chunking.
	Parallel parallel.Config

	// ScratchLimit caps the bytes of partial buffers a single call may
	// allocate. Zero means unlimited.
	ScratchLimit int64

	// Logger receives debug output. Nil discards it.
	Logger *slog.Logger
}

// DefaultConfig returns a configuration using every CPU and no scratch limit.
func DefaultConfig() Config {
	return Config{
		Parallel: parallel.DefaultConfig(),
	}
}

// Backend implements tensor.Handler with goroutine-parallel kernels.
type Backend struct {
	device tensor.Device
	cfg    parallel.Config
	limit  int64
	logger *slog.Logger
}

// Compile-time check that Backend implements tensor.Handler.
var _ tensor.Handler = (*Backend)(nil)

// New creates a multicore backend.
func New(cfg Config) *Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Parallel.NumWorkers <= 0 {
		cfg.Parallel.NumWorkers = 1
	}
	logger.Debug("multicore backend ready",
		"workers", cfg.Parallel.NumWorkers,
		"parallel", cfg.Parallel.Enabled,
		"min_chunk", cfg.Parallel.MinChunkSize,
		"scratch_limit", cfg.ScratchLimit)
	return &Backend{
		device: tensor.CPU,
		cfg:    cfg.Parallel,
		limit:  cfg.ScratchLimit,
		logger: logger,
	}
}

// Name returns the backend name.
func (mc *Backend) Name() string {
	return "Multicore"
}

// Device returns the compute device. Multicore tensors live in host memory.
func (mc *Backend) Device() tensor.Device {
	return mc.device
}

// Allocate returns a zeroed tensor in host memory.
func (mc *Backend) Allocate(shape tensor.Shape, dtype tensor.DataType) (*tensor.RawTensor, error) {
	return tensor.NewRaw(shape, dtype, mc.device)
}

// FromHost deep-copies a host tensor.
func (mc *Backend) FromHost(src *tensor.RawTensor) (*tensor.RawTensor, error) {
	return tensor.Transfer("from_host", src, tensor.CPU, mc.device)
}

// ToHost deep-copies a tensor back to the host.
func (mc *Backend) ToHost(src *tensor.RawTensor) (*tensor.RawTensor, error) {
	return tensor.Transfer("to_host", src, mc.device, tensor.CPU)
}

// Sync returns immediately: operations join their workers before returning.
func (mc *Backend) Sync() error {
	return nil
}

// Fill sets every element of t to value.
func (mc *Backend) Fill(t *tensor.RawTensor, value float32) error {
	if err := tensor.CheckElementwise("fill", mc.device, t); err != nil {
		return err
	}
	data := t.AsFloat32()
	mc.forEach(len(data), func(i int) {
		data[i] = value
	})
	return nil
}

// CopyTo copies src into dst.
func (mc *Backend) CopyTo(src, dst *tensor.RawTensor) error {
	if err := tensor.CheckCopy(mc.device, src, dst); err != nil {
		return err
	}
	from, to := src.Data(), dst.Data()
	parallel.ForRange(len(from), mc.cfg, func(_ int, r parallel.Range) {
		copy(to[r.Lo:r.Hi], from[r.Lo:r.Hi])
	})
	return nil
}

// forEach runs f for every index in [0, n) across the worker pool.
func (mc *Backend) forEach(n int, f func(i int)) {
	parallel.For(n, f, mc.cfg)
}
