// Package parallel provides the worker fan-out used by the multicore handler.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Maximum number of concurrently running goroutines.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64, // Typical cache line aware chunk.
	}
}

// Range is a half-open interval [Lo, Hi) of work items.
type Range struct {
	Lo, Hi int
}

// Chunks splits [0, n) into contiguous ranges, one per goroutine. The split
// depends only on n and cfg, so callers that reduce per-chunk partials in
// slice order get the same result on every run.
func Chunks(n int, cfg Config) []Range {
	if n <= 0 {
		return nil
	}
	workers := max(cfg.NumWorkers, 1)
	if !cfg.Enabled || workers == 1 || n < cfg.MinChunkSize {
		return []Range{{0, n}}
	}

	chunkSize := max((n+workers-1)/workers, cfg.MinChunkSize, 1)
	ranges := make([]Range, 0, (n+chunkSize-1)/chunkSize)
	for start := 0; start < n; start += chunkSize {
		ranges = append(ranges, Range{start, min(start+chunkSize, n)})
	}
	return ranges
}

// ForRange executes f once per chunk of [0, n). The chunk index k is the
// position of the range in Chunks(n, cfg). It returns after every chunk has
// finished.
func ForRange(n int, cfg Config, f func(k int, r Range)) {
	ranges := Chunks(n, cfg)
	if len(ranges) <= 1 {
		// Sequential fallback.
		for k, r := range ranges {
			f(k, r)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(max(cfg.NumWorkers, 1))
	for k, r := range ranges {
		g.Go(func() error {
			f(k, r)
			return nil
		})
	}
	_ = g.Wait() // workers never fail
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	ForRange(n, cfg, func(_ int, r Range) {
		for i := r.Lo; i < r.Hi; i++ {
			f(i)
		}
	})
}

// ForBatch optimized for batch*channels iteration pattern.
// Common in CNN operations like Conv2D.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	n := batch * channels
	For(n, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
