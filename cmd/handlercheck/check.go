package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/subcommands"

	"github.com/born-ml/handler/handler"
	"github.com/born-ml/handler/internal/check"
)

type CheckCommand struct {
	backend      string
	seed         int64
	atol, rtol   float64
	workers      int
	minChunk     int
	scratchLimit int64
	memoryLimit  int64
	only         string
	quick        bool
	verbose      bool
}

var _ subcommands.Command = (*CheckCommand)(nil)

func (*CheckCommand) Name() string {
	return "check"
}

func (*CheckCommand) Synopsis() string {
	return "Compare a handler against the reference on the case catalogue"
}

func (*CheckCommand) Usage() string {
	return `check [--backend=multicore|webgpu|cpu] [--seed=N] [--only=op,...]:
  Run every catalogue case on the reference and on the selected handler.
  Exits non-zero if any output differs beyond tolerance.
`
}

func (c *CheckCommand) SetFlags(f *flag.FlagSet) {
	defaults := check.DefaultTolerance()
	f.StringVar(&c.backend, "backend", handler.Multicore, "Handler to verify: "+strings.Join(handler.Backends(), ", "))
	f.Int64Var(&c.seed, "seed", 1, "Seed of the case generator")
	f.Float64Var(&c.atol, "atol", defaults.Atol, "Absolute tolerance")
	f.Float64Var(&c.rtol, "rtol", defaults.Rtol, "Relative tolerance")
	f.IntVar(&c.workers, "workers", 0, "Multicore worker count; 0 uses every CPU")
	f.IntVar(&c.minChunk, "min-chunk", 1, "Smallest multicore work unit")
	f.Int64Var(&c.scratchLimit, "scratch-limit", 0, "Multicore scratch bytes per call; 0 is unlimited")
	f.Int64Var(&c.memoryLimit, "memory-limit", 0, "WebGPU device bytes per dispatch; 0 leaves it to the adapter")
	f.StringVar(&c.only, "only", "", "Comma-separated operations to run; empty runs all")
	f.BoolVar(&c.quick, "quick", false, "Shrink image batches")
	f.BoolVar(&c.verbose, "v", false, "Log every case, not only failures")
}

func (c *CheckCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	logger := newLogger(c.verbose)
	if err := c.executeErr(ctx, logger); err != nil {
		logger.Error("check failed", "err", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *CheckCommand) executeErr(ctx context.Context, logger *slog.Logger) error {
	cases, err := check.Catalogue(check.Options{Seed: c.seed, Only: splitOps(c.only), Quick: c.quick})
	if err != nil {
		return fmt.Errorf("while building cases: %w", err)
	}

	ref, err := handler.New(handler.Config{Backend: handler.CPU})
	if err != nil {
		return fmt.Errorf("while creating reference handler: %w", err)
	}
	other, err := handler.New(handler.Config{
		Backend:      c.backend,
		Workers:      c.workers,
		MinChunk:     c.minChunk,
		ScratchLimit: c.scratchLimit,
		MemoryLimit:  c.memoryLimit,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("while creating %s handler: %w", c.backend, err)
	}
	defer handler.Release(other)

	logger.Info("running cases", "reference", ref.Name(), "handler", other.Name(), "cases", len(cases))

	tol := check.Tolerance{Atol: c.atol, Rtol: c.rtol}
	results, err := check.Run(ctx, ref, other, cases, tol)
	if err != nil {
		return fmt.Errorf("while running cases: %w", err)
	}

	for i := range results {
		logResult(logger, &results[i])
	}

	failed := 0
	for _, s := range check.Summarize(results) {
		logger.Info("operation", "op", s.Op, "passed", s.Passed, "failed", s.Failed)
		failed += s.Failed
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d cases differ", failed, len(results))
	}
	logger.Info("all cases match", "cases", len(results))
	return nil
}

func logResult(logger *slog.Logger, r *check.Result) {
	if r.Err != nil {
		logger.Error("case error", "case", r.Case, "err", r.Err)
		return
	}
	for _, o := range r.Outputs {
		if o.Parity.OK() {
			logger.Debug("case ok", "case", r.Case, "output", o.Name,
				"max_abs", o.Parity.MaxAbs, "max_ulp", o.Parity.MaxULP)
			continue
		}
		logger.Error("case mismatch", "case", r.Case, "output", o.Name, "parity", o.Parity.String())
	}
}
