package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"

	"github.com/google/subcommands"

	"github.com/born-ml/handler/handler"
	"github.com/born-ml/handler/internal/check"
	"github.com/born-ml/handler/internal/npy"
)

type DumpCommand struct {
	outFile string
	seed    int64
	only    string
	quick   bool
}

var _ subcommands.Command = (*DumpCommand)(nil)

func (*DumpCommand) Name() string {
	return "dump"
}

func (*DumpCommand) Synopsis() string {
	return "Write case inputs and reference outputs to an .npz archive"
}

func (*DumpCommand) Usage() string {
	return `dump --out=cases.npz [--seed=N] [--only=op,...]:
  Members are named "<case>/<arg>" for call arguments and
  "<case>/<arg>.want" for reference outputs.
`
}

func (c *DumpCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.outFile, "out", "cases.npz", "Path of the archive to write")
	f.Int64Var(&c.seed, "seed", 1, "Seed of the case generator")
	f.StringVar(&c.only, "only", "", "Comma-separated operations to dump; empty dumps all")
	f.BoolVar(&c.quick, "quick", false, "Shrink image batches")
}

func (c *DumpCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	logger := newLogger(false)
	if err := c.executeErr(logger); err != nil {
		logger.Error("dump failed", "err", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *DumpCommand) executeErr(logger *slog.Logger) error {
	cases, err := check.Catalogue(check.Options{Seed: c.seed, Only: splitOps(c.only), Quick: c.quick})
	if err != nil {
		return fmt.Errorf("while building cases: %w", err)
	}
	ref, err := handler.New(handler.Config{Backend: handler.CPU})
	if err != nil {
		return fmt.Errorf("while creating reference handler: %w", err)
	}
	fixtures, err := check.Fixtures(ref, cases)
	if err != nil {
		return fmt.Errorf("while running cases: %w", err)
	}
	if err := npy.Save(c.outFile, fixtures); err != nil {
		return fmt.Errorf("while writing %s: %w", c.outFile, err)
	}
	logger.Info("wrote fixtures", "path", c.outFile, "cases", len(cases), "tensors", len(fixtures))
	return nil
}
