// Command handlercheck verifies that accelerated handlers agree with the
// reference handler.
//
// To compare the parallel host handler against the reference:
//
//	go run ./cmd/handlercheck check --backend=multicore --workers=8
//
// To write numpy fixtures of every case:
//
//	go run ./cmd/handlercheck dump --out=cases.npz
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&CheckCommand{}, "")
	subcommands.Register(&DumpCommand{}, "")
	subcommands.Register(&ListCommand{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// splitOps parses a comma-separated operation list.
func splitOps(s string) []string {
	var ops []string
	for _, op := range strings.Split(s, ",") {
		if op = strings.TrimSpace(op); op != "" {
			ops = append(ops, op)
		}
	}
	return ops
}
