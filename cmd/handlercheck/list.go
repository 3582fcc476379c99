package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/born-ml/handler/internal/check"
)

type ListCommand struct{}

var _ subcommands.Command = (*ListCommand)(nil)

func (*ListCommand) Name() string {
	return "list"
}

func (*ListCommand) Synopsis() string {
	return "Print the operations of the case catalogue"
}

func (*ListCommand) Usage() string {
	return ``
}

func (*ListCommand) SetFlags(*flag.FlagSet) {}

func (*ListCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	for _, op := range check.Ops() {
		fmt.Println(op)
	}
	return subcommands.ExitSuccess
}
