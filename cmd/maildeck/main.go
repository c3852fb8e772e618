package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/maildeck/maildeck/cmd/maildeck/cmd"
)

// Exit codes follow shell convention: 130 is 128+SIGINT, what an
// interrupted interactive program reports.
const (
	exitErr         = 1
	exitInterrupted = 130
)

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return exitInterrupted
	default:
		return exitErr
	}
}
