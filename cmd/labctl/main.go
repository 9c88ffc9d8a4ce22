package main

// ============================================================================
// labctl entry point
//
// All logic lives in internal/cli. main only turns errors and panics into a
// message on stderr and a non-zero exit code.
// ============================================================================

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ChuLiYu/labqueue/internal/cli"
	"github.com/ChuLiYu/labqueue/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			var violation types.InvariantViolation
			if err, ok := r.(error); ok && errors.As(err, &violation) {
				fmt.Fprintf(os.Stderr, "labctl: internal error, please report it: %v\n", violation)
				code = 3
				return
			}
			fmt.Fprintf(os.Stderr, "labctl: fatal: %v\n", r)
			code = 2
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
