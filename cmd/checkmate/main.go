// Package main contains the entrypoint for the checkmate service and its
// administration commands.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/checkmate/checkmate/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := cli.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(exitCode)
}
