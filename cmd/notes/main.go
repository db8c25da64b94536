// Command notes is a terminal shell over the notes coordinator.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"viterbi-notes/internal/backend"
	"viterbi-notes/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newCLI(config.Load, backend.Open)
	err := a.execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
