// ./main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/franz-cli/cmd"
)

// main is the entry point for the franz CLI.
func main() {
	// The loop checks for cancellation between cycles, so an interrupt results
	// in an orderly shutdown rather than a mid-cycle abort.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
