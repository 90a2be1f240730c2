// Command varsel compiles product definitions and resolves variation
// selections against them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/varsel/internal/cli"
	"github.com/roach88/varsel/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "varsel: %v\n", err)
		os.Exit(cli.ExitCommandError)
	}
	logger := cfg.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommandWithConfig(cfg, logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Debug("command failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
