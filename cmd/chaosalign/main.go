package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chaosalign/internal/cli"
	"chaosalign/internal/config"
	"chaosalign/internal/logging"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLoggerWithConfig(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Debug().Err(err).Msg("Command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
