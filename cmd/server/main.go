package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"service-order-attachments/internal/config"
	"service-order-attachments/internal/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serve := newServeCommand()
	root := &cobra.Command{
		Use:           "attachments",
		Short:         "Service order attachment uploads and lookups",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.AddCommand(serve, newOperatorCommand(), newSearchCommand())
	return root
}

// loadConfig is shared by every subcommand. The logger becomes the process
// default so packages logging through slog.Default pick up the format.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config failed: %w", err)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, nil)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
