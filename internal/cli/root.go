// Package cli wires the qualification harness into a cobra command
// tree: `run` drives a full qualification against real hardware, and
// `results` reprints the most recent journaled run.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the root command for the flashqual CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "flashqual",
		Short: "Flash chip AVL qualification harness",
		Long: `Qualifies a flash chip against the platform's approved vendor list by
driving a flashrom binary through a fixed sequence of read, erase, write,
and write-protect scenarios.`,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewResultsCommand(opts))

	return cmd
}

// configureLogging installs the process-wide slog handler. The
// FLASHQUAL_LOG environment variable overrides the level selected by
// the verbose flag.
func configureLogging(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	switch os.Getenv("FLASHQUAL_LOG") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
