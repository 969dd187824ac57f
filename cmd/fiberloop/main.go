package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-preview"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fiberloop",
		Short: "fiberloop - a small cooperative-concurrency runtime",
		Long: `fiberloop drives user-defined fibers through a single-threaded,
completion-based scheduler: dependencies resolve via yielded specs, blocking
work crosses into the loop through a ThreadBridge, and any failure tears the
whole run down through structured cancellation.

This binary is a demonstration and diagnostic tool for the fiberloop
module, not a dependency of pkg/fiberloop itself.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newDemoCommand())
	rootCmd.AddCommand(newMonitorCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
