// Package cli implements the tracewire command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tracewire",
	Short: "tracewire is a lightweight distributed tracing collector",
	Long: `tracewire collects spans from instrumented HTTP services over OTLP
(HTTP/JSON and gRPC), keeps them in a bounded in-memory store, and exposes
a query API plus a live websocket feed.

Instrument your own services with the tracewire middleware packages and
point their exporters at a running collector.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
