package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set by Execute from main's buildVersion, which is the
// variable to override via -ldflags "-X main.buildVersion=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "nalixd",
	Short: "Priority-aware packet dispatch daemon",
	Long: `nalixd accepts multiplexed connections, decodes framed packets,
and routes them through a priority channel, a middleware pipeline, and an
opcode catalog of registered handlers.`,
	Version: version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the CLI and installs SIGINT/SIGTERM handling that cancels
// the context passed down to serveCmd's RunE.
func Execute(v string) int {
	version = v
	rootCmd.Version = v

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancelServe()
	}()

	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}
