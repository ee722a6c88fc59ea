package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/photon/internal/config"
	"github.com/vango-dev/photon/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┬ ┬┌─┐┌┬┐┌─┐┌┐┌
  ├─┘├─┤│ │ │ │ ││││
  ┴  ┴ ┴└─┘ ┴ └─┘┘└┘
`

// configPath is the --config flag shared by all commands.
var configPath string

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photon",
		Short: "Binary RPC server and client",
		Long: `Photon is a binary remote method invocation protocol.

It multiplexes framed messages over channels on one TCP or
WebSocket connection. Features include:

  • Typed Variant values with compact integer encoding
  • Versioned handshake with ping and close control messages
  • Remote method dispatch with typed Go bindings
  • Blob storage methods backed by memory or S3
  • Prometheus metrics and OpenTelemetry spans`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to photon.json (default ./photon.json if present)")

	cmd.AddCommand(
		serveCmd(),
		callCmd(),
		benchCmd(),
		initCmd(),
		versionCmd(),
	)
	return cmd
}

// loadConfig reads --config, or ./photon.json when present, or defaults.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.LoadOrDefault(".")
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
