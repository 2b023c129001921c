package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts concordd's HTTP
// and WebSocket surfaces.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Concord chat server",
		Long: `Start the Concord server:

1. Load configuration from the specified file (or concord.yaml)
2. Connect to Postgres, or fall back to in-memory stores
3. Initialize the configured LLM providers and the Drive tool registry
4. Start the HTTP API and the /ws real-time channel

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  # Start with default config
  concordd serve

  # Start with a custom config file
  concordd serve --config /etc/concord/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = defaultConfigPath()
			}
			return runServe(cmd, configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
