// Package main provides the CLI entry point for concordd, Concord's
// multi-LLM consensus chat server.
//
// # Basic Usage
//
// Start the server:
//
//	concordd serve --config concord.yaml
//
// # Environment Variables
//
// Many settings in concord.yaml can also be set via environment variable;
// environment variables always win. See internal/config for the full list
// (DATABASE_URL, OPENAI_API_KEY, GROK_API_KEY, ANTHROPIC_API_KEY,
// DEEPSEEK_API_KEY, GOOGLE_CLIENT_ID/SECRET, JWT_SECRET_KEY, ...).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "concordd",
		Short: "Concord - multi-LLM consensus chat server",
		Long: `Concord fans one user message out to several LLM providers
(OpenAI, xAI Grok, Anthropic Claude, DeepSeek), lets each call tools
against a shared registry including Google Drive, and synthesizes their
answers into a single consensus reply delivered over HTTP and WebSocket.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildServeCmd())
	return rootCmd
}

func defaultConfigPath() string {
	if path := os.Getenv("CONCORD_CONFIG"); path != "" {
		return path
	}
	return "concord.yaml"
}
