package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/concordhq/concord/internal/config"
	"github.com/concordhq/concord/internal/observability"
)

// runServe loads configuration, wires every component, and serves until a
// shutdown signal arrives.
func runServe(cmd *cobra.Command, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := cfg.Observability.LogLevel
	if debug {
		logLevel = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:  logLevel,
		Format: cfg.Observability.LogFormat,
	})

	ctx := cmd.Context()
	logger.Info(ctx, "starting concordd",
		"version", version,
		"commit", commit,
		"config", configPath,
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
	)

	application, err := buildApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	<-ctx.Done()
	logger.Info(context.Background(), "shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := application.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	for _, closer := range application.closers {
		if closer == nil {
			continue
		}
		if err := closer(); err != nil {
			logger.Warn(context.Background(), "error during shutdown cleanup", "error", err)
		}
	}

	logger.Info(context.Background(), "concordd stopped gracefully")
	return nil
}
