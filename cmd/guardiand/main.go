// guardiand runs the guardian policy tool server. Configuration comes from
// GUARDIAN_CONFIG (default guardian.yaml); the listen address in the file
// can be overridden with PORT.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/subguard/guardian/internal/logger"
	"github.com/subguard/guardian/internal/server"
)

func main() {
	configPath := os.Getenv("GUARDIAN_CONFIG")
	if configPath == "" {
		configPath = "guardian.yaml"
	}

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load config", "path", configPath, "error", err)
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Listen = ":" + port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg); err != nil {
		logger.Fatal("server exited", "error", err)
	}

	if err := logger.Shutdown(context.Background()); err != nil {
		os.Exit(1)
	}
}
