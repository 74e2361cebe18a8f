package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/subguard/guardian/household"
	"github.com/subguard/guardian/internal/logger"
)

// BuildManager creates a household manager from the config.
func BuildManager(cfg *Config) (*household.Manager, error) {
	manager := household.NewManager()
	for _, hc := range cfg.Households {
		if _, err := manager.Create(hc.ID, hc.Policies); err != nil {
			return nil, fmt.Errorf("failed to create household %q: %w", hc.ID, err)
		}
	}
	return manager, nil
}

// Run serves the tool façade until the context is cancelled, then shuts
// down gracefully. When cfg.Watch is set the policy files are hot-reloaded
// on change.
func Run(ctx context.Context, cfg *Config) error {
	manager, err := BuildManager(cfg)
	if err != nil {
		return err
	}

	if cfg.Watch {
		watcher, err := NewPolicyWatcher(manager)
		if err != nil {
			return fmt.Errorf("failed to start policy watcher: %w", err)
		}
		go func() {
			if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("policy watcher stopped", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:         cfg.Listen,
		Handler:      New(manager),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("guardian server starting", "addr", cfg.Listen, "households", len(manager.List()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
