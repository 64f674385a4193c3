// Package app provides the top-level application lifecycle. It wires the
// ledger, price feed, oracle gate and optional backends together and starts
// the goroutines of the configured operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/web3dona/internal/config"
)

// Operating modes.
const (
	ModeServer  = "server"
	ModeUpdater = "updater"
	ModeFull    = "full"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the goroutines of the configured mode and
// blocks until the context is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(a.cfg.Mode)
	if !validMode(mode) {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	return a.runMode(ctx, mode, deps)
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func validMode(mode string) bool {
	switch mode {
	case ModeServer, ModeUpdater, ModeFull:
		return true
	default:
		return false
	}
}

func servesHTTP(mode string) bool {
	return mode == ModeServer || mode == ModeFull
}

func runsUpdater(mode string) bool {
	return mode == ModeUpdater || mode == ModeFull
}
