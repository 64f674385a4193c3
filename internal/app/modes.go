package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/web3dona/internal/oracle"
	"github.com/alanyoungcy/web3dona/internal/server"
	"github.com/alanyoungcy/web3dona/internal/server/handler"
	"github.com/alanyoungcy/web3dona/internal/server/ws"
)

const defaultShutdownTimeout = 10 * time.Second

// runMode starts the HTTP API and/or the background oracle updater under one
// errgroup. The first goroutine to fail cancels the others. Background
// settlement work and pending notifications are drained before it returns.
func (a *App) runMode(ctx context.Context, mode string, deps *Dependencies) error {
	g, gctx := errgroup.WithContext(ctx)

	if servesHTTP(mode) {
		a.startHTTPServer(gctx, g, deps, mode)
	}
	if runsUpdater(mode) {
		a.startUpdater(gctx, g, deps)
	}

	err := g.Wait()

	deps.Service.Wait()
	deps.Notifier.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("all goroutines stopped", slog.String("mode", mode))
	return nil
}

// startUpdater runs the background oracle refresher. The settlement service
// receives every refresh report so the audit trail, bus and notifications see
// background refreshes too.
func (a *App) startUpdater(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	updater := oracle.NewUpdater(
		deps.Gate,
		deps.Feed,
		deps.Ledger,
		deps.Keys,
		deps.Ledger.ChainID(),
		deps.Service,
		a.logger,
	)
	g.Go(func() error {
		return updater.RunLoop(ctx, a.cfg.Oracle.CheckInterval)
	})
}

// startHTTPServer registers the API server, the WebSocket hub when a signal
// bus is available, and the shutdown watcher.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, mode string) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:           mode,
			StartedAt:      time.Now().UTC(),
			AllowedOrigins: a.cfg.Server.CORSOrigins,
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Host:         a.cfg.Server.Host,
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		APIKey:       a.cfg.Server.APIKey,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout(a.cfg.Ledger, a.cfg.Oracle),
		IdleTimeout:  a.cfg.Server.IdleTimeout,
		RateLimit:    a.cfg.Redis.RateLimit,
		RateWindow:   a.cfg.Redis.RateWindow,
	}, server.Handlers{
		Health:     handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Settlement: handler.NewSettlementHandler(deps.Service, a.logger),
		Metrics:    deps.Metrics.Handler(),
	}, server.Options{
		Hub:      hub,
		Limiter:  deps.RateLimiter,
		Recorder: deps.Metrics,
	}, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		timeout := a.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
