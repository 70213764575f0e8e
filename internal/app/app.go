// Package app wires the configuration into a running arbitrage pipeline and
// owns its startup and shutdown ordering.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/quanthawk/arbot/internal/config"
)

// App is the assembled bot.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates an App from a validated configuration.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger.With(slog.String("component", "app"))}
}

// Run wires dependencies, starts the pipeline, and blocks until ctx is
// cancelled or a fatal error occurs. On return the pipeline has been drained:
// every buffered book event was matched and every in-flight trade leg was
// submitted or abandoned.
func (a *App) Run(ctx context.Context) error {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	defer cleanup()

	a.logger.Info("starting",
		slog.Int("pairs", len(deps.Pairs)),
		slog.Int("exchanges", deps.Registry.Len()),
		slog.Int("feeds", len(deps.Feeds)),
	)

	// Downstream-first: the trade bus must be draining before the engine can
	// publish into it, and likewise the book bus before the feeds.
	deps.TradeBus.Start(ctx)
	deps.OrderBookBus.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deps.Refresher.Run(gctx) })
	for _, f := range deps.Feeds {
		f := f
		g.Go(func() error { return f.Run(gctx) })
	}

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	a.logger.Info("shutting down, draining pipeline")

	// Reverse of startup: stop feeding the book bus, drain it, let matching
	// workers finish, drain the trade bus, then wait out leg submissions.
	deps.OrderBookBus.Shutdown()
	deps.Engine.Wait()
	deps.TradeBus.Shutdown()
	deps.Publisher.Wait()

	a.logger.Info("stopped")
	return runErr
}
