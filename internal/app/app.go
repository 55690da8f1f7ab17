// Package app provides the top-level application lifecycle: it wires the
// stores, caches, signal source, reconciliation pipeline, and HTTP server,
// and runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adityaks/nftpay/internal/config"
	"github.com/adityaks/nftpay/internal/server"
	"github.com/adityaks/nftpay/internal/server/handler"
)

// App is the root application object. It owns the configuration, logger,
// and cleanup functions that run in reverse order on shutdown.
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

// Run wires all dependencies and starts the reconciliation scheduler and
// the HTTP server. It blocks until the context is cancelled; the
// reconciliation loop and the request path run independently and never
// wait on each other.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.Bool("recon_enabled", a.cfg.Recon.Enabled),
		slog.String("recon_source", a.cfg.Recon.Source),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	// Reconciliation scheduler. Returns immediately when disabled.
	g.Go(func() error {
		return deps.Scheduler.Run(ctx)
	})

	// HTTP API.
	if a.cfg.Server.Enabled {
		srv := server.New(
			server.Config{
				Port:        a.cfg.Server.Port,
				CORSOrigins: a.cfg.Server.CORSOrigins,
				APIKey:      a.cfg.Server.APIKey,
			},
			server.Handlers{
				Health:   handler.NewHealthHandler(a.logger),
				Items:    handler.NewItemHandler(deps.ItemStore, a.logger),
				Purchase: handler.NewPurchaseHandler(deps.ItemStore, deps.TransactionStore, deps.UserStore, deps.LockManager, deps.Payee, a.logger),
				Recon:    handler.NewReconHandler(deps.Scheduler, a.logger),
			},
			a.logger,
		)

		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if ctx.Err() != nil {
		return nil // clean shutdown
	}
	return err
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
