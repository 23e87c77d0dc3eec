package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/predictpulse/roundbot/internal/broadcast"
	"github.com/predictpulse/roundbot/internal/resolve"
	"github.com/predictpulse/roundbot/internal/scheduler"
	"github.com/predictpulse/roundbot/internal/server"
	"github.com/predictpulse/roundbot/internal/server/handler"
	"github.com/predictpulse/roundbot/internal/server/ws"
	"github.com/predictpulse/roundbot/internal/service"
)

// EngineMode runs the round lifecycle only: price refreshes, round creation,
// resolution, and eviction. No HTTP surface.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting engine mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.newScheduler(deps).Run(ctx)
	})

	return g.Wait()
}

// ServerMode runs the HTTP API and WebSocket hub without the round
// lifecycle. The price refresher still runs so /api/prices stays current;
// round and prediction state is whatever an engine elsewhere publishes to
// the shared stores.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := deps.Refresher.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("price refresher: %w", err)
	})

	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// FullMode runs everything: the round lifecycle and the HTTP API in one
// process. The scheduler owns the price refresher in this mode.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.newScheduler(deps).Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// newScheduler assembles the resolution engine, broadcast adapter, and
// scheduler from the wired dependencies.
func (a *App) newScheduler(deps *Dependencies) *scheduler.Scheduler {
	resolver := resolve.New(
		deps.Rounds,
		deps.Prices,
		deps.Users,
		deps.RoundArchive,
		a.cfg.Engine.RewardPerWin,
		a.logger,
	)
	adapter := broadcast.New(deps.Notifier, deps.SignalBus, a.logger)

	return scheduler.New(
		deps.Rounds,
		deps.Prices,
		deps.Refresher,
		resolver,
		adapter,
		deps.ColdArchiver,
		trackedAssets(a.cfg),
		scheduler.Intervals{
			CreationSweep: a.cfg.Engine.CreationSweepInterval.Duration,
			ExpirySweep:   a.cfg.Engine.ExpirySweepInterval.Duration,
			Digest:        a.cfg.Engine.DigestInterval.Duration,
			Retention:     a.cfg.Engine.RetentionWindow.Duration,
		},
		a.logger,
	)
}

// startHTTPServer registers the HTTP server and WebSocket hub on the group.
// The server is shut down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("ws hub: %w", err)
	})

	predictionSvc := service.NewPredictionService(deps.Rounds, deps.Users, trackedAssets(a.cfg), a.logger)

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health:      handler.NewHealthHandler(),
			Rounds:      handler.NewRoundHandler(deps.Rounds, deps.Prices, deps.RoundArchive),
			Predictions: handler.NewPredictionHandler(predictionSvc),
			Users:       handler.NewUserHandler(deps.Users),
		},
		hub,
		a.logger,
	)

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		err := srv.Start()
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return err
	})
}
