package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
	"github.com/alanyoungcy/tradeconsole/internal/server"
	"github.com/alanyoungcy/tradeconsole/internal/server/handler"
	"github.com/alanyoungcy/tradeconsole/internal/server/ws"
)

// shutdownTimeout bounds how long in-flight HTTP requests may take to drain.
const shutdownTimeout = 5 * time.Second

// ServerMode runs the poller, the optional digest and the operator HTTP/WS
// surface.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startBackground(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// MonitorMode runs headless: the poller, notifications and the optional
// digest, with every snapshot change summarized in the log.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	// Subscribe before the poller starts so the first snapshot is seen.
	ch, err := deps.SignalBus.Subscribe(ctx, domain.ChannelSnapshot)
	if err != nil {
		return fmt.Errorf("monitor mode: subscribe %s: %w", domain.ChannelSnapshot, err)
	}
	g.Go(func() error {
		return a.logSnapshots(ctx, ch, deps.Store)
	})

	a.startBackground(ctx, g, deps)

	return g.Wait()
}

// startBackground launches the goroutines shared by every mode.
func (a *App) startBackground(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		return deps.Poller.Run(ctx)
	})

	if deps.Digest != nil {
		g.Go(func() error {
			return deps.Digest.Run(ctx)
		})
	}
}

// logSnapshots writes one line per published snapshot until ctx is done.
// State changes log at info, everything else at debug.
func (a *App) logSnapshots(ctx context.Context, ch <-chan []byte, store handler.SnapshotReader) error {
	var lastState domain.BotState
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			var evt domain.SnapshotEvent
			if err := json.Unmarshal(payload, &evt); err != nil {
				a.logger.WarnContext(ctx, "monitor: undecodable snapshot event", slog.String("error", err.Error()))
				continue
			}

			level := slog.LevelDebug
			if evt.State != lastState {
				level = slog.LevelInfo
				lastState = evt.State
			}
			attrs := []slog.Attr{
				slog.Uint64("version", evt.Version),
				slog.String("state", string(evt.State)),
				slog.Int("open_trades", evt.OpenTrades),
			}
			if evt.LastError != "" {
				attrs = append(attrs, slog.String("last_error", evt.LastError))
			}
			snap := store.Read()
			if snap.Balance != nil {
				attrs = append(attrs, slog.String("balance", snap.Balance.Total.StringFixed(2)))
			}
			if n := len(snap.CategoryErrors); n > 0 {
				attrs = append(attrs, slog.Int("failed_categories", n))
			}
			a.logger.LogAttrs(ctx, level, "monitor: snapshot", attrs...)
		}
	}
}

// startHTTPServer builds the operator API and runs it until ctx is done.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, deps.Store, a.cfg.Server.CORSOrigins, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		APIKeyHash:  a.cfg.Server.APIKeyHash,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:   handler.NewHealthHandler(deps.Store, a.logger),
		Snapshot: handler.NewSnapshotHandler(deps.Store, a.cfg.Poll.EquityWindow, a.logger),
		Control:  handler.NewControlHandler(deps.Controller, deps.Poller, a.logger),
		Metrics:  deps.Metrics.Handler(),
	}, hub, deps.RateLimiter, a.logger)

	if a.cfg.Server.APIKey == "" && a.cfg.Server.APIKeyHash == "" {
		a.logger.WarnContext(ctx, "HTTP server: no api key configured, control endpoints are unauthenticated")
	}

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
