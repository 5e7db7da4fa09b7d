package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/tradeconsole/internal/cache/memory"
	"github.com/alanyoungcy/tradeconsole/internal/cache/redis"
	"github.com/alanyoungcy/tradeconsole/internal/config"
	"github.com/alanyoungcy/tradeconsole/internal/domain"
	"github.com/alanyoungcy/tradeconsole/internal/notify"
	"github.com/alanyoungcy/tradeconsole/internal/platform/freqtrade"
	"github.com/alanyoungcy/tradeconsole/internal/service"
	"github.com/alanyoungcy/tradeconsole/internal/snapshot"
	"github.com/alanyoungcy/tradeconsole/internal/telemetry"
)

// Dependencies bundles every component the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	API   domain.BotAPI
	Store *snapshot.Store

	// Caches
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	Metrics  *telemetry.Metrics
	Notifier *notify.Notifier

	Poller     *service.Poller
	Controller *service.Controller
	// Digest is nil when no digest schedule is configured.
	Digest *service.Digest
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	deps.API = freqtrade.NewClient(freqtrade.ClientConfig{
		BaseURL:  cfg.Remote.BaseURL,
		Username: cfg.Remote.Username,
		Password: cfg.Remote.Password,
		Timeout:  cfg.Remote.Timeout.Duration,
	})

	deps.Store = snapshot.NewStore()
	closers = append(closers, deps.Store.Close)

	// --- Caches: Redis when configured, otherwise in-process ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		logger.InfoContext(ctx, "wire: using redis caches", slog.String("addr", cfg.Redis.Addr))
	} else {
		deps.RateLimiter = memory.NewRateLimiter()
		deps.LockManager = memory.NewLockManager()
		deps.SignalBus = memory.NewSignalBus()
		logger.InfoContext(ctx, "wire: using in-process caches")
	}

	deps.Metrics = telemetry.New()

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Notify.Label, logger)

	// --- Services ---
	deps.Poller = service.NewPoller(deps.API, deps.Store, service.PollerConfig{
		Interval:     cfg.Poll.Interval.Duration,
		FetchTimeout: cfg.Poll.FetchTimeout.Duration,
		HistoryLimit: cfg.Poll.HistoryLimit,
		LogLimit:     cfg.Poll.LogLimit,
	}, logger).
		WithBus(deps.SignalBus).
		WithNotifier(deps.Notifier).
		WithMetrics(deps.Metrics)

	deps.Controller = service.NewController(
		deps.API, deps.Store, deps.Poller, service.ContextConfirmer{}, logger,
	).
		WithLocks(deps.LockManager, cfg.Control.LockTTL.Duration).
		WithCallTimeout(cfg.Remote.Timeout.Duration).
		WithBus(deps.SignalBus).
		WithNotifier(deps.Notifier).
		WithMetrics(deps.Metrics)

	if cfg.Notify.DigestCron != "" {
		digest, err := service.NewDigest(deps.Store, deps.Notifier, cfg.Notify.DigestCron, cfg.Poll.EquityWindow, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: digest: %w", err)
		}
		deps.Digest = digest
	}

	return deps, cleanup, nil
}
