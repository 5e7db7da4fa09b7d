package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
	"github.com/alanyoungcy/tradeconsole/internal/snapshot"
)

// Notifier delivers operator notifications filtered by event type.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// PollMetrics receives poll-cycle telemetry.
type PollMetrics interface {
	ObserveCycle(d time.Duration, snap domain.Snapshot)
	CycleSkipped()
}

// PollerConfig controls cycle cadence and fetch sizes.
type PollerConfig struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	HistoryLimit int
	LogLimit     int
}

// Poller refreshes the snapshot store from the remote API. At most one cycle
// runs at a time; refreshes requested while one is in flight are skipped.
type Poller struct {
	api   domain.BotAPI
	store *snapshot.Store
	cfg   PollerConfig

	sem     *semaphore.Weighted
	pending atomic.Bool

	// Owned by the cycle holder.
	connKnown bool
	connUp    bool

	bus      domain.SignalBus
	notifier Notifier
	metrics  PollMetrics
	now      func() time.Time
	logger   *slog.Logger
}

// NewPoller creates a Poller. Zero config values fall back to a 10s interval,
// an 8s fetch timeout and limits of 50.
func NewPoller(api domain.BotAPI, store *snapshot.Store, cfg PollerConfig, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 8 * time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.LogLimit <= 0 {
		cfg.LogLimit = 50
	}
	return &Poller{
		api:    api,
		store:  store,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(1),
		now:    time.Now,
		logger: logger.With(slog.String("component", "poller")),
	}
}

// WithBus publishes a snapshot event after every cycle.
func (p *Poller) WithBus(bus domain.SignalBus) *Poller {
	p.bus = bus
	return p
}

// WithNotifier sends connection lost/restored notifications.
func (p *Poller) WithNotifier(n Notifier) *Poller {
	p.notifier = n
	return p
}

// WithMetrics records cycle telemetry.
func (p *Poller) WithMetrics(m PollMetrics) *Poller {
	p.metrics = m
	return p
}

// Run refreshes once immediately and then on every interval tick until ctx
// is cancelled. Ticks that land on an in-flight cycle are dropped.
func (p *Poller) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	p.logger.InfoContext(ctx, "poller started", slog.Duration("interval", p.cfg.Interval))
	p.Refresh(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "poller stopped")
			return ctx.Err()
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.Refresh(ctx)
			}()
		}
	}
}

// Refresh runs one cycle unless one is already in flight, in which case it
// returns false without waiting.
func (p *Poller) Refresh(ctx context.Context) bool {
	if !p.sem.TryAcquire(1) {
		if p.metrics != nil {
			p.metrics.CycleSkipped()
		}
		p.logger.DebugContext(ctx, "refresh skipped, cycle in flight")
		return false
	}
	p.runHeld(ctx)
	return true
}

// RequestRefresh asks for a cycle that starts after this call. If a cycle is
// in flight its owner runs one more when it finishes; otherwise the cycle
// runs now on the caller's goroutine.
func (p *Poller) RequestRefresh(ctx context.Context) {
	p.pending.Store(true)
	if p.sem.TryAcquire(1) {
		p.runHeld(ctx)
	}
}

// runHeld runs cycles while holding the semaphore and keeps going as long as
// a trailing refresh was requested during the previous one.
func (p *Poller) runHeld(ctx context.Context) {
	for {
		p.pending.Store(false)
		p.cycle(ctx)
		p.sem.Release(1)
		if !p.pending.Load() || !p.sem.TryAcquire(1) {
			return
		}
	}
}

// cycle fans out the six category fetches, applies each result on its own
// and stamps the store once all have settled. Fetches are not cancelled with
// ctx; each is bounded by the fetch timeout instead.
func (p *Poller) cycle(ctx context.Context) {
	start := p.now()
	base := context.WithoutCancel(ctx)

	var g errgroup.Group
	fetch := func(cat domain.Category, fn func(context.Context) error) {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(base, p.cfg.FetchTimeout)
			defer cancel()
			if err := fn(fctx); err != nil {
				p.logFetchError(ctx, cat, err)
			}
			return nil
		})
	}

	fetch(domain.CategoryStatus, func(c context.Context) error {
		st, err := p.api.GetStatus(c)
		p.store.ApplyStatus(st, err)
		return err
	})
	fetch(domain.CategoryOpenTrades, func(c context.Context) error {
		trades, err := p.api.GetOpenTrades(c)
		p.store.ApplyOpenTrades(trades, err)
		return err
	})
	fetch(domain.CategoryBalance, func(c context.Context) error {
		bal, err := p.api.GetBalance(c)
		p.store.ApplyBalance(bal, err)
		return err
	})
	fetch(domain.CategoryTradeHistory, func(c context.Context) error {
		trades, err := p.api.GetTradeHistory(c, p.cfg.HistoryLimit)
		p.store.ApplyTradeHistory(trades, err)
		return err
	})
	fetch(domain.CategoryPerformance, func(c context.Context) error {
		perf, err := p.api.GetPerformance(c)
		p.store.ApplyPerformance(perf, err)
		return err
	})
	fetch(domain.CategoryLogs, func(c context.Context) error {
		lines, err := p.api.GetLogs(c, p.cfg.LogLimit)
		p.store.ApplyLogs(lines, err)
		return err
	})
	_ = g.Wait()

	end := p.now()
	p.store.Touch(end)
	snap := p.store.Read()

	if p.metrics != nil {
		p.metrics.ObserveCycle(end.Sub(start), snap)
	}
	p.publish(ctx, snap)
	p.trackConnection(ctx, snap)
}

func (p *Poller) logFetchError(ctx context.Context, cat domain.Category, err error) {
	if cat == domain.CategoryStatus {
		p.logger.ErrorContext(ctx, "status fetch failed",
			slog.String("error", err.Error()),
		)
		return
	}
	p.logger.WarnContext(ctx, "fetch failed, keeping previous value",
		slog.String("category", string(cat)),
		slog.String("error", err.Error()),
	)
}

func (p *Poller) publish(ctx context.Context, snap domain.Snapshot) {
	if p.bus == nil {
		return
	}
	payload, _ := json.Marshal(domain.NewSnapshotEvent(snap))
	if err := p.bus.Publish(ctx, domain.ChannelSnapshot, payload); err != nil {
		p.logger.WarnContext(ctx, "publish snapshot event failed",
			slog.String("error", err.Error()),
		)
	}
}

// trackConnection notifies when the status endpoint stops or starts
// answering.
func (p *Poller) trackConnection(ctx context.Context, snap domain.Snapshot) {
	up := snap.State != domain.BotStateError
	changed := (!p.connKnown && !up) || (p.connKnown && up != p.connUp)
	p.connKnown = true
	p.connUp = up
	if !changed || p.notifier == nil {
		return
	}

	event, title, msg := domain.EventConnectionRestored, "Bot reachable", "Connection to the trading process restored. State: "+string(snap.State)
	if !up {
		event, title, msg = domain.EventConnectionLost, "Bot unreachable", snap.LastError
	}
	if err := p.notifier.Notify(ctx, event, title, msg); err != nil {
		p.logger.WarnContext(ctx, "connection notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
