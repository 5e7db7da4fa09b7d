package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/tradeconsole/internal/analytics"
	"github.com/alanyoungcy/tradeconsole/internal/domain"
)

// SnapshotReader returns the current snapshot.
type SnapshotReader interface {
	Read() domain.Snapshot
}

// Digest sends a periodic performance summary to the notifier on a cron
// schedule.
type Digest struct {
	store    SnapshotReader
	notifier Notifier
	schedule string
	window   int
	logger   *slog.Logger
}

// NewDigest creates a Digest. schedule is a standard five-field cron
// expression; it is validated here so a bad config fails at startup.
func NewDigest(store SnapshotReader, notifier Notifier, schedule string, window int, logger *slog.Logger) (*Digest, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("digest: parse schedule %q: %w", schedule, err)
	}
	return &Digest{
		store:    store,
		notifier: notifier,
		schedule: schedule,
		window:   window,
		logger:   logger.With(slog.String("component", "digest")),
	}, nil
}

// Run schedules the digest and blocks until ctx is cancelled.
func (d *Digest) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(d.schedule, func() {
		if err := d.Send(ctx); err != nil {
			d.logger.ErrorContext(ctx, "send digest failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("digest: schedule: %w", err)
	}

	c.Start()
	d.logger.InfoContext(ctx, "digest scheduled", slog.String("schedule", d.schedule))
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// Send builds the summary from the current snapshot and notifies it.
func (d *Digest) Send(ctx context.Context) error {
	msg := FormatDigest(d.store.Read(), d.window)
	if err := d.notifier.Notify(ctx, domain.EventDailyDigest, "Daily digest", msg); err != nil {
		return fmt.Errorf("digest: notify: %w", err)
	}
	return nil
}

// FormatDigest renders the snapshot summary as plain text lines.
func FormatDigest(snap domain.Snapshot, window int) string {
	m := analytics.Compute(snap.Performance, snap.TradeHistory, window)

	var b strings.Builder
	fmt.Fprintf(&b, "State: %s\n", snap.State)
	if snap.Balance != nil {
		fmt.Fprintf(&b, "Balance: %s (free %s, used %s)\n",
			snap.Balance.Total.StringFixed(2), snap.Balance.Free.StringFixed(2), snap.Balance.Used.StringFixed(2))
	}
	fmt.Fprintf(&b, "Open trades: %d\n", len(snap.OpenTrades))
	fmt.Fprintf(&b, "Closed profit: %s (%s%%)\n", m.TotalProfit.StringFixed(4), m.TotalProfitPct.StringFixed(2))
	fmt.Fprintf(&b, "Win rate: %s%% (%d W / %d L)\n", m.WinRate.StringFixed(1), m.WinningTrades, m.LosingTrades)
	if m.BestPair != "" || m.WorstPair != "" {
		fmt.Fprintf(&b, "Best pair: %s, worst pair: %s\n", m.BestPair, m.WorstPair)
	}
	if n := len(m.EquityCurve); n > 0 {
		fmt.Fprintf(&b, "Equity (last %d trades): %s%%\n", n, m.EquityCurve[n-1].Cumulative.StringFixed(2))
	}
	if snap.LastError != "" {
		fmt.Fprintf(&b, "Warning: %s\n", snap.LastError)
	}
	return strings.TrimRight(b.String(), "\n")
}
